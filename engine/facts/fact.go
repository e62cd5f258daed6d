package facts

import (
	"fmt"
	"strings"

	"github.com/upi-karir/karir/engine/domain"
)

// Fact is one embeddable statement plus its typed metadata.
type Fact struct {
	Text    string
	Payload Payload
}

// New validates and builds a Fact. Text is whitespace-normalized; an empty
// result is rejected before it can reach the embedding provider.
func New(text string, p Payload) (Fact, error) {
	text = domain.NormalizeText(text)
	if text == "" {
		return Fact{}, domain.ErrEmptyText
	}
	if p == nil {
		return Fact{}, fmt.Errorf("facts: nil payload: %w", domain.ErrMalformedRow)
	}
	if err := p.validate(); err != nil {
		return Fact{}, err
	}
	return Fact{Text: text, Payload: p}, nil
}

// Collection returns the target collection.
func (f Fact) Collection() Collection { return f.Payload.Collection() }

// Source returns the provenance tag.
func (f Fact) Source() string {
	s, _ := f.Payload.Fields()["source"].(string)
	return s
}

// PointKey is the stable identity of the fact across runs:
// collection, source and natural key.
func (f Fact) PointKey() string {
	return strings.Join([]string{string(f.Collection()), f.Source(), f.Payload.Key()}, "|")
}

// SOCCode returns the occupation the fact belongs to, if any.
func (f Fact) SOCCode() string {
	s, _ := f.Payload.Fields()["soc_code"].(string)
	return s
}
