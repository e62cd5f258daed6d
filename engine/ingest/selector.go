package ingest

import (
	"strings"

	"github.com/upi-karir/karir/engine/facts"
)

// Selector picks the source types an ingestion run processes.
type Selector struct {
	only facts.Collection
}

// All selects every source type in canonical order.
func All() Selector { return Selector{} }

// Only selects a single source type.
func Only(c facts.Collection) Selector { return Selector{only: c} }

// ParseSelector accepts "all" or a source type name.
func ParseSelector(s string) (Selector, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "all" {
		return All(), nil
	}
	c, err := facts.ParseCollection(s)
	if err != nil {
		return Selector{}, err
	}
	return Only(c), nil
}

// Collections returns the selected types in processing order.
func (s Selector) Collections() []facts.Collection {
	if s.only == "" {
		return append([]facts.Collection(nil), facts.All...)
	}
	return []facts.Collection{s.only}
}

func (s Selector) String() string {
	if s.only == "" {
		return "all"
	}
	return string(s.only)
}
