package onet

import (
	"context"
	"errors"
	"fmt"

	"github.com/upi-karir/karir/engine/domain"
)

// OccupationRecord is one row of the master occupation table.
type OccupationRecord struct {
	SOCCode     string `json:"soc_code"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Dictionary resolves SOC codes to occupations. Read-only after load.
type Dictionary struct {
	byCode map[string]OccupationRecord
	order  []string
}

// NewDictionary builds a Dictionary from records. Later duplicates win.
func NewDictionary(records ...OccupationRecord) *Dictionary {
	d := &Dictionary{byCode: make(map[string]OccupationRecord, len(records))}
	for _, r := range records {
		if _, ok := d.byCode[r.SOCCode]; !ok {
			d.order = append(d.order, r.SOCCode)
		}
		d.byCode[r.SOCCode] = r
	}
	return d
}

// Lookup returns the occupation for soc. Absence is not an error.
func (d *Dictionary) Lookup(soc string) (OccupationRecord, bool) {
	r, ok := d.byCode[soc]
	return r, ok
}

// Len returns the number of occupations.
func (d *Dictionary) Len() int { return len(d.byCode) }

// Records returns all occupations in load order.
func (d *Dictionary) Records() []OccupationRecord {
	out := make([]OccupationRecord, len(d.order))
	for i, c := range d.order {
		out[i] = d.byCode[c]
	}
	return out
}

// LoadDictionary reads the occupation table. Every failure is fatal:
// nothing downstream can resolve titles without it.
func LoadDictionary(ctx context.Context, src Source) (*Dictionary, error) {
	t, err := LoadTable(ctx, src, FileOccupations)
	if err != nil {
		return nil, domain.NewFatal("load dictionary", err)
	}
	return DictionaryFromTable(t)
}

// DictionaryFromTable builds a Dictionary from an already read table.
func DictionaryFromTable(t *Table) (*Dictionary, error) {
	if err := t.Require(ColSOCCode, ColTitle); err != nil {
		return nil, domain.NewFatal("load dictionary", err)
	}
	records := make([]OccupationRecord, 0, t.Len())
	for _, row := range t.Rows {
		soc := row.Get(ColSOCCode)
		title := row.Get(ColTitle)
		if soc == "" || title == "" {
			continue
		}
		records = append(records, OccupationRecord{
			SOCCode:     soc,
			Title:       title,
			Description: row.Get(ColDescription),
		})
	}
	if len(records) == 0 {
		return nil, domain.NewFatal("load dictionary", fmt.Errorf("%s: %w", t.Name, domain.ErrEmptyDictionary))
	}
	return NewDictionary(records...), nil
}

// IsMissing reports whether err means a source file does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, domain.ErrMissingSource)
}
