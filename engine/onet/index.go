package onet

import "fmt"

// Index maps an element id to the ordered set of SOC codes linked to it.
type Index struct {
	byKey map[string][]string
	pairs map[[2]string]struct{}
}

// BuildIndex makes a full pass over t and links keyColumn to joinColumn.
// Duplicate (key, join) pairs are dropped; first-seen order is kept.
func BuildIndex(t *Table, keyColumn, joinColumn string) (*Index, error) {
	if err := t.Require(keyColumn, joinColumn); err != nil {
		return nil, fmt.Errorf("onet: build index: %w", err)
	}
	ix := &Index{
		byKey: make(map[string][]string),
		pairs: make(map[[2]string]struct{}),
	}
	for _, row := range t.Rows {
		ix.add(row.Get(keyColumn), row.Get(joinColumn))
	}
	return ix, nil
}

func (ix *Index) add(key, join string) {
	if key == "" || join == "" {
		return
	}
	p := [2]string{key, join}
	if _, dup := ix.pairs[p]; dup {
		return
	}
	ix.pairs[p] = struct{}{}
	ix.byKey[key] = append(ix.byKey[key], join)
}

// Lookup returns a copy of the SOC codes linked to key.
func (ix *Index) Lookup(key string) []string {
	v := ix.byKey[key]
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Len returns the number of distinct keys.
func (ix *Index) Len() int { return len(ix.byKey) }
