// Package facts turns joined O*NET and jurusan rows into atomic,
// embeddable facts with typed payloads, one payload variant per collection.
package facts

import (
	"fmt"

	"github.com/upi-karir/karir/engine/domain"
)

// Collection names a vector-store partition. One per fact category.
type Collection string

const (
	Jurusan        Collection = "jurusan"
	Occupations    Collection = "occupations"
	Tasks          Collection = "tasks"
	Technologies   Collection = "technologies"
	Skills         Collection = "skills"
	Knowledge      Collection = "knowledge"
	Relations      Collection = "relations"
	JobZones       Collection = "job_zones"
	WorkActivities Collection = "work_activities"
	WorkContext    Collection = "work_context"
)

// All lists every collection in canonical order. Ingestion with the "all"
// selector and the default query plan both follow this order.
var All = []Collection{
	Jurusan,
	Occupations,
	Tasks,
	Technologies,
	Skills,
	Knowledge,
	Relations,
	JobZones,
	WorkActivities,
	WorkContext,
}

var aliases = map[string]Collection{
	"zones": JobZones,
}

// ParseCollection resolves a collection or source-type name.
func ParseCollection(s string) (Collection, error) {
	for _, c := range All {
		if string(c) == s {
			return c, nil
		}
	}
	if c, ok := aliases[s]; ok {
		return c, nil
	}
	return "", fmt.Errorf("facts: %q: %w", s, domain.ErrUnknownSourceType)
}

// NeedsIndex reports whether emitting c requires the skill cross-reference index.
func (c Collection) NeedsIndex() bool {
	return c == WorkActivities || c == WorkContext
}

// Remote reports whether c is fed by the jurusan API rather than an O*NET file.
func (c Collection) Remote() bool {
	return c == Jurusan
}

func (c Collection) String() string { return string(c) }
