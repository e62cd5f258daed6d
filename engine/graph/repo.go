package graph

import (
	"fmt"

	"github.com/upi-karir/karir/pkg/repo"
)

const occupationLabel = "Occupation"

func newOccupationRepo(sessions repo.SessionFunc) *repo.Neo4jRepo[Occupation, string] {
	return repo.NewNeo4jRepo[Occupation, string](
		sessions,
		occupationLabel,
		occupationToMap,
		occupationFromProps,
		repo.WithIDKey[Occupation, string]("soc"),
	)
}

// occupationToMap leaves job_zone out so a re-merged occupation keeps it.
func occupationToMap(o Occupation) map[string]any {
	return map[string]any{
		"soc":         o.SOCCode,
		"title":       o.Title,
		"description": o.Description,
	}
}

func occupationFromProps(props map[string]any) (Occupation, error) {
	o := Occupation{
		SOCCode:     strProp(props, "soc"),
		Title:       strProp(props, "title"),
		Description: strProp(props, "description"),
		JobZone:     intProp(props, "job_zone"),
	}
	if o.SOCCode == "" {
		return Occupation{}, fmt.Errorf("graph: occupation node without soc")
	}
	return o, nil
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
