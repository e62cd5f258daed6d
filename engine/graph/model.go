// Package graph keeps the occupation graph in Neo4j: occupations, their job
// zones and the RELATED_TO edges between them.
package graph

import "fmt"

// Occupation is an (:Occupation) node. JobZone is 0 until a job zone row
// has been ingested for it.
type Occupation struct {
	SOCCode     string `json:"soc_code"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	JobZone     int    `json:"job_zone,omitempty"`
}

// Relation is a directed RELATED_TO edge.
type Relation struct {
	FromSOC   string `json:"from_soc"`
	FromTitle string `json:"from_title"`
	ToSOC     string `json:"to_soc"`
	ToTitle   string `json:"to_title"`
	Tier      string `json:"tier,omitempty"`
	Index     int    `json:"index,omitempty"`
}

// Line renders the relation as a context line.
func (r Relation) Line() string {
	if r.Tier == "" {
		return fmt.Sprintf("Pekerjaan terkait: %s → %s", r.FromTitle, r.ToTitle)
	}
	return fmt.Sprintf("Pekerjaan terkait: %s → %s (%s)", r.FromTitle, r.ToTitle, r.Tier)
}
