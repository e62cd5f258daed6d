package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/upi-karir/karir/pkg/repo"
)

// OccupationGraph reads and writes the occupation graph.
type OccupationGraph struct {
	sessions    repo.SessionFunc
	occupations *repo.Neo4jRepo[Occupation, string]
}

// New creates an OccupationGraph on driver.
func New(driver neo4j.DriverWithContext) *OccupationGraph {
	return NewWithSessions(repo.DriverSessions(driver))
}

// NewWithSessions creates an OccupationGraph over an arbitrary session source.
func NewWithSessions(sessions repo.SessionFunc) *OccupationGraph {
	return &OccupationGraph{
		sessions:    sessions,
		occupations: newOccupationRepo(sessions),
	}
}

// Connect opens a driver and verifies the server is reachable.
func Connect(ctx context.Context, url, user, pass string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify: %w", err)
	}
	return driver, nil
}

// EnsureSchema creates the uniqueness constraint on occupation codes.
func (g *OccupationGraph) EnsureSchema(ctx context.Context) error {
	_, err := repo.Exec(ctx, g.sessions,
		`CREATE CONSTRAINT occupation_soc IF NOT EXISTS FOR (n:Occupation) REQUIRE n.soc IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("graph: schema: %w", err)
	}
	return nil
}

// SaveOccupation merges an occupation node.
func (g *OccupationGraph) SaveOccupation(ctx context.Context, o Occupation) error {
	return g.occupations.Merge(ctx, o)
}

// Occupation returns one occupation node.
func (g *OccupationGraph) Occupation(ctx context.Context, soc string) (Occupation, error) {
	return g.occupations.Get(ctx, soc)
}

// SaveRelation merges both endpoints and the RELATED_TO edge between them.
func (g *OccupationGraph) SaveRelation(ctx context.Context, r Relation) error {
	cypher := `MERGE (a:Occupation {soc: $from})
		ON CREATE SET a.title = $from_title
		MERGE (b:Occupation {soc: $to})
		ON CREATE SET b.title = $to_title
		MERGE (a)-[r:RELATED_TO]->(b)
		SET r.tier = $tier, r.index = $index`
	_, err := repo.Exec(ctx, g.sessions, cypher, map[string]any{
		"from":       r.FromSOC,
		"from_title": r.FromTitle,
		"to":         r.ToSOC,
		"to_title":   r.ToTitle,
		"tier":       r.Tier,
		"index":      r.Index,
	})
	if err != nil {
		return fmt.Errorf("graph: save relation %s->%s: %w", r.FromSOC, r.ToSOC, err)
	}
	return nil
}

// SetJobZone records the job zone on an occupation, creating the node if needed.
func (g *OccupationGraph) SetJobZone(ctx context.Context, soc string, zone int) error {
	_, err := repo.Exec(ctx, g.sessions,
		`MERGE (n:Occupation {soc: $soc}) SET n.job_zone = $zone`,
		map[string]any{"soc": soc, "zone": zone})
	if err != nil {
		return fmt.Errorf("graph: job zone %s: %w", soc, err)
	}
	return nil
}

// Related returns the outgoing RELATED_TO edges of socs, at most
// perOccupation each, grouped in the order socs were given and ranked by
// relatedness index within a group.
func (g *OccupationGraph) Related(ctx context.Context, socs []string, perOccupation int) ([]Relation, error) {
	if len(socs) == 0 {
		return nil, nil
	}
	cypher := `MATCH (a:Occupation)-[r:RELATED_TO]->(b:Occupation)
		WHERE a.soc IN $socs
		RETURN a.soc AS from_soc, a.title AS from_title, b.soc AS to_soc,
		       b.title AS to_title, r.tier AS tier, r.index AS idx
		ORDER BY r.index, b.soc`
	recs, err := repo.Exec(ctx, g.sessions, cypher, map[string]any{"socs": socs})
	if err != nil {
		return nil, fmt.Errorf("graph: related: %w", err)
	}

	byFrom := make(map[string][]Relation, len(socs))
	for _, rec := range recs {
		r := relationFromRecord(rec)
		if perOccupation > 0 && len(byFrom[r.FromSOC]) >= perOccupation {
			continue
		}
		byFrom[r.FromSOC] = append(byFrom[r.FromSOC], r)
	}
	var out []Relation
	for _, soc := range socs {
		out = append(out, byFrom[soc]...)
		delete(byFrom, soc)
	}
	return out, nil
}

func relationFromRecord(rec *neo4j.Record) Relation {
	props := make(map[string]any, len(rec.Keys))
	for i, k := range rec.Keys {
		props[k] = rec.Values[i]
	}
	return Relation{
		FromSOC:   strProp(props, "from_soc"),
		FromTitle: strProp(props, "from_title"),
		ToSOC:     strProp(props, "to_soc"),
		ToTitle:   strProp(props, "to_title"),
		Tier:      strProp(props, "tier"),
		Index:     intProp(props, "idx"),
	}
}
