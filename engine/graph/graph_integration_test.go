//go:build integration

package graph

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	ctx := context.Background()
	driver, err := Connect(ctx, envOr("NEO4J_URL", "neo4j://localhost:7687"), os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASS"))
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n:Occupation) WHERE n.soc STARTS WITH 'TEST-' DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestNeo4j_OccupationRoundTrip(t *testing.T) {
	g := New(testDriver(t))
	ctx := context.Background()

	if err := g.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := g.SaveOccupation(ctx, Occupation{SOCCode: "TEST-1", Title: "Software Developers"}); err != nil {
		t.Fatalf("SaveOccupation: %v", err)
	}
	if err := g.SetJobZone(ctx, "TEST-1", 4); err != nil {
		t.Fatalf("SetJobZone: %v", err)
	}
	// Re-merging must keep the job zone.
	if err := g.SaveOccupation(ctx, Occupation{SOCCode: "TEST-1", Title: "Software Developers"}); err != nil {
		t.Fatalf("SaveOccupation: %v", err)
	}
	got, err := g.Occupation(ctx, "TEST-1")
	if err != nil {
		t.Fatalf("Occupation: %v", err)
	}
	if got.JobZone != 4 {
		t.Fatalf("job zone = %d, want 4", got.JobZone)
	}
}

func TestNeo4j_Related(t *testing.T) {
	g := New(testDriver(t))
	ctx := context.Background()

	rels := []Relation{
		{FromSOC: "TEST-1", FromTitle: "Software Developers", ToSOC: "TEST-2", ToTitle: "Web Developers", Tier: "Primary-Short", Index: 2},
		{FromSOC: "TEST-1", FromTitle: "Software Developers", ToSOC: "TEST-3", ToTitle: "QA Analysts", Tier: "Primary-Short", Index: 1},
	}
	for _, r := range rels {
		if err := g.SaveRelation(ctx, r); err != nil {
			t.Fatalf("SaveRelation: %v", err)
		}
	}
	got, err := g.Related(ctx, []string{"TEST-1"}, 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(got) != 2 || got[0].ToSOC != "TEST-3" {
		t.Fatalf("unexpected relations: %+v", got)
	}
}
