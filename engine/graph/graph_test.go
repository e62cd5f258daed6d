package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/upi-karir/karir/pkg/repo"
)

type run struct {
	cypher string
	params map[string]any
}

type scriptedResult struct {
	recs []*neo4j.Record
	pos  int
}

func (r *scriptedResult) Next(context.Context) bool {
	if r.pos >= len(r.recs) {
		return false
	}
	r.pos++
	return true
}
func (r *scriptedResult) Record() *neo4j.Record { return r.recs[r.pos-1] }
func (r *scriptedResult) Err() error            { return nil }

type scriptedSession struct {
	g *fakeGraph
}

func (s scriptedSession) Run(_ context.Context, cypher string, params map[string]any) (repo.Result, error) {
	s.g.runs = append(s.g.runs, run{cypher, params})
	if s.g.err != nil {
		return nil, s.g.err
	}
	return &scriptedResult{recs: s.g.recs}, nil
}
func (s scriptedSession) Close(context.Context) error { return nil }

type fakeGraph struct {
	runs []run
	recs []*neo4j.Record
	err  error
}

func (f *fakeGraph) sessions(context.Context) repo.Session { return scriptedSession{g: f} }

func relRecord(from, fromTitle, to, toTitle, tier string, idx int64) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"from_soc", "from_title", "to_soc", "to_title", "tier", "idx"},
		Values: []any{from, fromTitle, to, toTitle, tier, idx},
	}
}

func TestRelationLine(t *testing.T) {
	r := Relation{FromTitle: "Software Developers", ToTitle: "Web Developers", Tier: "Primary-Short"}
	want := "Pekerjaan terkait: Software Developers → Web Developers (Primary-Short)"
	if got := r.Line(); got != want {
		t.Fatalf("Line() = %q, want %q", got, want)
	}
	r.Tier = ""
	if got := r.Line(); strings.Contains(got, "(") {
		t.Fatalf("Line() without tier = %q", got)
	}
}

func TestOccupationMapping(t *testing.T) {
	m := occupationToMap(Occupation{SOCCode: "15-1252.00", Title: "Software Developers", JobZone: 4})
	if _, ok := m["job_zone"]; ok {
		t.Fatal("job_zone must not be merged from occupation rows")
	}
	o, err := occupationFromProps(map[string]any{"soc": "15-1252.00", "title": "Software Developers", "job_zone": int64(4)})
	if err != nil {
		t.Fatal(err)
	}
	if o.JobZone != 4 || o.Title != "Software Developers" {
		t.Fatalf("unexpected occupation: %+v", o)
	}
	if _, err := occupationFromProps(map[string]any{"title": "x"}); err == nil {
		t.Fatal("expected error for node without soc")
	}
}

func TestSaveOccupation(t *testing.T) {
	f := &fakeGraph{}
	g := NewWithSessions(f.sessions)
	if err := g.SaveOccupation(context.Background(), Occupation{SOCCode: "15-1252.00", Title: "Software Developers"}); err != nil {
		t.Fatal(err)
	}
	if len(f.runs) != 1 || !strings.HasPrefix(f.runs[0].cypher, "MERGE (n:Occupation {soc: $id})") {
		t.Fatalf("unexpected runs: %+v", f.runs)
	}
}

func TestSaveRelationParams(t *testing.T) {
	f := &fakeGraph{}
	g := NewWithSessions(f.sessions)
	err := g.SaveRelation(context.Background(), Relation{
		FromSOC: "15-1252.00", FromTitle: "Software Developers",
		ToSOC: "15-1253.00", ToTitle: "Software Quality Assurance Analysts",
		Tier: "Primary-Short", Index: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	p := f.runs[0].params
	if p["from"] != "15-1252.00" || p["to"] != "15-1253.00" || p["tier"] != "Primary-Short" || p["index"] != 1 {
		t.Fatalf("unexpected params: %+v", p)
	}
	if !strings.Contains(f.runs[0].cypher, "RELATED_TO") {
		t.Fatalf("unexpected cypher: %s", f.runs[0].cypher)
	}
}

func TestSetJobZoneError(t *testing.T) {
	f := &fakeGraph{err: errors.New("unavailable")}
	g := NewWithSessions(f.sessions)
	if err := g.SetJobZone(context.Background(), "15-1252.00", 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestRelatedGroupsByInputOrder(t *testing.T) {
	f := &fakeGraph{recs: []*neo4j.Record{
		relRecord("29-1141.00", "Registered Nurses", "29-1171.00", "Nurse Practitioners", "Primary-Short", 1),
		relRecord("15-1252.00", "Software Developers", "15-1253.00", "Software QA Analysts", "Primary-Short", 1),
		relRecord("15-1252.00", "Software Developers", "15-1254.00", "Web Developers", "Primary-Short", 2),
		relRecord("15-1252.00", "Software Developers", "15-1299.08", "Computer Systems Engineers", "Primary-Long", 3),
	}}
	g := NewWithSessions(f.sessions)

	got, err := g.Related(context.Background(), []string{"15-1252.00", "29-1141.00"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	var to []string
	for _, r := range got {
		to = append(to, r.ToSOC)
	}
	want := []string{"15-1253.00", "15-1254.00", "29-1171.00"}
	if strings.Join(to, ",") != strings.Join(want, ",") {
		t.Fatalf("Related order = %v, want %v", to, want)
	}
	if got[0].Index != 1 || got[0].Tier != "Primary-Short" {
		t.Fatalf("unexpected first relation: %+v", got[0])
	}
}

func TestRelatedEmptyInput(t *testing.T) {
	f := &fakeGraph{}
	g := NewWithSessions(f.sessions)
	got, err := g.Related(context.Background(), nil, 3)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
	if len(f.runs) != 0 {
		t.Fatal("no query expected for empty input")
	}
}
