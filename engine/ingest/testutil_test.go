package ingest

import (
	"context"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/upi-karir/karir/engine/graph"
	"github.com/upi-karir/karir/engine/jurusan"
	"github.com/upi-karir/karir/engine/onet"
	"github.com/upi-karir/karir/engine/semantic"
	"github.com/upi-karir/karir/pkg/resilience"
)

const testDim = 4

const occupationData = "O*NET-SOC Code\tTitle\tDescription\n" +
	"15-1252.00\tSoftware Developers\tResearch, design, and develop computer and network software.\n" +
	"15-1253.00\tSoftware Quality Assurance Analysts and Testers\tDevelop and execute software tests.\n" +
	"29-1141.00\tRegistered Nurses\tAssess patient health problems and needs.\n"

const analyzeTask = "Analyze user needs and software requirements to determine feasibility of design within time and cost constraints."

func writeRelease(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func tsv(lines ...string) string { return strings.Join(lines, "\n") + "\n" }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// hashEmbedder returns a deterministic, text-dependent vector.
type hashEmbedder struct {
	dim     int
	calls   atomic.Int32
	fail    map[string]error
	short   map[string]bool
	panicOn string
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if text == e.panicOn {
		panic("embedder exploded")
	}
	if err, ok := e.fail[text]; ok {
		return nil, err
	}
	dim := e.dim
	if e.short[text] {
		dim--
	}
	return hashVector(text, dim), nil
}

func hashVector(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	s := h.Sum64()
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32((s>>(8*uint(i)))&0xff) + 1
	}
	return v
}

// countingStore counts upserts on top of the in-process store.
type countingStore struct {
	*semantic.MemStore
	upserts  atomic.Int32
	setupErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemStore: semantic.NewMemStore()}
}

func (s *countingStore) Upsert(ctx context.Context, name string, points []semantic.Point) error {
	s.upserts.Add(1)
	return s.MemStore.Upsert(ctx, name, points)
}

func (s *countingStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if s.setupErr != nil {
		return s.setupErr
	}
	return s.MemStore.EnsureCollection(ctx, name, dim)
}

type recordingReporter struct {
	mu   sync.Mutex
	seen []Progress
}

func (r *recordingReporter) Report(_ context.Context, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, p)
}

func (r *recordingReporter) final() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Progress
	for _, p := range r.seen {
		if p.Done {
			out = append(out, p)
		}
	}
	return out
}

type fakeGraph struct {
	mu          sync.Mutex
	occupations []graph.Occupation
	relations   []graph.Relation
	zones       map[string]int
	err         error
}

func (g *fakeGraph) SaveOccupation(_ context.Context, o graph.Occupation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.occupations = append(g.occupations, o)
	return g.err
}

func (g *fakeGraph) SaveRelation(_ context.Context, r graph.Relation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.relations = append(g.relations, r)
	return g.err
}

func (g *fakeGraph) SetJobZone(_ context.Context, soc string, zone int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.zones == nil {
		g.zones = make(map[string]int)
	}
	g.zones[soc] = zone
	return g.err
}

type staticFeed struct {
	programs []jurusan.Program
	err      error
}

func (f staticFeed) Fetch(context.Context) ([]jurusan.Program, error) { return f.programs, f.err }

type harness struct {
	store    *countingStore
	embedder *hashEmbedder
	reporter *recordingReporter
	graph    *fakeGraph
}

func newHarness() *harness {
	return &harness{
		store:    newCountingStore(),
		embedder: &hashEmbedder{dim: testDim},
		reporter: &recordingReporter{},
		graph:    &fakeGraph{},
	}
}

func (h *harness) orchestrator(t *testing.T, src onet.Source, feed Feed, opts Options) *Orchestrator {
	t.Helper()
	if opts.Dim == 0 {
		opts.Dim = testDim
	}
	o, err := New(Deps{
		Source:   src,
		Feed:     feed,
		Embedder: h.embedder,
		Store:    h.store,
		Graph:    h.graph,
		Reporter: h.reporter,
		Throttle: resilience.NewThrottle(0),
		Logger:   quietLogger(),
	}, opts)
	require.NoError(t, err)
	return o
}

func stalePoint() semantic.Point {
	return semantic.Point{
		ID:      "00000000-0000-0000-0000-000000000001",
		Vector:  []float32{1, 1, 1, 1},
		Payload: map[string]any{"source": "stale"},
	}
}
