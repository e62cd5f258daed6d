// Package ingest loads the O*NET tables and the jurusan feed, turns their
// rows into facts and writes one embedded point per fact.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/upi-karir/karir/engine/domain"
	"github.com/upi-karir/karir/engine/facts"
	"github.com/upi-karir/karir/engine/graph"
	"github.com/upi-karir/karir/engine/jurusan"
	"github.com/upi-karir/karir/engine/onet"
	"github.com/upi-karir/karir/engine/semantic"
	"github.com/upi-karir/karir/pkg/metrics"
	"github.com/upi-karir/karir/pkg/resilience"
)

const (
	// DefaultDim is the vector size of nomic-embed-text.
	DefaultDim = 768
	// DefaultProgressEvery is how many rows pass between progress reports.
	DefaultProgressEvery = 100
)

// Embedder turns fact text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Feed lists the academic programs of the remote taxonomy.
type Feed interface {
	Fetch(ctx context.Context) ([]jurusan.Program, error)
}

// GraphWriter receives occupations, relations and job zones as they are
// ingested.
type GraphWriter interface {
	SaveOccupation(ctx context.Context, o graph.Occupation) error
	SaveRelation(ctx context.Context, r graph.Relation) error
	SetJobZone(ctx context.Context, soc string, zone int) error
}

// Deps holds the collaborators of a run. Feed, Graph, Reporter and
// Metrics are optional.
type Deps struct {
	Source   onet.Source
	Feed     Feed
	Embedder Embedder
	Store    semantic.Store
	Graph    GraphWriter
	Reporter Reporter
	Throttle *resilience.Throttle
	Metrics  *metrics.Registry
	Logger   *slog.Logger
}

// Options tunes a run.
type Options struct {
	Dim           int
	Fresh         bool
	Workers       int
	ProgressEvery int
}

// Status is the terminal state of a run.
type Status string

const (
	StatusDone    Status = "done"
	StatusAborted Status = "aborted"
)

// Outcome summarizes a run. Types holds one entry per processed type in
// selection order; an aborted run holds the types reached so far.
type Outcome struct {
	Status   Status        `json:"status"`
	Types    []Progress    `json:"types"`
	Duration time.Duration `json:"duration"`
}

// Totals sums the per-type tallies.
func (o Outcome) Totals() Progress {
	var t Progress
	for _, p := range o.Types {
		t.add(p)
	}
	return t
}

// Orchestrator runs ingestion. It is safe to reuse across runs but a
// single run must not overlap another on the same collections.
type Orchestrator struct {
	deps     Deps
	opts     Options
	log      *slog.Logger
	throttle *resilience.Throttle
	reporter Reporter
}

// New validates deps and applies defaults.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("ingest: source is required")
	case deps.Embedder == nil:
		return nil, errors.New("ingest: embedder is required")
	case deps.Store == nil:
		return nil, errors.New("ingest: vector store is required")
	}
	if opts.Dim <= 0 {
		opts.Dim = DefaultDim
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	throttle := deps.Throttle
	if throttle == nil {
		throttle = resilience.NewThrottle(resilience.DefaultInterval)
	}
	reporter := deps.Reporter
	if reporter == nil {
		reporter = LogReporter{Logger: log}
	}
	return &Orchestrator{deps: deps, opts: opts, log: log, throttle: throttle, reporter: reporter}, nil
}

// WithFresh returns a copy that recreates (fresh) or keeps collections.
func (o *Orchestrator) WithFresh(fresh bool) *Orchestrator {
	c := *o
	c.opts.Fresh = fresh
	return &c
}

// PointID derives the stable point id of a fact.
func PointID(f facts.Fact) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(f.PointKey())).String()
}

// Run loads the dictionary, builds the skill index when a selected type
// needs it, prepares the collections and then processes every selected
// type. Only fatal conditions return an error.
func (o *Orchestrator) Run(ctx context.Context, sel Selector) (out Outcome, err error) {
	start := time.Now()
	out.Status = StatusAborted
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewFatal("ingest", fmt.Errorf("panic: %v", r))
			out.Status = StatusAborted
		}
		out.Duration = time.Since(start)
		t := out.Totals()
		attrs := []any{
			"selector", sel.String(),
			"status", out.Status,
			"duration", out.Duration,
			"stored", t.Stored,
			"skipped", t.Skipped,
			"failed", t.Failed,
		}
		if err != nil {
			o.log.Error("ingest: aborted", append(attrs, "error", err)...)
			return
		}
		o.log.Info("ingest: finished", attrs...)
	}()

	types := sel.Collections()
	o.log.Info("ingest: start", "selector", sel.String(), "fresh", o.opts.Fresh, "workers", o.opts.Workers)

	dict, err := onet.LoadDictionary(ctx, o.deps.Source)
	if err != nil {
		return out, err
	}
	o.log.Info("ingest: dictionary loaded", "occupations", dict.Len())

	ix := o.buildIndex(ctx, types)
	if err := ctx.Err(); err != nil {
		return out, domain.NewFatal("ingest", err)
	}

	if err := o.setup(ctx, types); err != nil {
		return out, err
	}

	out.Types, err = o.runTypes(ctx, types, dict, ix)
	if err != nil {
		return out, err
	}
	out.Status = StatusDone
	return out, nil
}

// buildIndex returns nil when no selected type needs the index or when
// Skills.txt cannot be read; dependent types are then skipped.
func (o *Orchestrator) buildIndex(ctx context.Context, types []facts.Collection) *onet.Index {
	if !slices.ContainsFunc(types, facts.Collection.NeedsIndex) {
		return nil
	}
	t, err := onet.LoadTable(ctx, o.deps.Source, onet.FileSkills)
	if err != nil {
		o.log.Warn("ingest: skill index unavailable", "error", err)
		return nil
	}
	ix, err := onet.BuildIndex(t, onet.ColElementID, onet.ColSOCCode)
	if err != nil {
		o.log.Warn("ingest: skill index unavailable", "error", err)
		return nil
	}
	o.log.Info("ingest: skill index built", "skills", ix.Len())
	return ix
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

func (o *Orchestrator) setup(ctx context.Context, types []facts.Collection) error {
	for _, c := range types {
		var err error
		if o.opts.Fresh {
			err = o.deps.Store.CreateCollection(ctx, c.String(), o.opts.Dim)
		} else {
			err = o.deps.Store.EnsureCollection(ctx, c.String(), o.opts.Dim)
		}
		if err != nil {
			return domain.NewFatal("setup collection "+c.String(), err)
		}
	}
	if s, ok := o.deps.Graph.(schemaEnsurer); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			o.log.Warn("ingest: graph schema", "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) runTypes(ctx context.Context, types []facts.Collection, dict *onet.Dictionary, ix *onet.Index) ([]Progress, error) {
	results := make([]Progress, len(types))
	if o.opts.Workers <= 1 || len(types) == 1 {
		for i, c := range types {
			p, err := o.safeRunType(ctx, c, dict, ix)
			results[i] = p
			if err != nil {
				return results[:i+1], err
			}
		}
		return results, nil
	}

	pool, err := ants.NewPool(o.opts.Workers)
	if err != nil {
		return nil, domain.NewFatal("ingest pool", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for i, c := range types {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			p, err := o.safeRunType(ctx, c, dict, ix)
			results[i] = p
			if err != nil {
				cancel(err)
			}
		})
		if err != nil {
			wg.Done()
			cancel(domain.NewFatal("ingest submit", err))
			break
		}
	}
	wg.Wait()

	if cause := context.Cause(ctx); cause != nil {
		if domain.IsFatal(cause) {
			return results, cause
		}
		return results, domain.NewFatal("ingest", cause)
	}
	return results, nil
}

// safeRunType converts a collaborator panic into a fatal error.
func (o *Orchestrator) safeRunType(ctx context.Context, c facts.Collection, dict *onet.Dictionary, ix *onet.Index) (p Progress, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewFatal("ingest "+c.String(), fmt.Errorf("panic: %v", r))
		}
	}()
	return o.runType(ctx, c, dict, ix)
}

func (o *Orchestrator) runType(ctx context.Context, c facts.Collection, dict *onet.Dictionary, ix *onet.Index) (Progress, error) {
	p := Progress{SourceType: c}
	log := o.log.With("type", c.String())

	if c.NeedsIndex() && ix == nil {
		log.Warn("ingest: skipping type without skill index")
		return o.finish(ctx, p), nil
	}
	em, err := facts.NewEmitter(c, dict, ix)
	if err != nil {
		return p, domain.NewFatal("ingest "+c.String(), err)
	}

	rows, err := o.rows(ctx, em)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p, domain.NewFatal("ingest "+c.String(), ctxErr)
		}
		log.Warn("ingest: skipping unavailable source", "error", err)
		return o.finish(ctx, p), nil
	}
	p.Total = len(rows)
	log.Info("ingest: type start", "rows", p.Total)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return p, domain.NewFatal("ingest "+c.String(), err)
		}
		if err := o.processRow(ctx, em, row, &p, log); err != nil {
			return p, err
		}
		p.Processed++
		if p.Processed%o.opts.ProgressEvery == 0 {
			o.reporter.Report(ctx, p)
		}
	}
	return o.finish(ctx, p), nil
}

func (o *Orchestrator) finish(ctx context.Context, p Progress) Progress {
	p.Done = true
	o.reporter.Report(ctx, p)
	return p
}

func (o *Orchestrator) rows(ctx context.Context, em facts.Emitter) ([]onet.Row, error) {
	if em.Collection().Remote() {
		if o.deps.Feed == nil {
			return nil, fmt.Errorf("%s feed not configured: %w", em.Collection(), domain.ErrMissingSource)
		}
		programs, err := o.deps.Feed.Fetch(ctx)
		if err != nil {
			return nil, domain.NewCollaboratorError("jurusan", "fetch", err)
		}
		rows := make([]onet.Row, len(programs))
		for i, pr := range programs {
			rows[i] = pr.Row()
		}
		return rows, nil
	}
	t, err := onet.LoadTable(ctx, o.deps.Source, em.File())
	if err != nil {
		return nil, err
	}
	if err := t.Require(em.Columns()...); err != nil {
		return nil, err
	}
	return t.Rows, nil
}

// processRow returns an error only when the run must stop.
func (o *Orchestrator) processRow(ctx context.Context, em facts.Emitter, row onet.Row, p *Progress, log *slog.Logger) error {
	c := em.Collection()
	fs, err := em.Emit(row)
	if err != nil {
		p.Skipped++
		o.count(c, "skipped")
		var skip *domain.SkipError
		if errors.As(err, &skip) {
			log.Debug("ingest: skip", "source", skip.Source, "key", skip.Key, "text", skip.Text, "reason", skip.Reason, "line", row.Line)
		} else {
			log.Warn("ingest: emit failed", "error", err, "line", row.Line)
		}
		return nil
	}

	for _, f := range fs {
		if err := o.store(ctx, f); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.NewFatal("ingest "+c.String(), ctxErr)
			}
			p.Failed++
			o.count(c, "failed")
			log.Warn("ingest: store failed", "error", err, "key", f.Payload.Key(), "text", domain.Truncate(f.Text, 80))
		} else {
			p.Stored++
			o.count(c, "stored")
		}
		o.writeGraph(ctx, f, log)
	}
	return nil
}

func (o *Orchestrator) store(ctx context.Context, f facts.Fact) error {
	if err := o.throttle.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	vec, err := o.deps.Embedder.Embed(ctx, f.Text)
	if o.deps.Metrics != nil {
		o.deps.Metrics.Histogram("karir_embed_seconds", "Embedding call latency.", metrics.DefaultBuckets).Since(start)
	}
	if err != nil {
		return domain.NewCollaboratorError("embedder", "embed", err)
	}
	if len(vec) == 0 {
		return domain.NewCollaboratorError("embedder", "embed", domain.ErrEmptyEmbedding)
	}
	if len(vec) != o.opts.Dim {
		return fmt.Errorf("got %d, want %d: %w", len(vec), o.opts.Dim, domain.ErrDimensionMismatch)
	}

	payload := f.Payload.Fields()
	if _, ok := payload["text"]; !ok {
		payload["text"] = f.Text
	}
	pt := semantic.Point{ID: PointID(f), Vector: vec, Payload: payload}
	if err := o.deps.Store.Upsert(ctx, f.Collection().String(), []semantic.Point{pt}); err != nil {
		return domain.NewCollaboratorError("vector store", "upsert", err)
	}
	return nil
}

// writeGraph mirrors occupations, relations and job zones into the graph.
// Failures never affect the record.
func (o *Orchestrator) writeGraph(ctx context.Context, f facts.Fact, log *slog.Logger) {
	if o.deps.Graph == nil {
		return
	}
	var err error
	switch p := f.Payload.(type) {
	case facts.Occupation:
		err = o.deps.Graph.SaveOccupation(ctx, graph.Occupation{SOCCode: p.SOCCode, Title: p.Title, Description: p.Description})
	case facts.Relation:
		err = o.deps.Graph.SaveRelation(ctx, graph.Relation{
			FromSOC:   p.SOCCode,
			FromTitle: p.Title,
			ToSOC:     p.RelatedSOC,
			ToTitle:   p.RelatedTitle,
			Tier:      p.Tier,
			Index:     p.Index,
		})
	case facts.JobZone:
		err = o.deps.Graph.SetJobZone(ctx, p.SOCCode, p.Zone)
	default:
		return
	}
	if err != nil {
		log.Warn("ingest: graph write failed", "error", err, "key", f.Payload.Key())
	}
}

func (o *Orchestrator) count(c facts.Collection, status string) {
	if o.deps.Metrics == nil {
		return
	}
	name := metrics.WithLabels("karir_ingest_facts_total", "type", c.String(), "status", status)
	o.deps.Metrics.Counter(name, "Facts handled by ingestion, by outcome.").Inc()
}
