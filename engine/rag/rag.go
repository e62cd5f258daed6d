// Package rag answers career questions from the O*NET and jurusan
// collections. A question is translated, embedded in both languages,
// searched across every collection of the plan at once, and the merged
// context is handed to a chat model for the final reply.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/upi-karir/karir/engine/domain"
	"github.com/upi-karir/karir/engine/facts"
	"github.com/upi-karir/karir/engine/graph"
	"github.com/upi-karir/karir/engine/semantic"
	"github.com/upi-karir/karir/pkg/fn"
	"github.com/upi-karir/karir/pkg/metrics"
	"github.com/upi-karir/karir/pkg/resilience"
	"go.opentelemetry.io/otel"
)

const (
	// DefaultSearchTimeout bounds each collection search.
	DefaultSearchTimeout = 5 * time.Second
	// DefaultTemperature is used for the final generation.
	DefaultTemperature = 0.1
	// DefaultRelatedPerOccupation caps graph lines per seen occupation.
	DefaultRelatedPerOccupation = 3
	// maxGraphSeeds caps how many occupations are looked up in the graph.
	maxGraphSeeds = 5
)

// Translator renders a question in English.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Embedder produces a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the read side of the vector store.
type Searcher interface {
	Search(ctx context.Context, name string, vector []float32, topK int) ([]semantic.Hit, error)
}

// Generator produces the final reply.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// RelatedFinder looks up related occupations. *graph.OccupationGraph
// satisfies it.
type RelatedFinder interface {
	Related(ctx context.Context, socs []string, perOccupation int) ([]graph.Relation, error)
}

// Deps are the collaborators of a Service. Graph and Metrics are optional.
type Deps struct {
	Translator Translator
	Embedder   Embedder
	Searcher   Searcher
	Generator  Generator
	Graph      RelatedFinder
	Metrics    *metrics.Registry
	Logger     *slog.Logger
}

// Options tunes retrieval and generation.
type Options struct {
	Plan                 []Search
	SearchTimeout        time.Duration
	Temperature          float64
	RelatedPerOccupation int
	Breaker              resilience.BreakerOpts
}

// DefaultOptions returns the production plan and limits.
func DefaultOptions() Options {
	return Options{
		Plan:                 DefaultPlan(),
		SearchTimeout:        DefaultSearchTimeout,
		Temperature:          DefaultTemperature,
		RelatedPerOccupation: DefaultRelatedPerOccupation,
		Breaker:              resilience.DefaultBreakerOpts,
	}
}

// Answer is the result of one question.
type Answer struct {
	Question           string   `json:"question"`
	TranslatedQuestion string   `json:"translated_question"`
	Reply              string   `json:"reply"`
	Context            []string `json:"context"`
}

// Service is the query pipeline.
type Service struct {
	deps     Deps
	opts     Options
	log      *slog.Logger
	chat     *resilience.Breaker
	embedder *resilience.Breaker
	embed    fn.Stage[string, []float32]
}

// New validates deps and fills unset options from DefaultOptions.
func New(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Translator == nil:
		return nil, errors.New("rag: translator is required")
	case deps.Embedder == nil:
		return nil, errors.New("rag: embedder is required")
	case deps.Searcher == nil:
		return nil, errors.New("rag: searcher is required")
	case deps.Generator == nil:
		return nil, errors.New("rag: generator is required")
	}
	def := DefaultOptions()
	if opts.Plan == nil {
		opts.Plan = def.Plan
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = def.SearchTimeout
	}
	if opts.Temperature <= 0 {
		opts.Temperature = def.Temperature
	}
	if opts.RelatedPerOccupation <= 0 {
		opts.RelatedPerOccupation = def.RelatedPerOccupation
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Service{deps: deps, opts: opts, log: log}
	s.chat = s.breaker("chat")
	s.embedder = s.breaker("embedder")
	// Only transport errors count against the breaker. Empty vectors are
	// rejected in embedText.
	s.embed = fn.TracedStage("rag.embed", resilience.BreakerStage(s.embedder,
		func(ctx context.Context, text string) fn.Result[[]float32] {
			vec, err := deps.Embedder.Embed(ctx, text)
			if err != nil {
				return fn.Err[[]float32](err)
			}
			return fn.Ok(vec)
		}))
	return s, nil
}

func (s *Service) breaker(name string) *resilience.Breaker {
	opts := s.opts.Breaker
	opts.Name = name
	opts.OnTransition = func(name string, from, to resilience.State) {
		s.log.Warn("rag: breaker state changed", "collaborator", name, "from", from.String(), "to", to.String())
		if s.deps.Metrics != nil {
			s.deps.Metrics.Gauge(metrics.WithLabels("karir_breaker_open", "collaborator", name),
				"1 while the collaborator's breaker is not closed.").Set(boolGauge(to != resilience.StateClosed))
		}
	}
	return resilience.NewBreaker(opts)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Answer runs the whole pipeline for question. An invalid question fails
// with domain.ErrInvalidQuestion, a question neither embedding could be
// produced for with a *domain.UserFacingError, and a failed generation
// with a *domain.CollaboratorError. Every other collaborator failure only
// narrows the context.
func (s *Service) Answer(ctx context.Context, question string) (*Answer, error) {
	ctx, span := otel.Tracer("engine/rag").Start(ctx, "rag.answer")
	defer span.End()
	start := time.Now()

	ans, err := s.answer(ctx, question)
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidQuestion):
		status = "invalid"
	case errors.Is(err, domain.ErrCannotProcess):
		status = "unprocessable"
	default:
		status = "error"
		span.RecordError(err)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Counter(metrics.WithLabels("karir_rag_answers_total", "status", status),
			"Questions answered, by outcome.").Inc()
		s.deps.Metrics.Histogram("karir_rag_answer_seconds", "End-to-end answer latency.", metrics.DefaultBuckets).Since(start)
	}
	return ans, err
}

func (s *Service) answer(ctx context.Context, question string) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}
	log := s.log.With("question_len", len([]rune(question)))

	translated := s.translate(ctx, question, log)

	vecs := fn.FanOut(
		func() []float32 { return s.embedText(ctx, question, Original, log) },
		func() []float32 { return s.embedText(ctx, translated, English, log) },
	)
	vectors := [2][]float32{vecs[Original], vecs[English]}
	if len(vectors[Original]) == 0 && len(vectors[English]) == 0 {
		log.Warn("rag: no usable embedding")
		return nil, domain.NewCannotProcess()
	}
	for l, v := range vectors {
		if len(v) == 0 {
			other := vectors[1-l]
			log.Info("rag: embedding missing, using the other language", "language", Language(l).String())
			vectors[l] = other
		}
	}

	results := fn.ParMapResult(s.opts.Plan, len(s.opts.Plan), func(p Search) fn.Result[[]semantic.Hit] {
		return s.searchOne(ctx, p, vectors[p.Language], log)
	})

	lines, socs := s.merge(results, log)
	lines = fn.Unique(append(lines, s.related(ctx, socs, log)...))
	log.Debug("rag: context assembled", "lines", len(lines))

	reply, err := s.generate(ctx, FinalPrompt(JoinContext(lines), question))
	if err != nil {
		log.Error("rag: generation failed", "error", err)
		return nil, err
	}
	if lines == nil {
		lines = []string{}
	}
	return &Answer{
		Question:           question,
		TranslatedQuestion: translated,
		Reply:              reply,
		Context:            lines,
	}, nil
}

// translate falls back to the question itself on any failure.
func (s *Service) translate(ctx context.Context, question string, log *slog.Logger) string {
	var out string
	err := s.chat.Call(ctx, func(ctx context.Context) error {
		t, err := s.deps.Translator.Translate(ctx, question)
		out = t
		return err
	})
	if err != nil {
		log.Warn("rag: translation failed, using the question as is", "error", err)
		return question
	}
	out = cleanTranslation(out)
	if out == "" {
		log.Warn("rag: empty translation, using the question as is")
		return question
	}
	log.Debug("rag: translated", "translated", domain.Truncate(out, 80))
	return out
}

func (s *Service) embedText(ctx context.Context, text string, lang Language, log *slog.Logger) []float32 {
	vec, err := s.embed(ctx, text).Unwrap()
	if err == nil && len(vec) == 0 {
		err = domain.ErrEmptyEmbedding
	}
	if err != nil {
		log.Warn("rag: embed failed", "error", domain.NewCollaboratorError("embedder", "embed", err), "language", lang.String())
		return nil
	}
	return vec
}

func (s *Service) searchOne(ctx context.Context, p Search, vec []float32, log *slog.Logger) fn.Result[[]semantic.Hit] {
	stage := fn.TracedStage("rag.search", func(ctx context.Context, p Search) fn.Result[[]semantic.Hit] {
		ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
		start := time.Now()
		hits, err := s.deps.Searcher.Search(ctx, p.Collection.String(), vec, p.TopK)
		if s.deps.Metrics != nil {
			s.deps.Metrics.Histogram(metrics.WithLabels("karir_rag_search_seconds", "collection", p.Collection.String()),
				"Per-collection search latency.", metrics.DefaultBuckets).Since(start)
		}
		if err != nil {
			return fn.Err[[]semantic.Hit](domain.NewCollaboratorError("vector store", "search "+p.Collection.String(), err))
		}
		return fn.Ok(hits)
	})
	r := stage(ctx, p)
	if _, err := r.Unwrap(); err != nil {
		log.Warn("rag: search failed", "error", err, "collection", p.Collection.String())
		if s.deps.Metrics != nil {
			s.deps.Metrics.Counter(metrics.WithLabels("karir_rag_search_failures_total", "collection", p.Collection.String()),
				"Searches that contributed nothing because they failed.").Inc()
		}
	}
	return r
}

// merge renders hits in plan order, then store rank order, and collects
// the SOC codes they mention in first-seen order.
func (s *Service) merge(results []fn.Result[[]semantic.Hit], log *slog.Logger) ([]string, []string) {
	var lines, socs []string
	seenSOC := make(map[string]bool)
	for i, r := range results {
		hits, err := r.Unwrap()
		if err != nil {
			continue
		}
		c := s.opts.Plan[i].Collection
		for _, h := range hits {
			line, err := facts.RenderContext(c, h.Payload)
			if err != nil {
				log.Debug("rag: undecodable hit", "error", err, "collection", c.String(), "id", h.ID)
				continue
			}
			lines = append(lines, line)
			if soc, _ := h.Payload["soc_code"].(string); soc != "" && !seenSOC[soc] {
				seenSOC[soc] = true
				socs = append(socs, soc)
			}
		}
	}
	return fn.Unique(lines), socs
}

// related turns graph neighbours of the first few seen occupations into
// context lines.
func (s *Service) related(ctx context.Context, socs []string, log *slog.Logger) []string {
	if s.deps.Graph == nil || len(socs) == 0 {
		return nil
	}
	if len(socs) > maxGraphSeeds {
		socs = socs[:maxGraphSeeds]
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	rels, err := s.deps.Graph.Related(ctx, socs, s.opts.RelatedPerOccupation)
	if err != nil {
		log.Warn("rag: graph enrichment skipped", "error", err)
		return nil
	}
	return fn.Map(rels, graph.Relation.Line)
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	var reply string
	err := s.chat.Call(ctx, func(ctx context.Context) error {
		r, err := s.deps.Generator.Generate(ctx, prompt, s.opts.Temperature)
		reply = r
		return err
	})
	if err != nil {
		return "", domain.NewCollaboratorError("llm", "generate", err)
	}
	if strings.TrimSpace(reply) == "" {
		return NoResponse, nil
	}
	return reply, nil
}
