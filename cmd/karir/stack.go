package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/upi-karir/karir/engine/embedcache"
	"github.com/upi-karir/karir/engine/graph"
	"github.com/upi-karir/karir/engine/ingest"
	"github.com/upi-karir/karir/engine/jurusan"
	"github.com/upi-karir/karir/engine/onet"
	"github.com/upi-karir/karir/engine/rag"
	"github.com/upi-karir/karir/engine/semantic"
	"github.com/upi-karir/karir/pkg/config"
	"github.com/upi-karir/karir/pkg/metrics"
	"github.com/upi-karir/karir/pkg/ollama"
	"github.com/upi-karir/karir/pkg/resilience"
)

// stack lazily connects collaborators and closes them in reverse order.
type stack struct {
	cfg *config.Config
	log *slog.Logger
	met *metrics.Registry

	embed   *embedcache.Cache
	store   *semantic.VectorStore
	graph   *graph.OccupationGraph
	graphOK bool
	closers []func() error
}

func newStack(cfg *config.Config, log *slog.Logger) *stack {
	return &stack{cfg: cfg, log: log, met: metrics.New()}
}

func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *stack) embedder() (*embedcache.Cache, error) {
	if s.embed != nil {
		return s.embed, nil
	}
	inner := ollama.NewEmbedClient(s.cfg.Ollama.URL, s.cfg.Ollama.EmbedModel)
	c, err := embedcache.Open(s.cfg.CacheDir, inner.Model(), inner, s.log)
	if err != nil {
		return nil, fmt.Errorf("embed cache: %w", err)
	}
	s.embed = c
	s.closers = append(s.closers, func() error {
		hits, misses := c.Stats()
		s.log.Info("embed cache closed", "hits", hits, "misses", misses)
		return c.Close()
	})
	return c, nil
}

func (s *stack) vectorStore() (*semantic.VectorStore, error) {
	if s.store != nil {
		return s.store, nil
	}
	vs, err := semantic.New(s.cfg.Qdrant.Addr, s.cfg.Qdrant.APIKey)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s.store = vs
	s.closers = append(s.closers, vs.Close)
	s.log.Info("connected to Qdrant", "addr", s.cfg.Qdrant.Addr)
	return vs, nil
}

// occupationGraph returns nil when no Neo4j URL is configured. A graph
// that cannot be reached is logged and treated as absent.
func (s *stack) occupationGraph(ctx context.Context) *graph.OccupationGraph {
	if s.graphOK || s.cfg.Neo4j.URL == "" {
		return s.graph
	}
	s.graphOK = true
	driver, err := graph.Connect(ctx, s.cfg.Neo4j.URL, s.cfg.Neo4j.User, s.cfg.Neo4j.Pass)
	if err != nil {
		s.log.Warn("neo4j unavailable, continuing without the occupation graph", "error", err)
		return nil
	}
	s.closers = append(s.closers, func() error { return driver.Close(context.Background()) })
	s.graph = graph.New(driver)
	s.log.Info("connected to Neo4j", "url", s.cfg.Neo4j.URL)
	return s.graph
}

func (s *stack) source() (onet.Source, error) {
	if !s.cfg.UsesBucket() {
		return onet.DirSource{Dir: s.cfg.Onet.Dir}, nil
	}
	src, err := onet.NewBucketSource(onet.BucketConfig{
		Endpoint:  s.cfg.Minio.Endpoint,
		AccessKey: s.cfg.Minio.AccessKey,
		SecretKey: s.cfg.Minio.SecretKey,
		UseSSL:    s.cfg.Minio.UseSSL,
		Bucket:    s.cfg.Onet.Bucket,
		Prefix:    s.cfg.Onet.Prefix,
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (s *stack) feed() ingest.Feed {
	if s.cfg.Jurusan.URL == "" {
		return nil
	}
	return jurusan.NewClient(s.cfg.Jurusan.URL, s.cfg.Jurusan.Token, jurusan.WithLogger(s.log))
}

func (s *stack) orchestrator(ctx context.Context, reporter ingest.Reporter) (*ingest.Orchestrator, error) {
	src, err := s.source()
	if err != nil {
		return nil, err
	}
	emb, err := s.embedder()
	if err != nil {
		return nil, err
	}
	vs, err := s.vectorStore()
	if err != nil {
		return nil, err
	}
	deps := ingest.Deps{
		Source:   src,
		Feed:     s.feed(),
		Embedder: emb,
		Store:    vs,
		Reporter: reporter,
		Throttle: resilience.NewThrottle(s.cfg.Ingest.EmbedInterval),
		Metrics:  s.met,
		Logger:   s.log,
	}
	if g := s.occupationGraph(ctx); g != nil {
		deps.Graph = g
	}
	return ingest.New(deps, ingest.Options{
		Dim:           s.cfg.Ollama.EmbedDim,
		Workers:       s.cfg.Ingest.Workers,
		ProgressEvery: s.cfg.Ingest.ProgressEvery,
	})
}

func (s *stack) ragService(ctx context.Context) (*rag.Service, error) {
	emb, err := s.embedder()
	if err != nil {
		return nil, err
	}
	vs, err := s.vectorStore()
	if err != nil {
		return nil, err
	}
	chat, err := ollama.NewChatClient(s.cfg.Ollama.URL, s.cfg.Ollama.ChatModel)
	if err != nil {
		return nil, err
	}
	llm := rag.NewChatLLM(chat)
	deps := rag.Deps{
		Translator: llm,
		Embedder:   emb,
		Searcher:   vs,
		Generator:  llm,
		Metrics:    s.met,
		Logger:     s.log,
	}
	if g := s.occupationGraph(ctx); g != nil {
		deps.Graph = g
	}
	opts := rag.DefaultOptions()
	opts.SearchTimeout = s.cfg.Query.SearchTimeout
	return rag.New(deps, opts)
}
