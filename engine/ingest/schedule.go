package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/upi-karir/karir/engine/facts"
)

// RefreshTimeout bounds one scheduled jurusan refresh.
const RefreshTimeout = 30 * time.Minute

// cronParser accepts standard 5-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs periodic ingestion jobs. Overlapping firings of the same
// job are skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{log: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: logger,
	}
}

// RefreshJurusan schedules a non-fresh jurusan run of o on spec.
func (s *Scheduler) RefreshJurusan(spec string, o *Orchestrator) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), RefreshTimeout)
		defer cancel()
		out, err := o.WithFresh(false).Run(ctx, Only(facts.Jurusan))
		if err != nil {
			s.log.Error("ingest: jurusan refresh failed", "error", err)
			return
		}
		t := out.Totals()
		s.log.Info("ingest: jurusan refreshed", "stored", t.Stored, "skipped", t.Skipped, "failed", t.Failed)
	})
	if err != nil {
		return fmt.Errorf("ingest: schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new firings and returns a context that is done once
// running jobs have finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Entries reports how many jobs are scheduled.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
