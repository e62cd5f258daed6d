package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/upi-karir/karir/engine/facts"
	"github.com/upi-karir/karir/pkg/natsutil"
)

// Progress is the running tally of one source type.
type Progress struct {
	SourceType facts.Collection `json:"source_type"`
	Processed  int              `json:"processed"`
	Total      int              `json:"total"`
	Stored     int              `json:"stored"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Done       bool             `json:"done"`
}

func (p *Progress) add(o Progress) {
	p.Processed += o.Processed
	p.Total += o.Total
	p.Stored += o.Stored
	p.Skipped += o.Skipped
	p.Failed += o.Failed
}

// Reporter receives progress snapshots. Implementations must not block for long.
type Reporter interface {
	Report(ctx context.Context, p Progress)
}

// LogReporter writes progress through slog.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(_ context.Context, p Progress) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	msg := "ingest: progress"
	if p.Done {
		msg = "ingest: type done"
	}
	log.Info(msg,
		"type", p.SourceType,
		"processed", p.Processed,
		"total", p.Total,
		"stored", p.Stored,
		"skipped", p.Skipped,
		"failed", p.Failed,
	)
}

// BusReporter publishes progress on ProgressSubject.
type BusReporter struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewBusReporter creates a BusReporter on nc.
func NewBusReporter(nc *nats.Conn, logger *slog.Logger) *BusReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusReporter{nc: nc, logger: logger}
}

func (r *BusReporter) Report(ctx context.Context, p Progress) {
	if err := natsutil.Publish(ctx, r.nc, ProgressSubject, p); err != nil {
		r.logger.Warn("ingest: progress publish failed", "error", err, "type", p.SourceType)
	}
}

// Reporters fans a snapshot out to every reporter in order.
type Reporters []Reporter

func (rs Reporters) Report(ctx context.Context, p Progress) {
	for _, r := range rs {
		r.Report(ctx, p)
	}
}
