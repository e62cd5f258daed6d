package ingest

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/upi-karir/karir/pkg/natsutil"
)

const (
	// RequestSubject starts an ingestion run.
	RequestSubject = "karir.ingest.request"
	// ProgressSubject carries Progress snapshots.
	ProgressSubject = "karir.ingest.progress"
	// DLQSubject receives requests that kept failing.
	DLQSubject = "karir.ingest.dlq"
	// MaxRetries before a request goes to the DLQ.
	MaxRetries = 3
)

// Request asks for a run over Type ("all" or a source type).
type Request struct {
	Type  string `json:"type"`
	Fresh bool   `json:"fresh"`
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

// StartConsumer runs o for every request on RequestSubject. A failed run is
// re-published with an incremented retry count until MaxRetries, then sent
// to DLQSubject. A request naming an unknown type goes to the DLQ at once.
func StartConsumer(nc *nats.Conn, o *Orchestrator, logger *slog.Logger) (*nats.Subscription, error) {
	log := logger
	if log == nil {
		log = slog.Default()
	}

	return natsutil.Subscribe(nc, RequestSubject, func(ctx context.Context, d natsutil.Delivery[Request]) {
		req := d.Value
		sel, err := ParseSelector(req.Type)
		if err != nil {
			log.Error("ingest: bad request", "error", err, "type", req.Type)
			deadLetter(ctx, nc, log, req, err, d.Retries)
			return
		}

		_, err = o.WithFresh(req.Fresh).Run(ctx, sel)
		if err == nil {
			log.Info("ingest: request done", "type", sel.String(), "fresh", req.Fresh)
			return
		}

		retries := d.Retries + 1
		log.Error("ingest: request failed", "error", err, "type", sel.String(), "retry", retries)
		if retries >= MaxRetries {
			deadLetter(ctx, nc, log, req, err, retries)
			return
		}
		if err := natsutil.Republish(ctx, nc, d.Msg, retries); err != nil {
			log.Error("ingest: retry publish failed", "error", err)
		}
	})
}

func deadLetter(ctx context.Context, nc *nats.Conn, log *slog.Logger, req Request, cause error, retries int) {
	msg := dlqMessage{Request: req, Error: cause.Error(), Retries: retries}
	if err := natsutil.Publish(ctx, nc, DLQSubject, msg); err != nil {
		log.Error("ingest: DLQ publish failed", "error", err)
	}
}
