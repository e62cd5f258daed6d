//go:build integration

package natsutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

type ingestRequest struct {
	Type  string `json:"type"`
	Fresh bool   `json:"fresh"`
}

// A request republished once arrives a second time carrying retry count 1.
func TestNATS_RepublishCarriesRetryCount(t *testing.T) {
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	defer nc.Close()

	const subject = "karir.integ.ingest.request"
	ch := make(chan Delivery[ingestRequest], 2)
	sub, err := Subscribe(nc, subject, func(ctx context.Context, d Delivery[ingestRequest]) {
		if d.Retries == 0 {
			if err := Republish(ctx, nc, d.Msg, 1); err != nil {
				t.Errorf("Republish: %v", err)
			}
		}
		ch <- d
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, subject, ingestRequest{Type: "tasks", Fresh: true}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for want := 0; want < 2; want++ {
		select {
		case got := <-ch:
			if got.Retries != want || got.Value.Type != "tasks" || !got.Value.Fresh {
				t.Fatalf("delivery %d: got %+v retries %d", want, got.Value, got.Retries)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for delivery %d", want)
		}
	}
}
