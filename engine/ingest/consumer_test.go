package ingest

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upi-karir/karir/engine/facts"
	"github.com/upi-karir/karir/engine/onet"
	"github.com/upi-karir/karir/pkg/natsutil"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	require.True(t, srv.ReadyForConnections(3*time.Second), "nats not ready")
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func waitDLQ(t *testing.T, ch <-chan *nats.Msg) dlqMessage {
	t.Helper()
	select {
	case msg := <-ch:
		var d dlqMessage
		require.NoError(t, json.Unmarshal(msg.Data, &d))
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for DLQ message")
		return dlqMessage{}
	}
}

func TestConsumer_RunsRequest(t *testing.T) {
	nc := startTestNATS(t)
	dir := writeRelease(t, map[string]string{onet.FileOccupations: occupationData})
	h := newHarness()
	o := h.orchestrator(t, onet.DirSource{Dir: dir}, nil, Options{})

	o.reporter = Reporters{o.reporter, NewBusReporter(nc, quietLogger())}

	progress := make(chan *nats.Msg, 16)
	psub, err := nc.ChanSubscribe(ProgressSubject, progress)
	require.NoError(t, err)
	defer psub.Unsubscribe()

	sub, err := StartConsumer(nc, o, quietLogger())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, natsutil.Publish(context.Background(), nc, RequestSubject, Request{Type: "occupations", Fresh: true}))

	select {
	case msg := <-progress:
		var p Progress
		require.NoError(t, json.Unmarshal(msg.Data, &p))
		assert.Equal(t, facts.Occupations, p.SourceType)
		assert.True(t, p.Done)
		assert.Equal(t, 3, p.Stored)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for progress")
	}
	assert.Equal(t, 3, h.store.Count("occupations"))
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	nc := startTestNATS(t)
	h := newHarness()
	// No Occupation Data.txt: every attempt aborts.
	o := h.orchestrator(t, onet.DirSource{Dir: t.TempDir()}, nil, Options{})

	var attempts atomic.Int32
	rsub, err := nc.Subscribe(RequestSubject, func(*nats.Msg) { attempts.Add(1) })
	require.NoError(t, err)
	defer rsub.Unsubscribe()

	dlq := make(chan *nats.Msg, 1)
	dsub, err := nc.ChanSubscribe(DLQSubject, dlq)
	require.NoError(t, err)
	defer dsub.Unsubscribe()

	sub, err := StartConsumer(nc, o, quietLogger())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, natsutil.Publish(context.Background(), nc, RequestSubject, Request{Type: "tasks"}))

	d := waitDLQ(t, dlq)
	assert.Equal(t, MaxRetries, d.Retries)
	assert.Equal(t, "tasks", d.Request.Type)
	assert.NotEmpty(t, d.Error)
	require.Eventually(t, func() bool { return attempts.Load() == MaxRetries },
		2*time.Second, 10*time.Millisecond)
}

func TestConsumer_UnknownTypeGoesStraightToDLQ(t *testing.T) {
	nc := startTestNATS(t)
	h := newHarness()
	o := h.orchestrator(t, onet.DirSource{Dir: t.TempDir()}, nil, Options{})

	dlq := make(chan *nats.Msg, 1)
	dsub, err := nc.ChanSubscribe(DLQSubject, dlq)
	require.NoError(t, err)
	defer dsub.Unsubscribe()

	sub, err := StartConsumer(nc, o, quietLogger())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, natsutil.Publish(context.Background(), nc, RequestSubject, Request{Type: "vehicles"}))

	d := waitDLQ(t, dlq)
	assert.Equal(t, 0, d.Retries)
	assert.Equal(t, "vehicles", d.Request.Type)
}
