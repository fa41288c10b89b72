package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

func startTestServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server did not become ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func newTestBus(t *testing.T, srv *server.Server) *NATSEventBus {
	t.Helper()

	cfg := DefaultNATSConfig()
	cfg.URL = srv.ClientURL()
	cfg.StreamName = "PM_EVENTS_TEST"

	bus, err := NewNATSEventBus(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestPublishSubscribe(t *testing.T) {
	srv := startTestServer(t)
	bus := newTestBus(t, srv)

	received := make(chan *Event, 1)
	err := bus.Subscribe(context.Background(), EventTypeNodeSummaryUpdated,
		EventHandlerFunc(func(_ context.Context, event *Event) error {
			received <- event
			return nil
		}))
	require.NoError(t, err)

	summary := &models.NodeSummary{NodeID: "node-1", Status: models.NodeStatusUp}
	event := NewNodeSummaryUpdatedEvent("test", summary, "monitoring/summary/nodes/node-1")
	require.NoError(t, bus.Publish(context.Background(), event))

	select {
	case got := <-received:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, "node-1", got.Payload["node_id"])
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeOnlyMatchingType(t *testing.T) {
	srv := startTestServer(t)
	bus := newTestBus(t, srv)

	var mu sync.Mutex
	var got []EventType
	err := bus.Subscribe(context.Background(), EventTypeNodeDown,
		EventHandlerFunc(func(_ context.Context, event *Event) error {
			mu.Lock()
			got = append(got, event.Type)
			mu.Unlock()
			return nil
		}))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewNodeStatusEvent("test", "node-1", models.NodeStatusDown)))
	require.NoError(t, bus.Publish(context.Background(), NewNodeStatusEvent("test", "node-2", models.NodeStatusUp)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == EventTypeNodeDown
	}, 10*time.Second, 100*time.Millisecond)
}

func TestPublishDuplicateID(t *testing.T) {
	srv := startTestServer(t)
	bus := newTestBus(t, srv)

	var mu sync.Mutex
	count := 0
	err := bus.Subscribe(context.Background(), EventTypeSystemSummaryUpdated,
		EventHandlerFunc(func(_ context.Context, _ *Event) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}))
	require.NoError(t, err)

	event := NewEvent(EventTypeSystemSummaryUpdated, "test", nil)
	require.NoError(t, bus.Publish(context.Background(), event))
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	}, 10*time.Second, 100*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "duplicate event id should be deduplicated by the stream")
}

func TestCloseIdempotent(t *testing.T) {
	srv := startTestServer(t)
	bus := newTestBus(t, srv)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Subscribe(context.Background(), EventTypeNodeUp,
		EventHandlerFunc(func(_ context.Context, _ *Event) error { return nil }))
	assert.Error(t, err)
}
