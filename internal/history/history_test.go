package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

func TestNewDisabled(t *testing.T) {
	store, err := New(context.Background(), Config{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "summary_history", cfg.Table)
	assert.Equal(t, "grpc://localhost:2136/local", cfg.Endpoint)
}

// TestIntegration exercises a real YDB instance. Set PM_YDB_ENDPOINT to run,
// e.g. PM_YDB_ENDPOINT=grpc://localhost:2136/local.
func TestIntegration(t *testing.T) {
	endpoint := os.Getenv("PM_YDB_ENDPOINT")
	if endpoint == "" {
		t.Skip("PM_YDB_ENDPOINT not set, skipping YDB integration test")
	}

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = endpoint
	cfg.Table = "summary_history_test"

	store, err := New(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close(ctx) }()

	key := "monitoring/summary/nodes/history-test-node"
	summary := &models.NodeSummary{
		NodeID: "history-test-node",
		Name:   "host-1.example.com",
		Status: models.NodeStatusUp,
	}

	require.NoError(t, store.Record(ctx, "node_summary", key, summary))
	time.Sleep(10 * time.Millisecond)
	summary.Status = models.NodeStatusDegraded
	require.NoError(t, store.Record(ctx, "node_summary", key, summary))

	snapshots, err := store.Recent(ctx, "node_summary", key, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(snapshots), 2)
	assert.Equal(t, key, snapshots[0].Key)
	assert.Contains(t, string(snapshots[0].Payload), "DEGRADED")
}
