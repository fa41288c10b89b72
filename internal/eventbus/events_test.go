package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventTypeNodeSummaryUpdated, "aggregator", map[string]interface{}{"node_id": "node-1"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventTypeNodeSummaryUpdated, event.Type)
	assert.Equal(t, "aggregator", event.Source)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, "node-1", event.Payload["node_id"])
}

func TestEventMarshalRoundTrip(t *testing.T) {
	event := NewEvent(EventTypeClusterSummaryUpdated, "aggregator", map[string]interface{}{
		"cluster_id": "cl-1",
	})

	data, err := event.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, "cl-1", decoded.Payload["cluster_id"])
}

func TestNewNodeSummaryUpdatedEvent(t *testing.T) {
	summary := &models.NodeSummary{
		Name:        "host-1.example.com",
		NodeID:      "node-42",
		Status:      models.NodeStatusUp,
		ClusterName: "prod",
	}

	event := NewNodeSummaryUpdatedEvent("aggregator", summary, "monitoring/summary/nodes/node-42")
	assert.Equal(t, EventTypeNodeSummaryUpdated, event.Type)
	assert.Equal(t, "node-42", event.Payload["node_id"])
	assert.Equal(t, "UP", event.Payload["status"])
	assert.Equal(t, "monitoring/summary/nodes/node-42", event.Payload["key"])
}

func TestNewNodeStatusEvent(t *testing.T) {
	up := NewNodeStatusEvent("aggregator", "node-1", models.NodeStatusUp)
	assert.Equal(t, EventTypeNodeUp, up.Type)

	down := NewNodeStatusEvent("aggregator", "node-1", models.NodeStatusDown)
	assert.Equal(t, EventTypeNodeDown, down.Type)
	assert.Equal(t, "DOWN", down.Payload["status"])

	degraded := NewNodeStatusEvent("aggregator", "node-1", models.NodeStatusDegraded)
	assert.Equal(t, EventTypeNodeDown, degraded.Type)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.NATS.StreamName = ""
	assert.Error(t, cfg.Validate())

	disabled := &Config{Enabled: false}
	assert.NoError(t, disabled.Validate())
}
