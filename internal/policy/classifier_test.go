package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(context.Background(), "")
	require.NoError(t, err)
	return c
}

func TestClassify_Defaults(t *testing.T) {
	c := newDefaultClassifier(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input Input
		want  models.NodeStatus
	}{
		{"healthy", Input{CPUPercentUsed: 10, MemoryPercentUsed: 30, StoragePercentUsed: 40}, models.NodeStatusUp},
		{"stale stats", Input{StatsStale: true}, models.NodeStatusDown},
		{"storage pressure", Input{StoragePercentUsed: 92}, models.NodeStatusDegraded},
		{"memory pressure", Input{MemoryPercentUsed: 95}, models.NodeStatusDegraded},
		{"cpu pressure", Input{CPUPercentUsed: 97}, models.NodeStatusDegraded},
		{"open alerts", Input{AlertCount: 3}, models.NodeStatusDegraded},
		{"cpu below threshold", Input{CPUPercentUsed: 94}, models.NodeStatusUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClassifier_CustomRules(t *testing.T) {
	rules := `package perfmon.status

default status := "UP"

status := "DOWN" if {
	input.alert_count >= 10
}
`
	c, err := NewClassifier(context.Background(), rules)
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), Input{AlertCount: 10})
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusDown, got)
}

func TestNewClassifier_InvalidRules(t *testing.T) {
	_, err := NewClassifier(context.Background(), "package broken\nstatus :=")
	assert.Error(t, err)
}
