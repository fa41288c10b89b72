// Package policy classifies node health from utilization readings using
// Rego rules, so deployments can tune what counts as degraded without
// rebuilding the agent.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

// Input is the evaluation input for one node.
type Input struct {
	CPUPercentUsed     float64
	MemoryPercentUsed  float64
	StoragePercentUsed float64
	AlertCount         int64

	// StatsStale is set when no fresh utilization reading is available
	// for the node.
	StatsStale bool
}

// DefaultRules is the built-in classification policy: a node with stale
// stats is down, a node over the utilization thresholds or with open
// alerts is degraded, everything else is up.
const DefaultRules = `package perfmon.status

default status := "UP"

status := "DOWN" if {
	input.stats_stale
}

status := "DEGRADED" if {
	not input.stats_stale
	input.storage_percent_used >= 90
}

status := "DEGRADED" if {
	not input.stats_stale
	input.memory_percent_used >= 90
}

status := "DEGRADED" if {
	not input.stats_stale
	input.cpu_percent_used >= 95
}

status := "DEGRADED" if {
	not input.stats_stale
	input.alert_count > 0
}
`

const statusQuery = "data.perfmon.status.status"

// Classifier evaluates a prepared status policy.
type Classifier struct {
	query rego.PreparedEvalQuery
}

// NewClassifier compiles the given Rego module. An empty module selects
// DefaultRules.
func NewClassifier(ctx context.Context, module string) (*Classifier, error) {
	if module == "" {
		module = DefaultRules
	}

	query, err := rego.New(
		rego.Query(statusQuery),
		rego.Module("status.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compiling status policy: %w", err)
	}

	return &Classifier{query: query}, nil
}

// Classify returns the node status the policy assigns to the input.
func (c *Classifier) Classify(ctx context.Context, in Input) (models.NodeStatus, error) {
	rs, err := c.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"cpu_percent_used":     in.CPUPercentUsed,
		"memory_percent_used":  in.MemoryPercentUsed,
		"storage_percent_used": in.StoragePercentUsed,
		"alert_count":          in.AlertCount,
		"stats_stale":          in.StatsStale,
	}))
	if err != nil {
		return "", fmt.Errorf("evaluating status policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("status policy produced no result")
	}

	status, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("status policy returned %T, want string", rs[0].Expressions[0].Value)
	}
	return models.NodeStatus(status), nil
}
