// Package store persists summary objects in the coordination store under
// the key layout declared by the schema registry.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

// SummaryStore defines read/write access to summary records. All writers
// and readers go through the registry-derived keys, so independent
// producers and consumers agree on layout.
type SummaryStore interface {
	// Node summaries
	PutNodeSummary(ctx context.Context, summary *models.NodeSummary) error
	GetNodeSummary(ctx context.Context, nodeID string) (*models.NodeSummary, error)
	ListNodeSummaries(ctx context.Context) ([]*models.NodeSummary, error)
	DeleteNodeSummary(ctx context.Context, nodeID string) error

	// Cluster summaries
	PutClusterSummary(ctx context.Context, summary *models.ClusterSummary) error
	GetClusterSummary(ctx context.Context, clusterID string) (*models.ClusterSummary, error)
	ListClusterSummaries(ctx context.Context) ([]*models.ClusterSummary, error)

	// System summaries
	PutSystemSummary(ctx context.Context, summary *models.SystemSummary) error
	GetSystemSummary(ctx context.Context, sdsType string) (*models.SystemSummary, error)
	ListSystemSummaries(ctx context.Context) ([]*models.SystemSummary, error)

	// Node contexts, written by node agents and read here to discover
	// the nodes a deployment contains.
	PutNodeContext(ctx context.Context, nc *models.NodeContext) error
	ListNodeContexts(ctx context.Context) ([]*models.NodeContext, error)

	// Health reports whether the coordination store is reachable.
	Health(ctx context.Context) error

	Close() error
}

// ErrNotFound is returned when no record exists at the derived key.
var ErrNotFound = errors.New("summary not found")

// NotFoundError wraps ErrNotFound with the key that missed.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no record at key %s", e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
