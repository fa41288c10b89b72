package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
)

// MemoryStore is an in-memory SummaryStore. It goes through the same
// registry-derived keys as the etcd store, so key semantics are identical.
// Used in dev mode and tests.
type MemoryStore struct {
	registry *registry.Registry

	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty in-memory store bound to the registry.
func NewMemoryStore(reg *registry.Registry) *MemoryStore {
	return &MemoryStore{
		registry: reg,
		data:     make(map[string][]byte),
	}
}

func (m *MemoryStore) put(object, id string, value interface{}) error {
	key, err := m.registry.KeyFor(object, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) get(object, id string, out interface{}) error {
	key, err := m.registry.KeyFor(object, id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	data, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return &NotFoundError{Key: key}
	}
	return json.Unmarshal(data, out)
}

func (m *MemoryStore) list(prefix string) [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for key := range m.data {
		if strings.HasPrefix(key, prefix+"/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([][]byte, 0, len(keys))
	for _, key := range keys {
		out = append(out, m.data[key])
	}
	return out
}

func (m *MemoryStore) PutNodeSummary(_ context.Context, summary *models.NodeSummary) error {
	return m.put(registry.ObjectNodeSummary, summary.NodeID, summary)
}

func (m *MemoryStore) GetNodeSummary(_ context.Context, nodeID string) (*models.NodeSummary, error) {
	var summary models.NodeSummary
	if err := m.get(registry.ObjectNodeSummary, nodeID, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (m *MemoryStore) ListNodeSummaries(context.Context) ([]*models.NodeSummary, error) {
	var out []*models.NodeSummary
	for _, data := range m.list(registry.NodeSummaryListKey) {
		var summary models.NodeSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			return nil, err
		}
		out = append(out, &summary)
	}
	return out, nil
}

func (m *MemoryStore) DeleteNodeSummary(_ context.Context, nodeID string) error {
	key, err := m.registry.KeyFor(registry.ObjectNodeSummary, nodeID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return &NotFoundError{Key: key}
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) PutClusterSummary(_ context.Context, summary *models.ClusterSummary) error {
	return m.put(registry.ObjectClusterSummary, summary.ClusterID, summary)
}

func (m *MemoryStore) GetClusterSummary(_ context.Context, clusterID string) (*models.ClusterSummary, error) {
	var summary models.ClusterSummary
	if err := m.get(registry.ObjectClusterSummary, clusterID, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (m *MemoryStore) ListClusterSummaries(context.Context) ([]*models.ClusterSummary, error) {
	var out []*models.ClusterSummary
	for _, data := range m.list(registry.ClusterSummaryListKey) {
		var summary models.ClusterSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			return nil, err
		}
		out = append(out, &summary)
	}
	return out, nil
}

func (m *MemoryStore) PutSystemSummary(_ context.Context, summary *models.SystemSummary) error {
	return m.put(registry.ObjectSystemSummary, string(summary.SDSType), summary)
}

func (m *MemoryStore) GetSystemSummary(_ context.Context, sdsType string) (*models.SystemSummary, error) {
	var summary models.SystemSummary
	if err := m.get(registry.ObjectSystemSummary, sdsType, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (m *MemoryStore) ListSystemSummaries(context.Context) ([]*models.SystemSummary, error) {
	var out []*models.SystemSummary
	for _, data := range m.list(registry.SystemSummaryListKey) {
		var summary models.SystemSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			return nil, err
		}
		out = append(out, &summary)
	}
	return out, nil
}

func (m *MemoryStore) PutNodeContext(_ context.Context, nc *models.NodeContext) error {
	data, err := json.Marshal(nc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[nodeContextKey(nc.NodeID)] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListNodeContexts(context.Context) ([]*models.NodeContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for key := range m.data {
		if strings.HasPrefix(key, NodeContextPrefix+"/") && strings.HasSuffix(key, "/NodeContext") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var out []*models.NodeContext
	for _, key := range keys {
		var nc models.NodeContext
		if err := json.Unmarshal(m.data[key], &nc); err != nil {
			return nil, err
		}
		out = append(out, &nc)
	}
	return out, nil
}

func (m *MemoryStore) Health(context.Context) error { return nil }
func (m *MemoryStore) Close() error                 { return nil }
