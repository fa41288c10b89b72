package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GowthamShanmugam/performance-monitoring/internal/eventbus"
	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
	"github.com/GowthamShanmugam/performance-monitoring/internal/policy"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
	"github.com/GowthamShanmugam/performance-monitoring/internal/sds"
	"github.com/GowthamShanmugam/performance-monitoring/internal/store"
)

// memStore is an in-memory SummaryStore for tests.
type memStore struct {
	mu       sync.Mutex
	nodes    map[string]*models.NodeSummary
	clusters map[string]*models.ClusterSummary
	systems  map[string]*models.SystemSummary
	contexts map[string]*models.NodeContext
}

func newMemStore() *memStore {
	return &memStore{
		nodes:    make(map[string]*models.NodeSummary),
		clusters: make(map[string]*models.ClusterSummary),
		systems:  make(map[string]*models.SystemSummary),
		contexts: make(map[string]*models.NodeContext),
	}
}

func (m *memStore) PutNodeSummary(_ context.Context, s *models.NodeSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[s.NodeID] = s
	return nil
}

func (m *memStore) GetNodeSummary(_ context.Context, nodeID string) (*models.NodeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.nodes[nodeID]
	if !ok {
		return nil, &store.NotFoundError{Key: nodeID}
	}
	return s, nil
}

func (m *memStore) ListNodeSummaries(_ context.Context) ([]*models.NodeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.NodeSummary, 0, len(m.nodes))
	for _, s := range m.nodes {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) DeleteNodeSummary(_ context.Context, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, nodeID)
	return nil
}

func (m *memStore) PutClusterSummary(_ context.Context, s *models.ClusterSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[s.ClusterID] = s
	return nil
}

func (m *memStore) GetClusterSummary(_ context.Context, clusterID string) (*models.ClusterSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.clusters[clusterID]
	if !ok {
		return nil, &store.NotFoundError{Key: clusterID}
	}
	return s, nil
}

func (m *memStore) ListClusterSummaries(_ context.Context) ([]*models.ClusterSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ClusterSummary, 0, len(m.clusters))
	for _, s := range m.clusters {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) PutSystemSummary(_ context.Context, s *models.SystemSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systems[string(s.SDSType)] = s
	return nil
}

func (m *memStore) GetSystemSummary(_ context.Context, sdsType string) (*models.SystemSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[sdsType]
	if !ok {
		return nil, &store.NotFoundError{Key: sdsType}
	}
	return s, nil
}

func (m *memStore) ListSystemSummaries(_ context.Context) ([]*models.SystemSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SystemSummary, 0, len(m.systems))
	for _, s := range m.systems {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) PutNodeContext(_ context.Context, nc *models.NodeContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[nc.NodeID] = nc
	return nil
}

func (m *memStore) ListNodeContexts(_ context.Context) ([]*models.NodeContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.NodeContext, 0, len(m.contexts))
	for _, nc := range m.contexts {
		out = append(out, nc)
	}
	return out, nil
}

func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

// memBus records published events.
type memBus struct {
	mu     sync.Mutex
	events []*eventbus.Event
}

func (b *memBus) Publish(_ context.Context, e *eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *memBus) PublishAsync(ctx context.Context, e *eventbus.Event) error {
	return b.Publish(ctx, e)
}

func (b *memBus) Subscribe(context.Context, eventbus.EventType, eventbus.EventHandler) error {
	return nil
}

func (b *memBus) Close() error { return nil }

func (b *memBus) byType(t eventbus.EventType) []*eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*eventbus.Event
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestSummarizer(t *testing.T, cfg Config, st store.SummaryStore, bus eventbus.EventBus, stats StatsProvider) *Summarizer {
	t.Helper()

	classifier, err := policy.NewClassifier(context.Background(), policy.DefaultRules)
	require.NoError(t, err)

	mgr, err := sds.NewManager(zaptest.NewLogger(t), sds.NewCephPlugin(), sds.NewGlusterPlugin())
	require.NoError(t, err)

	s, err := New(cfg, Deps{
		Store:      st,
		Registry:   registry.New(),
		Bus:        bus,
		Classifier: classifier,
		SDS:        mgr,
		Stats:      stats,
		Node: &models.NodeContext{
			NodeID:  "node-1",
			FQDN:    "host-1.example.com",
			Role:    "storage",
			Cluster: "prod",
			Status:  models.NodeStatusUp,
		},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return s
}

func TestSummariseHealthyNode(t *testing.T) {
	st := newMemStore()
	bus := &memBus{}
	stats := NewStaticProvider()
	stats.SetUsage(
		models.ResourceUsage{Total: 8, Used: 2, PercentUsed: 25},
		models.ResourceUsage{Total: 16000, Used: 4000, PercentUsed: 25},
		models.ResourceUsage{Total: 1000, Used: 400, PercentUsed: 40},
	)

	cfg := DefaultConfig()
	cfg.Clusters = []ClusterRef{{ClusterID: "cl-1", Name: "prod", SDSType: models.SDSTypeCeph}}

	s := newTestSummarizer(t, cfg, st, bus, stats)
	ctx := context.Background()
	require.NoError(t, st.PutNodeContext(ctx, s.deps.Node))
	require.NoError(t, s.Summarise(ctx))

	summary, err := st.GetNodeSummary(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusUp, summary.Status)
	assert.Equal(t, "prod", summary.ClusterName)
	assert.Equal(t, 40.0, summary.StorageUsage.PercentUsed)

	cs, err := st.GetClusterSummary(ctx, "cl-1")
	require.NoError(t, err)
	assert.Equal(t, models.SDSTypeCeph, cs.SDSType)
	assert.Equal(t, []string{"monitoring/summary/nodes/node-1"}, cs.NodeSummaries)
	assert.Equal(t, int64(1), cs.HostsCount["total"])
	assert.Equal(t, int64(0), cs.HostsCount["down"])

	ss, err := st.GetSystemSummary(ctx, "ceph")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ss.ClusterCount["total"])

	assert.Len(t, bus.byType(eventbus.EventTypeNodeSummaryUpdated), 1)
	assert.Len(t, bus.byType(eventbus.EventTypeClusterSummaryUpdated), 1)
	assert.Len(t, bus.byType(eventbus.EventTypeSystemSummaryUpdated), 1)
}

func TestSummariseStaleStatsMarksNodeDown(t *testing.T) {
	st := newMemStore()
	bus := &memBus{}
	stats := NewStaticProvider()
	stats.Set(NodeStats{
		Storage:     models.ResourceUsage{Total: 1000, Used: 400, PercentUsed: 40},
		CollectedAt: time.Now().Add(-time.Hour),
	})

	cfg := DefaultConfig()
	cfg.RollupEnabled = false

	s := newTestSummarizer(t, cfg, st, bus, stats)
	require.NoError(t, s.Summarise(context.Background()))

	summary, err := st.GetNodeSummary(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusDown, summary.Status)
}

func TestStatusTransitionEvents(t *testing.T) {
	st := newMemStore()
	bus := &memBus{}
	stats := NewStaticProvider()
	stats.SetUsage(
		models.ResourceUsage{PercentUsed: 10},
		models.ResourceUsage{PercentUsed: 10},
		models.ResourceUsage{PercentUsed: 10},
	)

	cfg := DefaultConfig()
	cfg.RollupEnabled = false

	s := newTestSummarizer(t, cfg, st, bus, stats)
	ctx := context.Background()

	require.NoError(t, s.Summarise(ctx))
	assert.Empty(t, bus.byType(eventbus.EventTypeNodeDown), "first pass sets the baseline without a transition event")

	stats.SetUsage(
		models.ResourceUsage{PercentUsed: 10},
		models.ResourceUsage{PercentUsed: 95},
		models.ResourceUsage{PercentUsed: 10},
	)
	require.NoError(t, s.Summarise(ctx))
	require.Len(t, bus.byType(eventbus.EventTypeNodeDown), 1)

	// A repeat pass with the same status must not emit another transition.
	require.NoError(t, s.Summarise(ctx))
	assert.Len(t, bus.byType(eventbus.EventTypeNodeDown), 1)

	stats.SetUsage(
		models.ResourceUsage{PercentUsed: 10},
		models.ResourceUsage{PercentUsed: 10},
		models.ResourceUsage{PercentUsed: 10},
	)
	require.NoError(t, s.Summarise(ctx))
	assert.Len(t, bus.byType(eventbus.EventTypeNodeUp), 1)
}

func TestRunRegistersNodeContext(t *testing.T) {
	st := newMemStore()
	stats := NewStaticProvider()
	stats.SetUsage(models.ResourceUsage{}, models.ResourceUsage{}, models.ResourceUsage{})

	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.RollupEnabled = false

	s := newTestSummarizer(t, cfg, st, &memBus{}, stats)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	contexts, err := st.ListNodeContexts(context.Background())
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "node-1", contexts[0].NodeID)
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{})
	assert.Error(t, err)
}
