// Package aggregator runs the periodic summarise loop: it refreshes the
// local node summary and rolls member summaries up into cluster and
// system summaries.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/GowthamShanmugam/performance-monitoring/internal/eventbus"
	"github.com/GowthamShanmugam/performance-monitoring/internal/history"
	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
	"github.com/GowthamShanmugam/performance-monitoring/internal/policy"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
	"github.com/GowthamShanmugam/performance-monitoring/internal/sds"
	"github.com/GowthamShanmugam/performance-monitoring/internal/store"
	"github.com/GowthamShanmugam/performance-monitoring/internal/telemetry"
)

// NodeStats is one reading of the local node's resource usage.
type NodeStats struct {
	CPU         models.ResourceUsage
	Memory      models.ResourceUsage
	Storage     models.ResourceUsage
	CollectedAt time.Time
}

// StatsProvider supplies the most recent stats reading for the local node.
// Collection itself happens outside this process.
type StatsProvider interface {
	NodeStats(ctx context.Context) (*NodeStats, error)
}

// AlertCounter reports the number of open alerts for a node.
type AlertCounter interface {
	AlertCount(ctx context.Context, nodeID string) (int64, error)
}

// ClusterRef names one cluster this deployment aggregates.
type ClusterRef struct {
	ClusterID string         `json:"cluster_id" yaml:"cluster_id" mapstructure:"cluster_id"`
	Name      string         `json:"name" yaml:"name" mapstructure:"name"`
	SDSType   models.SDSType `json:"sds_type" yaml:"sds_type" mapstructure:"sds_type"`
}

// Config controls the summarise loop.
type Config struct {
	Interval   time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	StaleAfter time.Duration `json:"stale_after" yaml:"stale_after" mapstructure:"stale_after"`

	// Source tags published events with the producing component.
	Source string `json:"source" yaml:"source" mapstructure:"source"`

	// RollupEnabled turns on the cluster and system rollup pass. Exactly
	// one instance per deployment should run with it enabled.
	RollupEnabled bool         `json:"rollup_enabled" yaml:"rollup_enabled" mapstructure:"rollup_enabled"`
	Clusters      []ClusterRef `json:"clusters" yaml:"clusters" mapstructure:"clusters"`
}

// DefaultConfig matches the 60 second collectd push interval.
func DefaultConfig() Config {
	return Config{
		Interval:      60 * time.Second,
		StaleAfter:    3 * time.Minute,
		Source:        "aggregator",
		RollupEnabled: true,
	}
}

// Deps carries the collaborators of the summarizer. Bus, History, Alerts
// and Telemetry may be nil.
type Deps struct {
	Store      store.SummaryStore
	Registry   *registry.Registry
	Bus        eventbus.EventBus
	History    *history.Store
	Classifier *policy.Classifier
	SDS        *sds.Manager
	Stats      StatsProvider
	Alerts     AlertCounter
	Node       *models.NodeContext
	Telemetry  *telemetry.Telemetry
	Logger     *zap.Logger
}

// Summarizer owns the periodic summary refresh.
type Summarizer struct {
	cfg  Config
	deps Deps

	lastStatus models.NodeStatus
	haveStatus bool
}

// New validates the dependencies and builds a summarizer.
func New(cfg Config, deps Deps) (*Summarizer, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("summary store is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("schema registry is required")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("status classifier is required")
	}
	if deps.SDS == nil {
		return nil, fmt.Errorf("sds manager is required")
	}
	if deps.Stats == nil {
		return nil, fmt.Errorf("stats provider is required")
	}
	if deps.Node == nil {
		return nil, fmt.Errorf("node context is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * cfg.Interval
	}
	if cfg.Source == "" {
		cfg.Source = "aggregator"
	}
	return &Summarizer{cfg: cfg, deps: deps}, nil
}

// Run registers the node context and ticks until ctx is cancelled. The
// first pass happens immediately.
func (s *Summarizer) Run(ctx context.Context) error {
	if err := s.deps.Store.PutNodeContext(ctx, s.deps.Node); err != nil {
		return fmt.Errorf("failed to register node context: %w", err)
	}

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Summarizer) tick(ctx context.Context) {
	start := time.Now()

	if err := s.Summarise(ctx); err != nil {
		s.deps.Logger.Error("summarise pass failed", zap.Error(err))
		if s.deps.Telemetry != nil {
			s.deps.Telemetry.IncrementCounter(ctx, "perfmon_summarise_failures_total")
		}
		return
	}

	if s.deps.Telemetry != nil {
		s.deps.Telemetry.RecordDuration(ctx, "perfmon_summarise", start)
	}
}

// Summarise performs one full pass: local node summary, then the cluster
// and system rollup when enabled.
func (s *Summarizer) Summarise(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "summarise")
	defer span()

	if err := s.summariseNode(ctx); err != nil {
		return err
	}
	if !s.cfg.RollupEnabled {
		return nil
	}
	return s.Rollup(ctx)
}

func (s *Summarizer) summariseNode(ctx context.Context) error {
	now := time.Now().UTC()
	node := s.deps.Node

	stats, err := s.deps.Stats.NodeStats(ctx)
	stale := err != nil || stats == nil || now.Sub(stats.CollectedAt) > s.cfg.StaleAfter
	if err != nil {
		s.deps.Logger.Warn("stats unavailable, marking node stale",
			zap.String("node_id", node.NodeID),
			zap.Error(err),
		)
	}
	if stats == nil {
		stats = &NodeStats{}
	}

	var alertCount int64
	if s.deps.Alerts != nil {
		if alertCount, err = s.deps.Alerts.AlertCount(ctx, node.NodeID); err != nil {
			s.deps.Logger.Warn("alert count unavailable", zap.Error(err))
			alertCount = 0
		}
	}

	status, err := s.deps.Classifier.Classify(ctx, policy.Input{
		CPUPercentUsed:     stats.CPU.PercentUsed,
		MemoryPercentUsed:  stats.Memory.PercentUsed,
		StoragePercentUsed: stats.Storage.PercentUsed,
		AlertCount:         alertCount,
		StatsStale:         stale,
	})
	if err != nil {
		return fmt.Errorf("failed to classify node status: %w", err)
	}

	summary := &models.NodeSummary{
		Name:         node.FQDN,
		NodeID:       node.NodeID,
		Status:       status,
		Role:         node.Role,
		ClusterName:  node.Cluster,
		CPUUsage:     stats.CPU,
		MemoryUsage:  stats.Memory,
		StorageUsage: stats.Storage,
		AlertCount:   alertCount,
		UpdatedAt:    now,
	}

	if err := s.deps.Store.PutNodeSummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to store node summary: %w", err)
	}

	key, err := s.deps.Registry.KeyFor(registry.ObjectNodeSummary, node.NodeID)
	if err != nil {
		return err
	}

	s.publish(ctx, eventbus.NewNodeSummaryUpdatedEvent(s.cfg.Source, summary, key))
	if !s.haveStatus || s.lastStatus != status {
		if s.haveStatus {
			s.publish(ctx, eventbus.NewNodeStatusEvent(s.cfg.Source, node.NodeID, status))
		}
		s.lastStatus = status
		s.haveStatus = true
	}
	s.record(ctx, registry.ObjectNodeSummary, key, summary)

	if s.deps.Telemetry != nil {
		attrs := []attribute.KeyValue{attribute.String("node_id", node.NodeID)}
		s.deps.Telemetry.SetGauge(ctx, "perfmon_node_cpu_percent_used", stats.CPU.PercentUsed, attrs...)
		s.deps.Telemetry.SetGauge(ctx, "perfmon_node_memory_percent_used", stats.Memory.PercentUsed, attrs...)
		s.deps.Telemetry.SetGauge(ctx, "perfmon_node_storage_percent_used", stats.Storage.PercentUsed, attrs...)
		s.deps.Telemetry.IncrementCounter(ctx, "perfmon_summaries_written_total",
			attribute.String("object", registry.ObjectNodeSummary))
	}

	s.deps.Logger.Debug("node summary refreshed",
		zap.String("node_id", node.NodeID),
		zap.String("status", string(status)),
	)
	return nil
}

// Rollup recomputes every configured cluster summary and the per-SDS
// system summaries from the node summaries currently in the store.
func (s *Summarizer) Rollup(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "rollup")
	defer span()

	nodeSummaries, err := s.deps.Store.ListNodeSummaries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list node summaries: %w", err)
	}

	byCluster := make(map[string][]*models.NodeSummary)
	for _, ns := range nodeSummaries {
		byCluster[ns.ClusterName] = append(byCluster[ns.ClusterName], ns)
	}

	var clusterSummaries []*models.ClusterSummary
	for _, ref := range s.cfg.Clusters {
		members := byCluster[ref.Name]
		if len(members) == 0 {
			s.deps.Logger.Warn("cluster has no node summaries",
				zap.String("cluster", ref.Name),
			)
		}

		keys := make([]string, 0, len(members))
		for _, member := range members {
			key, err := s.deps.Registry.KeyFor(registry.ObjectNodeSummary, member.NodeID)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}

		cs, err := s.deps.SDS.ClusterSummary(ctx, sds.ClusterInfo{
			ClusterID:       ref.ClusterID,
			Name:            ref.Name,
			SDSName:         ref.SDSType,
			NodeSummaries:   members,
			NodeSummaryKeys: keys,
		})
		if err != nil {
			return fmt.Errorf("failed to roll up cluster %s: %w", ref.Name, err)
		}

		if err := s.deps.Store.PutClusterSummary(ctx, cs); err != nil {
			return fmt.Errorf("failed to store cluster summary %s: %w", ref.ClusterID, err)
		}

		key, err := s.deps.Registry.KeyFor(registry.ObjectClusterSummary, cs.ClusterID)
		if err != nil {
			return err
		}
		s.publish(ctx, eventbus.NewClusterSummaryUpdatedEvent(s.cfg.Source, cs, key))
		s.record(ctx, registry.ObjectClusterSummary, key, cs)
		if s.deps.Telemetry != nil {
			s.deps.Telemetry.IncrementCounter(ctx, "perfmon_summaries_written_total",
				attribute.String("object", registry.ObjectClusterSummary))
		}

		clusterSummaries = append(clusterSummaries, cs)
	}

	systemSummaries, err := s.deps.SDS.SystemSummaries(ctx, clusterSummaries)
	if err != nil {
		return fmt.Errorf("failed to roll up system summaries: %w", err)
	}

	for _, ss := range systemSummaries {
		if err := s.deps.Store.PutSystemSummary(ctx, ss); err != nil {
			return fmt.Errorf("failed to store system summary %s: %w", ss.SDSType, err)
		}

		key, err := s.deps.Registry.KeyFor(registry.ObjectSystemSummary, string(ss.SDSType))
		if err != nil {
			return err
		}
		s.publish(ctx, eventbus.NewSystemSummaryUpdatedEvent(s.cfg.Source, ss, key))
		s.record(ctx, registry.ObjectSystemSummary, key, ss)
		if s.deps.Telemetry != nil {
			s.deps.Telemetry.IncrementCounter(ctx, "perfmon_summaries_written_total",
				attribute.String("object", registry.ObjectSystemSummary))
		}
	}
	return nil
}

func (s *Summarizer) publish(ctx context.Context, event *eventbus.Event) {
	if s.deps.Bus == nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, event); err != nil {
		s.deps.Logger.Warn("failed to publish event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (s *Summarizer) record(ctx context.Context, object, key string, payload interface{}) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.Record(ctx, object, key, payload); err != nil {
		s.deps.Logger.Warn("failed to record summary history",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (s *Summarizer) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if s.deps.Telemetry == nil {
		return ctx, func() {}
	}
	ctx, span := s.deps.Telemetry.StartSpan(ctx, name)
	return ctx, func() { span.End() }
}
