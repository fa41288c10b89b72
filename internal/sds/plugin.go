// Package sds computes cluster and system rollups through plugins, one per
// storage data service type. Plugins are registered explicitly on the
// manager so the supported SDS set is visible at construction time.
package sds

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

// ErrNoPlugin is returned when no plugin is registered for an SDS type.
var ErrNoPlugin = errors.New("no sds plugin registered")

// ClusterInfo is the input a plugin needs to roll up one cluster.
type ClusterInfo struct {
	ClusterID string
	Name      string
	SDSName   models.SDSType

	// Member node summaries and their coordination-store keys. The keys
	// end up in ClusterSummary.NodeSummaries as references.
	NodeSummaries   []*models.NodeSummary
	NodeSummaryKeys []string

	// ServicesCount as reported by the per-node service checks.
	ServicesCount models.ServiceCounts

	// Detail collected by sds-specific tooling, merged into the
	// summary's sds_det.
	Detail models.SDSDetail
}

// Plugin rolls up summaries for one storage data service type.
type Plugin interface {
	// Name returns the SDS type this plugin serves.
	Name() models.SDSType

	// ClusterSummary computes the rollup of a single cluster.
	ClusterSummary(ctx context.Context, info ClusterInfo) (*models.ClusterSummary, error)

	// SystemSummary computes the deployment-wide rollup from the
	// cluster summaries of this SDS type.
	SystemSummary(ctx context.Context, summaries []*models.ClusterSummary) (*models.SystemSummary, error)
}

// Manager dispatches rollup computation to the plugin matching each
// cluster's SDS type.
type Manager struct {
	plugins map[models.SDSType]Plugin
	order   []models.SDSType
	logger  *zap.Logger
}

// NewManager registers the given plugins. Registering two plugins for the
// same SDS type is a programming error and rejected.
func NewManager(logger *zap.Logger, plugins ...Plugin) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		plugins: make(map[models.SDSType]Plugin, len(plugins)),
		logger:  logger,
	}
	for _, p := range plugins {
		if _, dup := m.plugins[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate sds plugin %q", p.Name())
		}
		m.plugins[p.Name()] = p
		m.order = append(m.order, p.Name())
	}
	return m, nil
}

// SupportedSDS lists the SDS types with a registered plugin.
func (m *Manager) SupportedSDS() []models.SDSType {
	out := make([]models.SDSType, len(m.order))
	copy(out, m.order)
	return out
}

// Plugin returns the plugin registered for the given SDS type.
func (m *Manager) Plugin(name models.SDSType) (Plugin, error) {
	p, ok := m.plugins[name]
	if !ok {
		return nil, fmt.Errorf("sds type %q: %w", name, ErrNoPlugin)
	}
	return p, nil
}

// ClusterSummary computes the rollup of one cluster via its SDS plugin.
func (m *Manager) ClusterSummary(ctx context.Context, info ClusterInfo) (*models.ClusterSummary, error) {
	p, err := m.Plugin(info.SDSName)
	if err != nil {
		return nil, err
	}
	return p.ClusterSummary(ctx, info)
}

// SystemSummaries groups cluster summaries by SDS type and computes one
// system summary per type. Clusters of types without a plugin are logged
// and skipped rather than failing the whole rollup.
func (m *Manager) SystemSummaries(ctx context.Context, summaries []*models.ClusterSummary) ([]*models.SystemSummary, error) {
	byType := make(map[models.SDSType][]*models.ClusterSummary)
	for _, cs := range summaries {
		byType[cs.SDSType] = append(byType[cs.SDSType], cs)
	}

	out := make([]*models.SystemSummary, 0, len(byType))
	for _, name := range m.order {
		group, ok := byType[name]
		if !ok {
			continue
		}
		system, err := m.plugins[name].SystemSummary(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("system summary for %s: %w", name, err)
		}
		out = append(out, system)
		delete(byType, name)
	}
	for name := range byType {
		m.logger.Warn("No sds plugin for cluster summaries, skipping",
			zap.String("sds_type", string(name)))
	}
	return out, nil
}
