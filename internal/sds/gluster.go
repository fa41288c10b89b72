package sds

import (
	"context"
	"time"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

// GlusterPlugin rolls up gluster-backed clusters. On top of the common
// rollups it accumulates volume and brick counters from the cluster
// detail.
type GlusterPlugin struct{}

// NewGlusterPlugin returns the gluster rollup plugin.
func NewGlusterPlugin() *GlusterPlugin {
	return &GlusterPlugin{}
}

func (p *GlusterPlugin) Name() models.SDSType {
	return models.SDSTypeGluster
}

func (p *GlusterPlugin) ClusterSummary(ctx context.Context, info ClusterInfo) (*models.ClusterSummary, error) {
	det := models.SDSDetail{}
	for k, v := range info.Detail {
		det[k] = v
	}
	if len(info.ServicesCount) > 0 {
		det["services_count"] = info.ServicesCount
	}

	return &models.ClusterSummary{
		Utilization:   clusterUtilization(info.NodeSummaries),
		HostsCount:    clusterHostCounts(info.NodeSummaries),
		NodeSummaries: info.NodeSummaryKeys,
		SDSDet:        det,
		SDSType:       models.SDSTypeGluster,
		ClusterID:     info.ClusterID,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

func (p *GlusterPlugin) SystemSummary(ctx context.Context, summaries []*models.ClusterSummary) (*models.SystemSummary, error) {
	det := models.SDSDetail{}
	if services := mergeServicesCount(summaries); len(services) > 0 {
		det["services_count"] = services
	}
	for _, counter := range []string{"volumes_count", "bricks_count"} {
		if total, ok := sumDetailCounter(summaries, counter); ok {
			det[counter] = total
		}
	}

	return &models.SystemSummary{
		Utilization:  systemUtilization(summaries),
		HostsCount:   systemHostCounts(summaries),
		SDSDet:       det,
		SDSType:      models.SDSTypeGluster,
		ClusterCount: systemClusterCounts(summaries),
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// sumDetailCounter adds up an int64 counter across cluster details.
func sumDetailCounter(summaries []*models.ClusterSummary, name string) (int64, bool) {
	var total int64
	found := false
	for _, cs := range summaries {
		raw, ok := cs.SDSDet[name]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case int64:
			total += v
			found = true
		case int:
			total += int64(v)
			found = true
		case float64:
			total += int64(v)
			found = true
		}
	}
	return total, found
}
