package sds

import (
	"context"
	"time"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

// CephPlugin rolls up ceph-backed clusters.
type CephPlugin struct{}

// NewCephPlugin returns the ceph rollup plugin.
func NewCephPlugin() *CephPlugin {
	return &CephPlugin{}
}

func (p *CephPlugin) Name() models.SDSType {
	return models.SDSTypeCeph
}

func (p *CephPlugin) ClusterSummary(ctx context.Context, info ClusterInfo) (*models.ClusterSummary, error) {
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
		SDSType:       models.SDSTypeCeph,
		ClusterID:     info.ClusterID,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

func (p *CephPlugin) SystemSummary(ctx context.Context, summaries []*models.ClusterSummary) (*models.SystemSummary, error) {
	det := models.SDSDetail{}
	if services := mergeServicesCount(summaries); len(services) > 0 {
		det["services_count"] = services
	}

	return &models.SystemSummary{
		Utilization:  systemUtilization(summaries),
		HostsCount:   systemHostCounts(summaries),
		SDSDet:       det,
		SDSType:      models.SDSTypeCeph,
		ClusterCount: systemClusterCounts(summaries),
		UpdatedAt:    time.Now().UTC(),
	}, nil
}
