package sds

import (
	"strings"
	"time"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

// clusterUtilization sums the storage usage of the member nodes.
func clusterUtilization(nodes []*models.NodeSummary) models.ResourceUsage {
	var util models.ResourceUsage
	for _, node := range nodes {
		util.Combine(node.StorageUsage)
	}
	util.UpdatedAt = time.Now().UTC()
	return util
}

// clusterHostCounts counts member nodes status-wise. Every status seen
// gets a lowercased counter; "total" and "down" are always present.
func clusterHostCounts(nodes []*models.NodeSummary) models.HostCounts {
	counts := models.NewHostCounts()
	for _, node := range nodes {
		counts["total"]++
		switch node.Status {
		case models.NodeStatusDown:
			counts["down"]++
		default:
			counts[strings.ToLower(string(node.Status))]++
		}
		if node.AlertCount > 0 {
			counts["alerted"]++
		}
	}
	return counts
}

// systemUtilization accumulates the cluster utilizations of one SDS type.
func systemUtilization(summaries []*models.ClusterSummary) models.ResourceUsage {
	var util models.ResourceUsage
	for _, cs := range summaries {
		util.Combine(cs.Utilization)
	}
	util.UpdatedAt = time.Now().UTC()
	return util
}

// systemHostCounts merges the status-wise host counts of all clusters.
func systemHostCounts(summaries []*models.ClusterSummary) models.HostCounts {
	counts := models.NewHostCounts()
	for _, cs := range summaries {
		counts.Add(cs.HostsCount)
	}
	return counts
}

// systemClusterCounts counts clusters status-wise. A cluster is counted
// as degraded when any of its hosts is down or alerted.
func systemClusterCounts(summaries []*models.ClusterSummary) models.ClusterCounts {
	counts := models.ClusterCounts{"total": 0, "degraded": 0}
	for _, cs := range summaries {
		counts["total"]++
		if cs.HostsCount["down"] > 0 || cs.HostsCount["alerted"] > 0 {
			counts["degraded"]++
		}
	}
	return counts
}

// mergeServicesCount accumulates per-service status counters across
// clusters.
func mergeServicesCount(summaries []*models.ClusterSummary) models.ServiceCounts {
	merged := models.ServiceCounts{}
	for _, cs := range summaries {
		raw, ok := cs.SDSDet["services_count"]
		if !ok {
			continue
		}
		services, ok := raw.(models.ServiceCounts)
		if !ok {
			continue
		}
		for service, counters := range services {
			if merged[service] == nil {
				merged[service] = make(map[string]int64, len(counters))
			}
			for status, count := range counters {
				merged[service][status] += count
			}
		}
	}
	return merged
}
