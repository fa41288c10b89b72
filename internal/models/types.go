package models

import (
	"time"
)

// NodeStatus represents the operational status of a monitored node
type NodeStatus string

const (
	NodeStatusUp       NodeStatus = "UP"
	NodeStatusDegraded NodeStatus = "DEGRADED"
	NodeStatusDown     NodeStatus = "DOWN"
)

// SDSType identifies the storage data service backing a cluster
type SDSType string

const (
	SDSTypeCeph    SDSType = "ceph"
	SDSTypeGluster SDSType = "gluster"
)

// ResourceUsage represents a point-in-time utilization reading.
// Total and Used are absolute values in the resource's native unit;
// PercentUsed is Used relative to Total in the range 0 to 100.
type ResourceUsage struct {
	Total       float64   `json:"total,omitempty"`
	Used        float64   `json:"used,omitempty"`
	PercentUsed float64   `json:"percent_used"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// HostCounts maps a host status to the number of hosts in that status.
// The "total" entry counts all hosts regardless of status.
type HostCounts map[string]int64

// ClusterCounts maps a cluster status to the number of clusters in that
// status, with a "total" entry covering all of them.
type ClusterCounts map[string]int64

// ServiceCounts maps a service name to its running/not_running counters.
type ServiceCounts map[string]map[string]int64

// SDSDetail carries storage-data-service specific summary detail. Its
// content is owned by the SDS plugin that produced it.
type SDSDetail map[string]interface{}

// NodeSummary is a point-in-time rollup of a single monitored node.
type NodeSummary struct {
	Name         string        `json:"name"`
	NodeID       string        `json:"node_id"`
	Status       NodeStatus    `json:"status"`
	Role         string        `json:"role"`
	ClusterName  string        `json:"cluster_name"`
	CPUUsage     ResourceUsage `json:"cpu_usage"`
	MemoryUsage  ResourceUsage `json:"memory_usage"`
	StorageUsage ResourceUsage `json:"storage_usage"`
	AlertCount   int64         `json:"alert_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ClusterSummary is a rollup of a single cluster. NodeSummaries holds the
// coordination-store keys of the member NodeSummary records, not embedded
// copies, so node rollups are never duplicated across entities.
type ClusterSummary struct {
	Utilization   ResourceUsage `json:"utilization"`
	HostsCount    HostCounts    `json:"hosts_count"`
	NodeSummaries []string      `json:"node_summaries"`
	SDSDet        SDSDetail     `json:"sds_det"`
	SDSType       SDSType       `json:"sds_type"`
	ClusterID     string        `json:"cluster_id"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// SystemSummary is the deployment-wide rollup for one SDS type.
type SystemSummary struct {
	Utilization  ResourceUsage `json:"utilization"`
	HostsCount   HostCounts    `json:"hosts_count"`
	SDSDet       SDSDetail     `json:"sds_det"`
	SDSType      SDSType       `json:"sds_type"`
	ClusterCount ClusterCounts `json:"cluster_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NodeContext identifies a monitored node. It is written once by the node
// agent at startup and read by the aggregator to discover nodes.
type NodeContext struct {
	MachineID string     `json:"machine_id"`
	NodeID    string     `json:"node_id"`
	FQDN      string     `json:"fqdn"`
	Tags      []string   `json:"tags,omitempty"`
	Status    NodeStatus `json:"status"`
	Role      string     `json:"role,omitempty"`
	Cluster   string     `json:"cluster_name,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewHostCounts returns a HostCounts with the counters the rollup helpers
// always expect to be present.
func NewHostCounts() HostCounts {
	return HostCounts{
		"total": 0,
		"down":  0,
	}
}

// Add merges the counters of other into h.
func (h HostCounts) Add(other HostCounts) {
	for status, count := range other {
		h[status] += count
	}
}

// Combine accumulates another utilization reading into u and recomputes
// the percentage.
func (u *ResourceUsage) Combine(other ResourceUsage) {
	u.Total += other.Total
	u.Used += other.Used
	if u.Total > 0 {
		u.PercentUsed = u.Used * 100 / u.Total
	} else {
		u.PercentUsed = 0
	}
}
