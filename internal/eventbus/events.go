package eventbus

import "github.com/GowthamShanmugam/performance-monitoring/internal/models"

// NewNodeSummaryUpdatedEvent announces that the node summary stored at key was refreshed.
func NewNodeSummaryUpdatedEvent(source string, summary *models.NodeSummary, key string) *Event {
	return NewEvent(EventTypeNodeSummaryUpdated, source, map[string]interface{}{
		"node_id":      summary.NodeID,
		"node_name":    summary.Name,
		"status":       string(summary.Status),
		"cluster_name": summary.ClusterName,
		"key":          key,
	})
}

// NewClusterSummaryUpdatedEvent announces that the cluster summary stored at key was refreshed.
func NewClusterSummaryUpdatedEvent(source string, summary *models.ClusterSummary, key string) *Event {
	return NewEvent(EventTypeClusterSummaryUpdated, source, map[string]interface{}{
		"cluster_id": summary.ClusterID,
		"sds_type":   string(summary.SDSType),
		"key":        key,
	})
}

// NewSystemSummaryUpdatedEvent announces that the system summary stored at key was refreshed.
func NewSystemSummaryUpdatedEvent(source string, summary *models.SystemSummary, key string) *Event {
	return NewEvent(EventTypeSystemSummaryUpdated, source, map[string]interface{}{
		"sds_type":      string(summary.SDSType),
		"cluster_count": summary.ClusterCount,
		"key":           key,
	})
}

// NewNodeStatusEvent announces a node status transition. It emits node.down when
// the node left the UP state and node.up when it recovered.
func NewNodeStatusEvent(source, nodeID string, status models.NodeStatus) *Event {
	eventType := EventTypeNodeUp
	if status != models.NodeStatusUp {
		eventType = EventTypeNodeDown
	}
	return NewEvent(eventType, source, map[string]interface{}{
		"node_id": nodeID,
		"status":  string(status),
	})
}
