package sds

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(zaptest.NewLogger(t), NewCephPlugin(), NewGlusterPlugin())
	require.NoError(t, err)
	return m
}

func glusterCluster(id string, nodes ...*models.NodeSummary) ClusterInfo {
	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, "monitoring/summary/nodes/"+n.NodeID)
	}
	return ClusterInfo{
		ClusterID:       id,
		SDSName:         models.SDSTypeGluster,
		NodeSummaries:   nodes,
		NodeSummaryKeys: keys,
	}
}

func node(id string, status models.NodeStatus, storageTotal, storageUsed float64) *models.NodeSummary {
	return &models.NodeSummary{
		NodeID: id,
		Status: status,
		StorageUsage: models.ResourceUsage{
			Total:       storageTotal,
			Used:        storageUsed,
			PercentUsed: storageUsed * 100 / storageTotal,
		},
	}
}

func TestManager_SupportedSDS(t *testing.T) {
	m := newTestManager(t)
	assert.Equal(t, []models.SDSType{models.SDSTypeCeph, models.SDSTypeGluster}, m.SupportedSDS())
}

func TestManager_DuplicatePlugin(t *testing.T) {
	_, err := NewManager(zaptest.NewLogger(t), NewCephPlugin(), NewCephPlugin())
	assert.Error(t, err)
}

func TestManager_UnknownSDSType(t *testing.T) {
	m := newTestManager(t)

	_, err := m.ClusterSummary(context.Background(), ClusterInfo{SDSName: "lustre"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPlugin))
}

func TestClusterSummary_Rollup(t *testing.T) {
	m := newTestManager(t)

	info := glusterCluster("cluster-1",
		node("node-1", models.NodeStatusUp, 1000, 400),
		node("node-2", models.NodeStatusDown, 1000, 600),
	)
	info.ServicesCount = models.ServiceCounts{
		"glusterd": {"running": 1, "not_running": 1},
	}

	cs, err := m.ClusterSummary(context.Background(), info)
	require.NoError(t, err)

	assert.Equal(t, "cluster-1", cs.ClusterID)
	assert.Equal(t, models.SDSTypeGluster, cs.SDSType)
	assert.Equal(t, 2000.0, cs.Utilization.Total)
	assert.Equal(t, 1000.0, cs.Utilization.Used)
	assert.Equal(t, 50.0, cs.Utilization.PercentUsed)
	assert.Equal(t, int64(2), cs.HostsCount["total"])
	assert.Equal(t, int64(1), cs.HostsCount["down"])
	assert.Equal(t, []string{
		"monitoring/summary/nodes/node-1",
		"monitoring/summary/nodes/node-2",
	}, cs.NodeSummaries)
	assert.Contains(t, cs.SDSDet, "services_count")
}

func TestSystemSummaries_GroupsBySDSType(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	gluster1, err := m.ClusterSummary(ctx, glusterCluster("g-1",
		node("node-1", models.NodeStatusUp, 1000, 100)))
	require.NoError(t, err)
	gluster2, err := m.ClusterSummary(ctx, glusterCluster("g-2",
		node("node-2", models.NodeStatusDown, 1000, 300)))
	require.NoError(t, err)

	cephInfo := glusterCluster("c-1", node("node-3", models.NodeStatusUp, 500, 250))
	cephInfo.SDSName = models.SDSTypeCeph
	ceph1, err := m.ClusterSummary(ctx, cephInfo)
	require.NoError(t, err)

	systems, err := m.SystemSummaries(ctx, []*models.ClusterSummary{gluster1, gluster2, ceph1})
	require.NoError(t, err)
	require.Len(t, systems, 2)

	byType := map[models.SDSType]*models.SystemSummary{}
	for _, s := range systems {
		byType[s.SDSType] = s
	}

	glusterSys := byType[models.SDSTypeGluster]
	require.NotNil(t, glusterSys)
	assert.Equal(t, 2000.0, glusterSys.Utilization.Total)
	assert.Equal(t, 400.0, glusterSys.Utilization.Used)
	assert.Equal(t, 20.0, glusterSys.Utilization.PercentUsed)
	assert.Equal(t, int64(2), glusterSys.ClusterCount["total"])
	assert.Equal(t, int64(1), glusterSys.ClusterCount["degraded"])
	assert.Equal(t, int64(2), glusterSys.HostsCount["total"])
	assert.Equal(t, int64(1), glusterSys.HostsCount["down"])

	cephSys := byType[models.SDSTypeCeph]
	require.NotNil(t, cephSys)
	assert.Equal(t, int64(1), cephSys.ClusterCount["total"])
	assert.Equal(t, int64(0), cephSys.ClusterCount["degraded"])
}

func TestSystemSummaries_SkipsUnsupportedType(t *testing.T) {
	m := newTestManager(t)

	systems, err := m.SystemSummaries(context.Background(), []*models.ClusterSummary{
		{ClusterID: "x", SDSType: "lustre", HostsCount: models.NewHostCounts()},
	})
	require.NoError(t, err)
	assert.Empty(t, systems)
}

func TestGlusterSystemSummary_SumsVolumeCounters(t *testing.T) {
	p := NewGlusterPlugin()

	sys, err := p.SystemSummary(context.Background(), []*models.ClusterSummary{
		{SDSType: models.SDSTypeGluster, HostsCount: models.HostCounts{}, SDSDet: models.SDSDetail{"volumes_count": int64(3)}},
		{SDSType: models.SDSTypeGluster, HostsCount: models.HostCounts{}, SDSDet: models.SDSDetail{"volumes_count": float64(2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), sys.SDSDet["volumes_count"])
}
