package nodecontext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

func TestLoad_GeneratesAndPersistsNodeID(t *testing.T) {
	stateDir := t.TempDir()

	nc, err := Load(Config{StateDir: stateDir, Cluster: "test-cluster"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = uuid.Parse(nc.NodeID)
	assert.NoError(t, err, "generated node id must be a uuid")
	assert.Equal(t, models.NodeStatusUp, nc.Status)
	assert.Equal(t, "test-cluster", nc.Cluster)
	assert.NotEmpty(t, nc.FQDN)

	// A second load must reuse the persisted id.
	again, err := Load(Config{StateDir: stateDir}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, nc.NodeID, again.NodeID)
}

func TestLoad_ReusesExistingNodeIDFile(t *testing.T) {
	stateDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "node_id"), []byte("node-42\n"), 0o644))

	nc, err := Load(Config{StateDir: stateDir}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "node-42", nc.NodeID)
}

func TestLoad_RegeneratesOnEmptyFile(t *testing.T) {
	stateDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "node_id"), []byte("\n"), 0o644))

	nc, err := Load(Config{StateDir: stateDir}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotEmpty(t, nc.NodeID)
}
