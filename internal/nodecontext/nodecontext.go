// Package nodecontext establishes the identity of the local node. The node
// id is generated once and persisted on disk so restarts keep the same
// coordination-store keys.
package nodecontext

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

const (
	defaultStateDir   = "/var/lib/performance-monitoring"
	nodeIDFile        = "node_id"
	machineIDPath     = "/etc/machine-id"
)

// Config controls where the local identity is kept.
type Config struct {
	// StateDir holds the persisted node id. Defaults to
	// /var/lib/performance-monitoring.
	StateDir string `mapstructure:"state_dir"`

	// Tags to advertise in the node context.
	Tags []string `mapstructure:"tags"`

	// Role and Cluster the node belongs to, as configured by the
	// deployment tooling.
	Role    string `mapstructure:"role"`
	Cluster string `mapstructure:"cluster_name"`
}

// Load builds the NodeContext of the local node, creating and persisting
// a fresh node id on first run.
func Load(cfg Config, logger *zap.Logger) (*models.NodeContext, error) {
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nodeID, created, err := loadOrCreateNodeID(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("Generated new node id", zap.String("node_id", nodeID))
	}

	fqdn, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolving hostname: %w", err)
	}

	return &models.NodeContext{
		MachineID: readMachineID(),
		NodeID:    nodeID,
		FQDN:      fqdn,
		Tags:      cfg.Tags,
		Status:    models.NodeStatusUp,
		Role:      cfg.Role,
		Cluster:   cfg.Cluster,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func loadOrCreateNodeID(stateDir string) (string, bool, error) {
	path := filepath.Join(stateDir, nodeIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, false, nil
		}
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("reading node id: %w", err)
	}

	id := uuid.New().String()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", false, fmt.Errorf("persisting node id: %w", err)
	}
	return id, true, nil
}

// readMachineID is best effort, the machine id is informational only.
func readMachineID() string {
	data, err := os.ReadFile(machineIDPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
