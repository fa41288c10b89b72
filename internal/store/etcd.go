package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/etcd/client/pkg/v3/transport"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
)

const (
	defaultDialTimeout    = 5 * time.Second
	defaultRequestTimeout = 15 * time.Second
)

// EtcdConfig holds connection settings for the coordination store.
type EtcdConfig struct {
	Endpoints      []string      `mapstructure:"endpoints"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// TLS client material, all three must be set to enable TLS.
	CertFile      string `mapstructure:"cert_file"`
	KeyFile       string `mapstructure:"key_file"`
	TrustedCAFile string `mapstructure:"trusted_ca_file"`
}

// EtcdStore implements SummaryStore on top of etcd v3.
type EtcdStore struct {
	client   *clientv3.Client
	registry *registry.Registry
	timeout  time.Duration
	logger   *zap.Logger
}

// NewEtcdStore connects to etcd and returns a store bound to the given
// schema registry.
func NewEtcdStore(cfg EtcdConfig, reg *registry.Registry, logger *zap.Logger) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []string{"127.0.0.1:2379"}
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" && cfg.TrustedCAFile != "" {
		tlsInfo := transport.TLSInfo{
			CertFile:      cfg.CertFile,
			KeyFile:       cfg.KeyFile,
			TrustedCAFile: cfg.TrustedCAFile,
		}
		tlsConfig, err := tlsInfo.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("loading etcd TLS config: %w", err)
		}
		clientCfg.TLS = tlsConfig
	}

	client, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to etcd: %w", err)
	}

	logger.Info("Connected to coordination store",
		zap.Strings("endpoints", cfg.Endpoints))

	return &EtcdStore{
		client:   client,
		registry: reg,
		timeout:  cfg.RequestTimeout,
		logger:   logger,
	}, nil
}

// PutNodeSummary writes the summary at monitoring/summary/nodes/{node_id}.
func (s *EtcdStore) PutNodeSummary(ctx context.Context, summary *models.NodeSummary) error {
	key, err := s.registry.KeyFor(registry.ObjectNodeSummary, summary.NodeID)
	if err != nil {
		return err
	}
	return s.put(ctx, key, summary)
}

// GetNodeSummary reads the summary of a single node.
func (s *EtcdStore) GetNodeSummary(ctx context.Context, nodeID string) (*models.NodeSummary, error) {
	key, err := s.registry.KeyFor(registry.ObjectNodeSummary, nodeID)
	if err != nil {
		return nil, err
	}
	var summary models.NodeSummary
	if err := s.get(ctx, key, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListNodeSummaries enumerates all node summaries under the listing key.
func (s *EtcdStore) ListNodeSummaries(ctx context.Context) ([]*models.NodeSummary, error) {
	values, err := s.list(ctx, registry.NodeSummaryListKey)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.NodeSummary, 0, len(values))
	for _, value := range values {
		var summary models.NodeSummary
		if err := json.Unmarshal(value, &summary); err != nil {
			return nil, fmt.Errorf("decoding node summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	return summaries, nil
}

// DeleteNodeSummary removes a node summary, for example when the node
// leaves the deployment.
func (s *EtcdStore) DeleteNodeSummary(ctx context.Context, nodeID string) error {
	key, err := s.registry.KeyFor(registry.ObjectNodeSummary, nodeID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// PutClusterSummary writes the summary at monitoring/summary/clusters/{cluster_id}.
func (s *EtcdStore) PutClusterSummary(ctx context.Context, summary *models.ClusterSummary) error {
	key, err := s.registry.KeyFor(registry.ObjectClusterSummary, summary.ClusterID)
	if err != nil {
		return err
	}
	return s.put(ctx, key, summary)
}

// GetClusterSummary reads the summary of a single cluster.
func (s *EtcdStore) GetClusterSummary(ctx context.Context, clusterID string) (*models.ClusterSummary, error) {
	key, err := s.registry.KeyFor(registry.ObjectClusterSummary, clusterID)
	if err != nil {
		return nil, err
	}
	var summary models.ClusterSummary
	if err := s.get(ctx, key, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListClusterSummaries enumerates all cluster summaries.
func (s *EtcdStore) ListClusterSummaries(ctx context.Context) ([]*models.ClusterSummary, error) {
	values, err := s.list(ctx, registry.ClusterSummaryListKey)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.ClusterSummary, 0, len(values))
	for _, value := range values {
		var summary models.ClusterSummary
		if err := json.Unmarshal(value, &summary); err != nil {
			return nil, fmt.Errorf("decoding cluster summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	return summaries, nil
}

// PutSystemSummary writes the summary at monitoring/summary/system/{sds_type}.
func (s *EtcdStore) PutSystemSummary(ctx context.Context, summary *models.SystemSummary) error {
	key, err := s.registry.KeyFor(registry.ObjectSystemSummary, string(summary.SDSType))
	if err != nil {
		return err
	}
	return s.put(ctx, key, summary)
}

// GetSystemSummary reads the deployment-wide summary for one SDS type.
func (s *EtcdStore) GetSystemSummary(ctx context.Context, sdsType string) (*models.SystemSummary, error) {
	key, err := s.registry.KeyFor(registry.ObjectSystemSummary, sdsType)
	if err != nil {
		return nil, err
	}
	var summary models.SystemSummary
	if err := s.get(ctx, key, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListSystemSummaries enumerates system summaries across SDS types.
func (s *EtcdStore) ListSystemSummaries(ctx context.Context) ([]*models.SystemSummary, error) {
	values, err := s.list(ctx, registry.SystemSummaryListKey)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.SystemSummary, 0, len(values))
	for _, value := range values {
		var summary models.SystemSummary
		if err := json.Unmarshal(value, &summary); err != nil {
			return nil, fmt.Errorf("decoding system summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	return summaries, nil
}

// NodeContextPrefix is the prefix under which node agents register
// themselves. The singular key is nodes/{node_id}/NodeContext.
const NodeContextPrefix = "nodes"

func nodeContextKey(nodeID string) string {
	return NodeContextPrefix + "/" + nodeID + "/NodeContext"
}

// PutNodeContext registers or refreshes a node's identity record.
func (s *EtcdStore) PutNodeContext(ctx context.Context, nc *models.NodeContext) error {
	if nc.NodeID == "" {
		return &registry.KeyDerivationError{Object: "NodeContext", Attr: "node_id"}
	}
	return s.put(ctx, nodeContextKey(nc.NodeID), nc)
}

// ListNodeContexts enumerates every registered node. Other per-node
// records share the nodes/ prefix, so only keys ending in /NodeContext
// are decoded.
func (s *EtcdStore) ListNodeContexts(ctx context.Context) ([]*models.NodeContext, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.Get(ctx, NodeContextPrefix+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", NodeContextPrefix, err)
	}
	contexts := make([]*models.NodeContext, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if !strings.HasSuffix(string(kv.Key), "/NodeContext") {
			continue
		}
		var nc models.NodeContext
		if err := json.Unmarshal(kv.Value, &nc); err != nil {
			return nil, fmt.Errorf("decoding node context %s: %w", kv.Key, err)
		}
		contexts = append(contexts, &nc)
	}
	return contexts, nil
}

// Health checks that the etcd cluster answers within the request timeout.
func (s *EtcdStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.AlarmList(ctx); err != nil {
		return fmt.Errorf("coordination store unhealthy: %w", err)
	}
	return nil
}

// Close releases the etcd client connection.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}

func (s *EtcdStore) put(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) get(ctx context.Context, key string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return &NotFoundError{Key: key}
	}
	if err := json.Unmarshal(resp.Kvs[0].Value, out); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// list reads every value below prefix. The trailing slash keeps sibling
// prefixes such as monitoring/summary/nodes-archive out of the result.
func (s *EtcdStore) list(ctx context.Context, prefix string) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.Get(ctx, prefix+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	values := make([][]byte, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		values = append(values, kv.Value)
	}
	return values, nil
}
