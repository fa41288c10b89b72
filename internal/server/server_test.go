package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GowthamShanmugam/performance-monitoring/internal/api"
	"github.com/GowthamShanmugam/performance-monitoring/internal/config"
	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
	"github.com/GowthamShanmugam/performance-monitoring/internal/store"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore, int, int) {
	t.Helper()

	st := store.NewMemoryStore(registry.New())
	handler := api.NewHandler(st, registry.New(), nil, zaptest.NewLogger(t))

	httpPort := freePort(t)
	grpcPort := freePort(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         httpPort,
			GRPCPort:     grpcPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}

	srv, err := New(cfg, handler, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	return srv, st, httpPort, grpcPort
}

func TestStartServeStop(t *testing.T) {
	srv, st, httpPort, grpcPort := newTestServer(t)

	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	defer func() { require.NoError(t, srv.Stop(ctx)) }()

	require.NoError(t, st.PutNodeSummary(ctx, &models.NodeSummary{
		NodeID: "node-1",
		Status: models.NodeStatusUp,
	}))

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/summary/nodes/node-1", httpPort))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary models.NodeSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "node-1", summary.NodeID)

	conn, err := grpc.NewClient(
		fmt.Sprintf("127.0.0.1:%d", grpcPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	healthResp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthResp.Status)
}

func TestStaticTLSMissingFiles(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	srv.cfg.Security = config.SecurityConfig{
		TLSEnabled: true,
		Mode:       "static",
		CertFile:   "/nonexistent/tls.crt",
		KeyFile:    "/nonexistent/tls.key",
	}

	err := srv.Start(context.Background())
	assert.Error(t, err)
}
