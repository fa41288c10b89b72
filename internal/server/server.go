// Package server owns the service listeners: the HTTP API, the gRPC
// health endpoint and their TLS setup.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GowthamShanmugam/performance-monitoring/internal/api"
	"github.com/GowthamShanmugam/performance-monitoring/internal/config"
	"github.com/GowthamShanmugam/performance-monitoring/internal/store"
)

// Server runs the HTTP API and the gRPC health listener.
type Server struct {
	cfg    *config.Config
	apiH   *api.Handler
	store  store.SummaryStore
	logger *zap.Logger

	httpServer *http.Server
	grpcServer *grpc.Server
	healthSrv  *health.Server
	x509Source *workloadapi.X509Source

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// New builds the server around the API handler.
func New(cfg *config.Config, apiHandler *api.Handler, st store.SummaryStore, logger *zap.Logger) (*Server, error) {
	return &Server{
		cfg:      cfg,
		apiH:     apiHandler,
		store:    st,
		logger:   logger,
		shutdown: make(chan struct{}),
	}, nil
}

// Start brings up both listeners. It returns once they are accepting.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting monitoring service",
		zap.Int("http_port", s.cfg.Server.Port),
		zap.Int("grpc_port", s.cfg.Server.GRPCPort),
		zap.Bool("tls", s.cfg.Security.TLSEnabled),
	)

	tlsCfg, err := s.buildTLSConfig(ctx)
	if err != nil {
		return err
	}

	if err := s.startHTTPServer(tlsCfg); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startGRPCServer(tlsCfg); err != nil {
		return fmt.Errorf("failed to start gRPC server: %w", err)
	}

	s.wg.Add(1)
	go s.watchStoreHealth()

	s.logger.Info("monitoring service started")
	return nil
}

// Stop gracefully stops both listeners.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping monitoring service")
	close(s.shutdown)

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down HTTP server", zap.Error(err))
		}
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.x509Source != nil {
		_ = s.x509Source.Close()
	}

	s.wg.Wait()
	s.logger.Info("monitoring service stopped")
	return nil
}

// buildTLSConfig resolves the configured TLS mode into a server tls.Config.
// It returns nil when TLS is disabled.
func (s *Server) buildTLSConfig(ctx context.Context) (*tls.Config, error) {
	sec := s.cfg.Security
	switch {
	case !sec.TLSEnabled:
		return nil, nil

	case sec.IsSPIFFE():
		source, err := workloadapi.NewX509Source(ctx,
			workloadapi.WithClientOptions(workloadapi.WithAddr(sec.SPIFFESocketPath)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPIFFE X509 source: %w", err)
		}
		s.x509Source = source

		authorizer := tlsconfig.AuthorizeAny()
		if len(sec.AuthorizedIDs) > 0 {
			ids := make([]spiffeid.ID, 0, len(sec.AuthorizedIDs))
			for _, raw := range sec.AuthorizedIDs {
				id, err := spiffeid.FromString(raw)
				if err != nil {
					_ = source.Close()
					return nil, fmt.Errorf("invalid authorized SPIFFE ID %q: %w", raw, err)
				}
				ids = append(ids, id)
			}
			authorizer = tlsconfig.AuthorizeOneOf(ids...)
		}
		return tlsconfig.MTLSServerConfig(source, source, authorizer), nil

	default:
		cert, err := tls.LoadX509KeyPair(sec.CertFile, sec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}, nil
	}
}

func (s *Server) startHTTPServer(tlsCfg *tls.Config) error {
	router := mux.NewRouter()
	s.apiH.RegisterRoutes(router)

	perMinute := s.cfg.Server.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 100
	}
	burst := s.cfg.Server.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	limiter := api.NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      limiter.Middleware(api.CORSMiddleware(router)),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		TLSConfig:    tlsCfg,
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if tlsCfg != nil {
			err = s.httpServer.ServeTLS(listener, "", "")
		} else {
			err = s.httpServer.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) startGRPCServer(tlsCfg *tls.Config) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}

	var opts []grpc.ServerOption
	if tlsCfg != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	s.grpcServer = grpc.NewServer(opts...)

	s.healthSrv = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.healthSrv)
	s.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
	return nil
}

// watchStoreHealth mirrors coordination store reachability into the gRPC
// health status.
func (s *Server) watchStoreHealth() {
	defer s.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := s.store.Health(ctx)
			cancel()

			status := healthpb.HealthCheckResponse_SERVING
			if err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
				s.logger.Warn("coordination store unhealthy", zap.Error(err))
			}
			s.healthSrv.SetServingStatus("", status)
		}
	}
}
