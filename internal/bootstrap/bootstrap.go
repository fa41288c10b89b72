// Package bootstrap assembles the service: configuration, logging,
// telemetry, stores, event bus, classifier, plugins, the summarise loop
// and the listeners.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GowthamShanmugam/performance-monitoring/internal/aggregator"
	"github.com/GowthamShanmugam/performance-monitoring/internal/api"
	"github.com/GowthamShanmugam/performance-monitoring/internal/config"
	"github.com/GowthamShanmugam/performance-monitoring/internal/eventbus"
	"github.com/GowthamShanmugam/performance-monitoring/internal/history"
	"github.com/GowthamShanmugam/performance-monitoring/internal/logging"
	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
	"github.com/GowthamShanmugam/performance-monitoring/internal/nodecontext"
	"github.com/GowthamShanmugam/performance-monitoring/internal/policy"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
	"github.com/GowthamShanmugam/performance-monitoring/internal/sds"
	"github.com/GowthamShanmugam/performance-monitoring/internal/server"
	"github.com/GowthamShanmugam/performance-monitoring/internal/store"
	"github.com/GowthamShanmugam/performance-monitoring/internal/telemetry"
)

// Bootstrap holds every assembled component of the monitoring service.
type Bootstrap struct {
	Config     *config.Config
	Logger     *zap.Logger
	Telemetry  *telemetry.Telemetry
	Registry   *registry.Registry
	Store      store.SummaryStore
	History    *history.Store
	Bus        eventbus.EventBus
	Node       *models.NodeContext
	Summarizer *aggregator.Summarizer
	Server     *server.Server

	cancelRun context.CancelFunc
}

// New returns an empty bootstrap. Call Initialize before Start.
func New() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and builds every component without
// starting any of them.
func (b *Bootstrap) Initialize(ctx context.Context, configFile string) error {
	cfg, err := b.loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	b.Config = cfg

	if err := logging.InitGlobal(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	b.Logger = logging.L()
	b.Logger.Info("configuration loaded",
		zap.String("config_file", configFile),
		zap.String("log_level", cfg.Logging.Level),
	)

	tel, err := telemetry.New(cfg.Telemetry, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	b.Telemetry = tel

	b.Registry = registry.New()

	st, err := store.NewEtcdStore(cfg.Store, b.Registry, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize coordination store: %w", err)
	}
	b.Store = st

	hist, err := history.New(ctx, cfg.History, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize summary history: %w", err)
	}
	b.History = hist

	bus, err := eventbus.NewEventBusFromConfig(&cfg.EventBus, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	b.Bus = bus

	node, err := nodecontext.Load(cfg.Node, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to load node context: %w", err)
	}
	b.Node = node

	classifier, err := policy.NewClassifier(ctx, policy.DefaultRules)
	if err != nil {
		return fmt.Errorf("failed to build status classifier: %w", err)
	}

	sdsManager, err := sds.NewManager(b.Logger, sds.NewCephPlugin(), sds.NewGlusterPlugin())
	if err != nil {
		return fmt.Errorf("failed to build sds manager: %w", err)
	}

	summarizer, err := aggregator.New(cfg.Aggregation, aggregator.Deps{
		Store:      b.Store,
		Registry:   b.Registry,
		Bus:        b.Bus,
		History:    b.History,
		Classifier: classifier,
		SDS:        sdsManager,
		Stats:      aggregator.NewStaticProvider(),
		Node:       b.Node,
		Telemetry:  b.Telemetry,
		Logger:     b.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build summarizer: %w", err)
	}
	b.Summarizer = summarizer

	apiHandler := api.NewHandler(b.Store, b.Registry, b.History, b.Logger)
	srv, err := server.New(cfg, apiHandler, b.Store, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	b.Server = srv

	return nil
}

// Start brings the service up: telemetry, listeners and the summarise
// loop.
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.Server == nil {
		return fmt.Errorf("bootstrap not initialized")
	}

	if err := b.Telemetry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}
	if err := b.Server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancelRun = cancel
	go func() {
		if err := b.Summarizer.Run(runCtx); err != nil && runCtx.Err() == nil {
			b.Logger.Error("summarise loop exited", zap.Error(err))
		}
	}()

	b.Logger.Info("all components started")
	return nil
}

// Stop tears the service down in reverse start order.
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.Logger == nil {
		return nil
	}
	b.Logger.Info("stopping components")

	if b.cancelRun != nil {
		b.cancelRun()
	}
	if b.Server != nil {
		if err := b.Server.Stop(ctx); err != nil {
			b.Logger.Error("failed to stop server", zap.Error(err))
		}
	}
	if b.Bus != nil {
		if err := b.Bus.Close(); err != nil {
			b.Logger.Error("failed to close event bus", zap.Error(err))
		}
	}
	if b.History != nil {
		if err := b.History.Close(ctx); err != nil {
			b.Logger.Error("failed to close summary history", zap.Error(err))
		}
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			b.Logger.Error("failed to close coordination store", zap.Error(err))
		}
	}
	if b.Telemetry != nil {
		if err := b.Telemetry.Stop(ctx); err != nil {
			b.Logger.Error("failed to stop telemetry", zap.Error(err))
		}
	}

	_ = b.Logger.Sync()
	return nil
}

func (b *Bootstrap) loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.Load()
}
