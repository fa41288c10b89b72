package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GowthamShanmugam/performance-monitoring/internal/bootstrap"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
)

const version = "0.3.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "performance-monitoring",
		Short: "Storage performance monitoring aggregator",
		Long: "Aggregates node, cluster and system utilization summaries into the\n" +
			"coordination store and serves them over HTTP.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to configuration file")

	root.AddCommand(
		newRunCommand(&configFile),
		newSchemaCommand(),
		newVersionCommand(),
	)
	return root
}

func newRunCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			bs := bootstrap.New()
			if err := bs.Initialize(ctx, *configFile); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			logger := bs.Logger
			logger.Info("performance monitoring starting",
				zap.String("version", version),
				zap.String("config_file", *configFile),
			)

			if err := bs.Start(ctx); err != nil {
				_ = bs.Stop(ctx)
				return fmt.Errorf("failed to start: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan
			logger.Info("shutdown signal received")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := bs.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}

			logger.Info("performance monitoring stopped")
			return nil
		},
	}
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the summary schema as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.New()
			out := map[string]interface{}{
				"version": reg.Version(),
				"objects": reg.Objects(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "performance-monitoring %s (schema %s)\n",
				version, registry.Version)
		},
	}
}
