// Package main provides connectx-devserver, a local ConnectX-compatible
// backend for developing against the SDK.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/mintelligence/connectx-go/internal/config"
	"github.com/mintelligence/connectx-go/internal/devserver"
	"github.com/mintelligence/connectx-go/internal/logging"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "connectx-devserver",
		Short:         "Run a local ConnectX-compatible backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), config.Path(configPath))
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadDevServer(configPath)
	if err != nil {
		return err
	}

	log := logging.NewWithComponent(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	}, "devserver")

	var store devserver.Store
	if cfg.DatabaseURL != "" {
		pg, err := devserver.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
		store = pg
		log.Info().Msg("using postgres store")
	} else {
		store = devserver.NewMemoryStore()
		log.Info().Msg("using in-memory store")
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := devserver.NewRouter(devserver.Options{
		Tokens:   cfg.Tokens,
		Store:    store,
		Logger:   log,
		Registry: reg,
	})
	return devserver.Serve(ctx, cfg.Addr, router, log)
}
