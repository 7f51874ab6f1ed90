package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/izavyalov-dev/jarforge/artifacts"
	"github.com/izavyalov-dev/jarforge/builders"
	"github.com/izavyalov-dev/jarforge/internal/config"
	"github.com/izavyalov-dev/jarforge/internal/observability"
	"github.com/izavyalov-dev/jarforge/orchestrator"
	"github.com/izavyalov-dev/jarforge/scheduler"
	"github.com/izavyalov-dev/jarforge/state"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var metricsListen string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build every missing version of every configured kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if metricsListen != "" {
				cfg.MetricsListen = metricsListen
			}
			return runAll(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve /metrics and /healthz on this address")
	return cmd
}

func runAll(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.NewLogger("jarforge")

	appRoot, err := filepath.Abs(cfg.AppRoot)
	if err != nil {
		return err
	}
	client := newEngineClient(cfg)
	registry := orchestrator.NewRegistry()
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	var (
		recorders orchestrator.MultiRecorder
		store     *state.Store
	)
	if cfg.DatabaseURL != "" {
		s, closeDB, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open build history: %w", err)
		}
		defer closeDB()
		store = s
		recorders = append(recorders, state.NewRecorder(store))
	}

	var archiver scheduler.LogArchiver
	if cfg.S3.Bucket != "" {
		uploader, err := artifacts.NewS3Uploader(ctx, artifacts.S3Config{
			Bucket: cfg.S3.Bucket,
			Prefix: cfg.S3.Prefix,
			Region: cfg.S3.Region,
		})
		if err != nil {
			return fmt.Errorf("configure log upload: %w", err)
		}
		archiver = recordingArchiver{uploader: uploader, store: store, logger: logger}
	}

	orch := orchestrator.New(client, orchestrator.Config{
		Image:        cfg.Image.Tag,
		AppRoot:      appRoot,
		SocketPath:   cfg.Engine.Socket,
		DevMode:      cfg.DevMode,
		LogTailLines: cfg.LogTailLines,
	}, registry, orchestrator.WithRecorder(recorders), orchestrator.WithMetrics(metrics))

	sched, err := scheduler.New(cfg, scheduler.Deps{
		Engine:   client,
		Runner:   orch,
		Registry: registry,
		Builders: builders.Default(nil),
		Archiver: archiver,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsListen != "" {
		server, err := startMetricsServer(cfg.MetricsListen, healthCheck(client, store), logger)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer server.Close()
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	controller := scheduler.NewController(registry, orch.AbortAll, nil)
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	controller.Watch(watchCtx, signals)

	if err := sched.Prepare(ctx); err != nil {
		return err
	}
	summary := sched.Run(ctx)
	controller.Wait()
	summary.Print(cmd.OutOrStdout())

	switch {
	case controller.Interrupted():
		return &exitError{code: scheduler.ExitCodeInterrupted, err: errors.New("interrupted")}
	case summary.HasFailures():
		return &exitError{code: exitFailure, err: errors.New("some builds failed")}
	}
	return nil
}

func healthCheck(client pinger, store *state.Store) observability.HealthCheck {
	return func(ctx context.Context) error {
		if _, err := client.Ping(ctx); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		if store != nil {
			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
		}
		return nil
	}
}
