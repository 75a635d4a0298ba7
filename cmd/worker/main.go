package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/rasterflow/internal/config"
	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/logging"
	"github.com/dunamismax/rasterflow/internal/storage"
	"github.com/dunamismax/rasterflow/internal/store"
	"github.com/dunamismax/rasterflow/internal/telemetry"
	"github.com/dunamismax/rasterflow/internal/webhook"
	"github.com/dunamismax/rasterflow/internal/worker"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	cfg := loader.Config()

	logger, err := logging.New("worker", cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	loader.Watch(func(next config.Config, e fsnotify.Event) {
		if err := logger.SetLevel(next.Log.Level); err != nil {
			logger.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name), zap.String("log_level", next.Log.Level))
	})

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "rasterflow-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	if err := encoder.Startup(); err != nil {
		return err
	}
	defer encoder.Shutdown()

	jobStore, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer jobStore.Close()

	storageClient, err := storage.NewClient(storage.Config(cfg.Storage))
	if err != nil {
		return err
	}

	srv, err := worker.NewServer(
		logger.Named("jobs"),
		cfg.Queue,
		cfg.Worker,
		storageClient,
		webhook.NewClient(webhook.Config(cfg.Webhook)),
		jobStore,
		jobStore,
	)
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.Worker.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("starting worker",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.Int("max_active_jobs", cfg.Worker.MaxActiveJobs),
		zap.String("queue", cfg.Queue.Name),
		zap.String("redis", cfg.Queue.RedisAddr),
		zap.String("job_store", cfg.Database.Driver),
	)

	// Run blocks until asynq sees SIGINT or SIGTERM.
	runErr := srv.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown failed", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("worker failed: %w", runErr)
	}
	return nil
}
