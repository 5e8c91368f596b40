package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/shake-monitor/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/shake-monitor/internal/adapter/kafka"
	serialadapter "github.com/couchcryptid/shake-monitor/internal/adapter/serial"
	"github.com/couchcryptid/shake-monitor/internal/config"
	"github.com/couchcryptid/shake-monitor/internal/domain"
	"github.com/couchcryptid/shake-monitor/internal/observability"
	"github.com/couchcryptid/shake-monitor/internal/pipeline"
)

// source is a pipeline extractor that owns a connection.
type source interface {
	pipeline.BatchExtractor
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	tracker, err := domain.NewTracker(cfg.Thresholds)
	if err != nil {
		logger.Error("invalid shake thresholds", "error", err)
		os.Exit(1)
	}
	th := tracker.Thresholds()
	logger.Info("shake thresholds", "profile", cfg.ThresholdProfile, "t1", th.T1, "t2", th.T2, "t3", th.T3)

	var reader source
	switch cfg.SampleSource {
	case config.SourceSerial:
		reader, err = serialadapter.Open(cfg, logger)
		if err != nil {
			logger.Error("failed to open sample source", "error", err)
			os.Exit(1)
		}
	default:
		reader = kafkaadapter.NewReader(cfg, logger)
	}
	writer := kafkaadapter.NewWriter(cfg, logger)

	sessions := pipeline.NewSessionRegistry(tracker, cfg.SessionIdleTimeout, cfg.SessionWindow, logger, metrics)
	transformer := pipeline.NewTransformer(sessions, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize).WithExpirer(sessions)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, sessions, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the sample pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	// A closed sample source ends the pipeline on its own; shut down with it.
	select {
	case <-ctx.Done():
	case <-done:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	sessions.Close()
	if err := reader.Close(); err != nil {
		logger.Error("sample source close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
