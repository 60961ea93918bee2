package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"verbatim/internal/config"
	"verbatim/internal/janitor"
	"verbatim/internal/metrics"
	"verbatim/internal/queue"
	"verbatim/internal/store"
	"verbatim/internal/transcribe"
	"verbatim/internal/worker"
)

func main() {
	// Initialize structured logging with JSON handler
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	if err := config.Load(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if config.ASRURL == "" {
		slog.Error("ASR_URL is required")
		os.Exit(1)
	}
	if config.HFAuthToken == "" {
		slog.Error("HF_AUTH_TOKEN is required")
		os.Exit(1)
	}

	st := store.New(config.Root)
	if err := st.EnsureLayout(); err != nil {
		slog.Error("Failed to create data layout", "root", config.Root, "error", err)
		os.Exit(1)
	}

	// One worker per root. A second instance exits instead of racing the
	// first for inbox files.
	lock, err := queue.Acquire(filepath.Join(st.WorkerRoot(), ".lock"))
	if err != nil {
		if errors.Is(err, queue.ErrLocked) {
			slog.Error("Another worker already owns this root", "root", config.Root)
		} else {
			slog.Error("Failed to acquire worker lock", "error", err)
		}
		os.Exit(1)
	}
	defer lock.Release()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down gracefully", "signal", sig)
		cancel()
	}()

	engine := transcribe.NewHTTPEngine(config.ASRURL, config.HFAuthToken, config.Device, config.BatchSize)
	if err := engine.Healthy(ctx); err != nil {
		slog.Warn("Transcription service not reachable yet", "url", config.ASRURL, "error", err)
	}

	go func() {
		if err := metrics.Serve(config.MetricsPort); err != nil {
			slog.Error("Metrics endpoint failed", "port", config.MetricsPort, "error", err)
		}
	}()

	go janitor.New(st).Run(ctx, janitor.DefaultInterval)

	w := worker.New(st, engine, worker.Config{
		Online:       config.Online,
		Device:       config.Device,
		StuckTimeout: time.Duration(config.StuckTimeout) * time.Second,
	})

	slog.Info("Worker started, waiting for jobs...",
		"root", config.Root, "device", config.Device, "online", config.Online)

	if err := w.Run(ctx); err != nil {
		if errors.Is(err, worker.ErrRestartRequested) {
			// The mps backend leaks memory across jobs; the supervisor
			// restarts us with a clean slate.
			slog.Info("Restart requested, exiting cleanly")
			lock.Release()
			os.Exit(0)
		}
		if !errors.Is(err, context.Canceled) {
			slog.Error("Worker loop failed", "error", err)
			lock.Release()
			os.Exit(1)
		}
	}
	slog.Info("Worker exited gracefully")
}
