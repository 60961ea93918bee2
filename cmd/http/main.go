package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"verbatim/internal/config"
	"verbatim/internal/endpoints"
	"verbatim/internal/media"
	"verbatim/internal/server"
	"verbatim/internal/session"
	"verbatim/internal/store"
)

func main() {
	// Initialize structured logging
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	if err := config.Load(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if config.Online && config.StorageSecret == "" {
		slog.Error("STORAGE_SECRET is required for online deployments")
		os.Exit(1)
	}

	st := store.New(config.Root)
	if err := st.EnsureLayout(); err != nil {
		slog.Error("Failed to create data layout", "root", config.Root, "error", err)
		os.Exit(1)
	}

	deps := endpoints.Deps{
		Store:    st,
		Sessions: session.NewManager(),
		Queue:    session.NewQueueView(st, media.NewEstimator(config.Online, config.Device)),
		Listener: session.NewListener(st),
	}

	// Create HTTP server
	srv := server.NewServer(config.Port, deps)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed to start", "error", err)
			cancel()
		}
	}()

	slog.Info("Verbatim HTTP server started", "port", config.Port, "root", config.Root)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	} else {
		slog.Info("Server exited gracefully")
	}
}
