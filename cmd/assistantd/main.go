// Package main is the entry point for the assistantd daemon.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lifebow/assistantd/config"
	"github.com/lifebow/assistantd/internal/chat"
	"github.com/lifebow/assistantd/internal/dispatch"
	"github.com/lifebow/assistantd/internal/logging"
	"github.com/lifebow/assistantd/internal/server"
)

func main() {
	_ = godotenv.Load() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)

	completer, err := chat.New(chat.Options{RelayURL: cfg.RelayURL})
	if err != nil {
		slog.Error("failed to initialize completer", "error", err)
		os.Exit(1)
	}

	// The relay endpoint always runs against the providers directly; only
	// the REST API is subject to RELAY_URL indirection.
	srv := server.New(completer, dispatch.New())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "address", cfg.Server.Addr)

	if err := srv.Start(cfg.Server.Addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}
