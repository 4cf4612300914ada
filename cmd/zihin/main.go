package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/api"
	"github.com/MikeSquared-Agency/zihin/internal/app"
	"github.com/MikeSquared-Agency/zihin/internal/config"
	"github.com/MikeSquared-Agency/zihin/internal/hermes"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("zihin starting", "port", cfg.Port, "provider", cfg.Provider)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("failed to build components", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Seed techniques on first start, or again after an embedder change.
	if a.Retriever.Available() {
		n, err := a.Retriever.EnsureCatalog(ctx)
		if err != nil {
			slog.Warn("seeding techniques failed, retrieval stays catalog-only", "error", err)
		} else if n > 0 {
			slog.Info("techniques seeded", "count", n)
		}
	}

	srv := api.NewServer(cfg.Port, api.Deps{
		Analyzer:         a.Pipeline,
		Advisor:          a.Advisor,
		History:          a.Retriever,
		Provider:         a.Provider,
		BatchConcurrency: cfg.BatchConcurrency,
		VectorPing:       vectorPing(a),
	}, cfg.JWTSecret, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	if a.Hermes != nil {
		evt := hermes.NewAgentRegistered(strconv.Itoa(cfg.Port), a.Provider, cfg.VectorBackend, time.Now())
		if err := a.Hermes.Publish(hermes.SubjectAgentRegistered, evt); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("zihin ready", "port", cfg.Port, "auth", cfg.JWTSecret != "")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("zihin stopped")
}

func vectorPing(a *app.App) func(context.Context) error {
	if !a.Retriever.Available() {
		return nil
	}
	return a.VectorPing
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
