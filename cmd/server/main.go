package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"agentgames"
	"agentgames/internal/backend"
	"agentgames/internal/config"
	"agentgames/internal/game"
	"agentgames/internal/game/arena"
	"agentgames/internal/game/connect4"
	"agentgames/internal/game/greedypig"
	"agentgames/internal/game/prisoners"
	"agentgames/internal/logging"
	"agentgames/internal/metrics"
	"agentgames/internal/render"
	"agentgames/internal/server"
	"agentgames/internal/session"
	"agentgames/internal/storage"
)

const (
	appVersion      = "dev"
	shutdownTimeout = 10 * time.Second
)

func main() {
	envFile := config.LoadDotEnv()
	cfg := config.Load()
	logger := logging.NewLogger(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.Metrics.ServiceName,
		Version: appVersion,
	})
	if envFile != "" {
		logging.Info(logger, "loaded environment file", "path", envFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logging.Error(logger, "server exited", err)
		os.Exit(1)
	}
}

func newRegistry(cfg config.Config) *game.Registry {
	registry := game.NewRegistry()
	registry.Register(greedypig.GreedyPig{})
	registry.Register(connect4.Connect4())
	registry.Register(connect4.Lineup4())
	registry.Register(prisoners.Prisoners{})
	registry.Register(arena.New(float64(cfg.HPFloor)))
	return registry
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	recorder, metricsHandler, metricsStop, err := metrics.Setup(ctx, metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	})
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := newRegistry(cfg)
	mgr := session.NewManager(registry, store, recorder, logger)
	if err := mgr.Restore(ctx); err != nil {
		logging.Warn(logger, "restore sessions failed", logging.FieldError, err)
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		return err
	}

	var loader *backend.Loader
	if cfg.Backend.BaseURL != "" {
		client := backend.NewClient(backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			Token:   cfg.Backend.Token,
			Timeout: cfg.Backend.Timeout,
		})
		loader = backend.NewLoader(client, recorder, logger)
	}

	static, err := fs.Sub(agentgames.WebFS, "web")
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Registry: registry,
		Manager:  mgr,
		Store:    store,
		Loader:   loader,
		Renderer: renderer,
		Metrics:  recorder,
		Logger:   logger,
		Static:   static,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info(logger, "listening", "addr", httpServer.Addr)
		return serve(httpServer)
	})
	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsServer := &http.Server{Addr: ":" + cfg.Metrics.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logging.Info(logger, "metrics server starting", "addr", metricsServer.Addr)
			return serve(metricsServer)
		})
		g.Go(func() error {
			<-ctx.Done()
			return shutdown(metricsServer)
		})
	}
	g.Go(func() error {
		mgr.CleanupLoop(ctx, cfg.Session.CleanupInterval, cfg.Session.MaxIdle)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logging.Info(logger, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsStop(shutdownCtx); err != nil {
			logging.Warn(logger, "metrics shutdown failed", logging.FieldError, err)
		}
		return shutdown(httpServer)
	})
	return g.Wait()
}

func serve(s *http.Server) error {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(s *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}
