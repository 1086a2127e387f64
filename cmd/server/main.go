// Package main runs the craftbot HTTP server: the Mini App API, the
// Telegram webhook and the River workers behind them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/app"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	// Shutdown drains the bus before pools and the database close, so it
	// must run after the HTTP server has stopped accepting requests.
	defer application.Shutdown()

	logStartup(cfg, application)

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}
	return serve(ctx, newHTTPServer(cfg.Server, application.Router), cfg.Server)
}

func logStartup(cfg *config.Config, application *app.Application) {
	names := make([]string, 0, len(application.Modules))
	for _, m := range application.Modules {
		names = append(names, m.Name())
	}
	logger.Info("Starting craftbot",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("river_enabled", cfg.River.Enabled && application.DB != nil && application.DB.Pool != nil),
		zap.Strings("modules", names),
	)
	logger.Info("Event bus configured",
		zap.Duration("request_timeout", cfg.Bus.RequestTimeout),
		zap.Duration("shutdown_timeout", cfg.Bus.ShutdownTimeout),
		zap.Bool("tracing", cfg.Bus.Tracing),
		zap.Int("pool_size", cfg.Worker.BusPoolSize),
	)
	if cfg.Telegram.WebhookSecret == "" {
		logger.Warn("Telegram webhook secret not set; webhook requests are not authenticated")
	}
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// serve runs srv until ctx is cancelled or the listener fails, then stops
// it within cfg.ShutdownTimeout.
func serve(ctx context.Context, srv *http.Server, cfg config.ServerConfig) error {
	errCh := make(chan error, 1)
	go func() { //nolint:naked-goroutine // main server goroutine is exempt
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("Server started", zap.String("addr", srv.Addr))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
