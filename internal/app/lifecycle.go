package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/pkg/logger"
)

const defaultBusShutdownTimeout = 10 * time.Second

// Start starts all background services (River workers).
func (a *Application) Start(ctx context.Context) error {
	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
	}
	return nil
}

// Shutdown gracefully shuts down all application components. In-flight
// bus dispatches are drained before pools and connections are released.
func (a *Application) Shutdown() {
	shutdownCtx := context.Background()

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
		logger.Info("River client stopped")
	}

	if a.Bus != nil {
		timeout := defaultBusShutdownTimeout
		if a.Config != nil && a.Config.Bus.ShutdownTimeout > 0 {
			timeout = a.Config.Bus.ShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(shutdownCtx, timeout)
		if err := a.Bus.Shutdown(ctx); err != nil {
			logger.Warn("event bus did not drain before timeout",
				zap.Int("in_flight", a.Bus.InFlight()),
				zap.Error(err),
			)
		}
		cancel()
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(shutdownCtx); err != nil {
			logger.Warn("module shutdown returned error",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
