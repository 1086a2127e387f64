// Package app is the composition root. Bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"craftbot.io/craftbot/internal/api/handlers"
	"craftbot.io/craftbot/internal/api/middleware"
	"craftbot.io/craftbot/internal/api/openapi"
	"craftbot.io/craftbot/internal/app/modules"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/infrastructure"
	"craftbot.io/craftbot/internal/jobs"
	"craftbot.io/craftbot/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Bus     *bus.Bus
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	craftModule, err := modules.NewCraftModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init craft module: %w", err)
	}
	allModules := []modules.Module{
		craftModule,
		modules.NewTelegramModule(infra),
	}

	workers := river.NewWorkers()
	for _, mod := range allModules {
		mod.RegisterSubscribers(infra.Bus)
		mod.RegisterWorkers(workers)
	}
	// Message retention runs daily and once on startup.
	if err := infra.InitRiver(workers, jobs.Periodic(0)); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	contract, err := openapi.Load(ctx)
	if err != nil {
		infra.Close()
		return nil, err
	}
	validator, err := middleware.NewOpenAPIValidator(contract)
	if err != nil {
		infra.Close()
		return nil, err
	}

	serverDeps := modules.NewServerDeps(cfg, infra, allModules)
	server := handlers.NewServer(serverDeps)

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, serverDeps.JWTCfg, validator),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Bus:     infra.Bus,
		Modules: allModules,
	}, nil
}
