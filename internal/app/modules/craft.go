package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"craftbot.io/craftbot/internal/agent"
	"craftbot.io/craftbot/internal/api/handlers"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/service"
	"craftbot.io/craftbot/internal/usecase"
)

// CraftModule wires the crafting services, the discovery listener and the
// combine use case.
type CraftModule struct {
	services  []service.Registrar
	combineUC *usecase.CombineUseCase
}

// NewCraftModule creates a craft module with explicit constructor wiring.
func NewCraftModule(infra *Infrastructure) (*CraftModule, error) {
	ag, err := agent.New(infra.Config.Agent)
	if err != nil {
		return nil, fmt.Errorf("init agent: %w", err)
	}
	listener, err := service.NewDiscoveryListener(infra.Meter)
	if err != nil {
		return nil, fmt.Errorf("init discovery listener: %w", err)
	}

	return &CraftModule{
		services: []service.Registrar{
			service.NewElementService(ag),
			service.NewRecipeService(),
			service.NewProgressService(),
			listener,
		},
		combineUC: usecase.NewCombineUseCase(infra.Bus, infra.UnitOfWork, infra.Config.Craft, infra.Config.Bus),
	}, nil
}

func (m *CraftModule) Name() string { return "craft" }

func (m *CraftModule) RegisterSubscribers(b *bus.Bus) {
	service.RegisterAll(b, m.services...)
}

func (m *CraftModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.CombineUC = m.combineUC
}

func (m *CraftModule) RegisterWorkers(*river.Workers) {}

func (m *CraftModule) Shutdown(context.Context) error { return nil }
