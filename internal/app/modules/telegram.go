package modules

import (
	"context"

	"github.com/riverqueue/river"

	"craftbot.io/craftbot/internal/api/handlers"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/jobs"
	"craftbot.io/craftbot/internal/service"
	"craftbot.io/craftbot/internal/usecase"
)

// TelegramModule wires chat bookkeeping services, update ingestion and the
// message retention worker.
type TelegramModule struct {
	infra    *Infrastructure
	services []service.Registrar
	ingestUC *usecase.IngestUpdateUseCase
}

// NewTelegramModule creates a telegram module with explicit constructor wiring.
func NewTelegramModule(infra *Infrastructure) *TelegramModule {
	return &TelegramModule{
		infra: infra,
		services: []service.Registrar{
			service.NewUserService(),
			service.NewChatService(),
			service.NewMembershipService(),
			service.NewMessageService(),
			service.NewPollService(),
		},
		ingestUC: usecase.NewIngestUpdateUseCase(infra.Bus, infra.UnitOfWork),
	}
}

func (m *TelegramModule) Name() string { return "telegram" }

func (m *TelegramModule) RegisterSubscribers(b *bus.Bus) {
	service.RegisterAll(b, m.services...)
}

func (m *TelegramModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.IngestUC = m.ingestUC
	deps.Telegram = m.infra.Config.Telegram
}

func (m *TelegramModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m.infra == nil {
		return
	}
	deps := jobs.Deps{
		Bus:            m.infra.Bus,
		UnitOfWork:     m.infra.UnitOfWork,
		RequestTimeout: m.infra.Config.Bus.RequestTimeout,
	}
	river.AddWorker(workers, jobs.NewMessageRetentionWorker(deps, m.infra.Config.River.MessageRetention))
}

func (m *TelegramModule) Shutdown(context.Context) error { return nil }
