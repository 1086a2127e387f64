package usecase

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"craftbot.io/craftbot/internal/agent"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/domain"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/repository"
	"craftbot.io/craftbot/internal/service"
	"craftbot.io/craftbot/internal/testutil"
	"craftbot.io/craftbot/internal/uow"
)

func init() {
	_ = logger.Init("error", "json")
}

var seededAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	db    *sql.DB
	bus   *bus.Bus
	uow   *uow.UnitOfWork
	agent *agent.StaticAgent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenDB(t, t.Name())
	b := testutil.NewBus(t)
	ag := agent.NewStaticAgent()
	service.RegisterAll(b,
		service.NewElementService(ag),
		service.NewRecipeService(),
		service.NewProgressService(),
		service.NewUserService(),
		service.NewChatService(),
		service.NewMembershipService(),
		service.NewMessageService(),
		service.NewPollService(),
	)
	return &harness{db: db, bus: b, uow: testutil.NewUnitOfWork(db), agent: ag}
}

func (h *harness) combiner() *CombineUseCase {
	return NewCombineUseCase(h.bus, h.uow, config.CraftConfig{Seed: 42}, config.BusConfig{RequestTimeout: 5 * time.Second}).
		WithRepeatProbability(0)
}

func (h *harness) seedElement(t *testing.T, id int64, name, emoji string, base bool) domain.Element {
	t.Helper()
	e, err := repository.New(h.db).CreateElement(context.Background(), domain.Element{
		Entity: domain.Entity{ID: id, CreatedAt: seededAt, UpdatedAt: seededAt},
		Name:   name,
		Emoji:  emoji,
		IsBase: base,
	})
	require.NoError(t, err)
	return e
}

func (h *harness) seedUser(t *testing.T, id, telegramID int64) {
	t.Helper()
	_, err := repository.New(h.db).UpsertUser(context.Background(), domain.User{
		Entity:     domain.Entity{ID: id, CreatedAt: seededAt, UpdatedAt: seededAt},
		TelegramID: telegramID,
		FirstName:  "Ada",
	})
	require.NoError(t, err)
}

func (h *harness) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.QueryRow(query, args...).Scan(&n))
	return n
}
