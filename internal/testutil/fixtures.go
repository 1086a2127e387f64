package testutil

import (
	"context"
	"database/sql"
	"testing"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/pkg/worker"
	"craftbot.io/craftbot/internal/uow"
)

// NewBus returns a bus running on a fresh worker pool released at cleanup.
func NewBus(t *testing.T) *bus.Bus {
	t.Helper()
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{
		GeneralPoolSize: 4,
		BusPoolSize:     32,
	})
	if err != nil {
		t.Fatalf("create worker pools: %v", err)
	}
	t.Cleanup(pools.Shutdown)
	return bus.New(pools.Bus)
}

// NewUnitOfWork returns a unit of work over db.
func NewUnitOfWork(db *sql.DB) *uow.UnitOfWork {
	return uow.New(uow.NewSQLSessionFactory(db))
}

// InScope runs fn inside a unit of work and fails the test on error.
func InScope(t *testing.T, u *uow.UnitOfWork, fn func(ctx context.Context) error) {
	t.Helper()
	if err := u.Start(context.Background(), fn); err != nil {
		t.Fatalf("unit of work: %v", err)
	}
}
