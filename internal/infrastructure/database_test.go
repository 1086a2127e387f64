package infrastructure

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestNewDatabaseClients_SQLite(t *testing.T) {
	ctx := context.Background()
	clients, err := NewDatabaseClients(ctx, config.DatabaseConfig{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "dev.db"),
	})
	require.NoError(t, err)
	t.Cleanup(clients.Close)

	assert.Nil(t, clients.Pool)
	assert.Equal(t, DriverSQLite, clients.Driver)
	require.NoError(t, clients.Ping(ctx))
	require.NoError(t, clients.AutoMigrate(ctx))
	require.NoError(t, clients.AutoMigrate(ctx), "migration is idempotent")

	var n int
	require.NoError(t, clients.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements`).Scan(&n))
	assert.Zero(t, n)

	err = clients.InitRiverClient(river.NewWorkers(), nil, config.RiverConfig{})
	assert.ErrorIs(t, err, ErrRiverUnsupported)
}

func TestNewDatabaseClients_UnknownDriver(t *testing.T) {
	_, err := NewDatabaseClients(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("/tmp/x.db")
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "foreign_keys(1)")
	assert.Contains(t, dsn, "_time_format=sqlite")
}
