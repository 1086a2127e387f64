package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbot.io/craftbot/internal/agent"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/service"
	"craftbot.io/craftbot/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestLoadElements_Embedded(t *testing.T) {
	t.Parallel()

	elements, err := loadElements("")
	require.NoError(t, err)
	require.Len(t, elements, 4)

	names := make([]string, 0, len(elements))
	for _, e := range elements {
		assert.NotEmpty(t, e.Emoji, e.Name)
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"Water", "Fire", "Earth", "Wind"}, names)
}

func TestLoadElements_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("elements:\n  - name: Stone\n    emoji: \"🪨\"\n"), 0o600))
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("elements: []\n"), 0o600))

	elements, err := loadElements(good)
	require.NoError(t, err)
	assert.Equal(t, []seedElement{{Name: "Stone", Emoji: "🪨"}}, elements)

	_, err = loadElements(empty)
	assert.Error(t, err)

	_, err = loadElements(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedElements_Idempotent(t *testing.T) {
	db := testutil.OpenDB(t, "seed")
	b := testutil.NewBus(t)
	u := testutil.NewUnitOfWork(db)
	service.RegisterAll(b, service.NewElementService(agent.NewStaticAgent()))

	elements, err := loadElements("")
	require.NoError(t, err)

	created, err := seedElements(context.Background(), b, u, elements, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	created, err = seedElements(context.Background(), b, u, elements, time.Second)
	require.NoError(t, err)
	assert.Zero(t, created)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM elements WHERE is_base`).Scan(&n))
	assert.Equal(t, 4, n)
}

func TestSeedElements_InvalidRollsBack(t *testing.T) {
	db := testutil.OpenDB(t, "seed_invalid")
	b := testutil.NewBus(t)
	u := testutil.NewUnitOfWork(db)
	service.RegisterAll(b, service.NewElementService(agent.NewStaticAgent()))

	_, err := seedElements(context.Background(), b, u, []seedElement{{Name: "Stone"}, {Name: "  "}}, time.Second)
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM elements`).Scan(&n))
	assert.Zero(t, n)
}

func TestRun_RejectsUnknownFlag(t *testing.T) {
	t.Parallel()

	assert.Error(t, run([]string{"--no-such-flag"}))
}
