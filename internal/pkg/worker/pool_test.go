package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbot.io/craftbot/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestNewPools(t *testing.T) {
	pools, err := NewPools(context.Background(), DefaultPoolConfig())
	require.NoError(t, err)
	defer pools.Shutdown()

	assert.NotNil(t, pools.General)
	assert.NotNil(t, pools.Bus)
	assert.Equal(t, "bus", pools.Bus.Name())
}

func TestPool_Submit(t *testing.T) {
	ctx := context.Background()
	pools, err := NewPools(ctx, PoolConfig{GeneralPoolSize: 10, BusPoolSize: 5})
	require.NoError(t, err)
	defer pools.Shutdown()

	var executed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)

	err = pools.General.Submit(ctx, func(ctx context.Context) {
		executed.Store(true)
		wg.Done()
	})
	require.NoError(t, err)

	wg.Wait()
	assert.True(t, executed.Load())
}

func TestPool_Submit_CancelledContext(t *testing.T) {
	ctx := context.Background()
	pools, err := NewPools(ctx, DefaultPoolConfig())
	require.NoError(t, err)
	defer pools.Shutdown()

	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()

	err = pools.General.Submit(cancelledCtx, func(ctx context.Context) {
		t.Error("Task should not execute with cancelled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_Go_RunsWithCancelledContext(t *testing.T) {
	ctx := context.Background()
	pools, err := NewPools(ctx, DefaultPoolConfig())
	require.NoError(t, err)
	defer pools.Shutdown()

	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()

	done := make(chan error, 1)
	require.NoError(t, pools.Bus.Go(cancelledCtx, func(ctx context.Context) {
		done <- ctx.Err()
	}))
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPool_Bus_ReportsOverload(t *testing.T) {
	ctx := context.Background()
	pools, err := NewPools(ctx, PoolConfig{GeneralPoolSize: 1, BusPoolSize: 1})
	require.NoError(t, err)
	defer pools.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pools.Bus.Go(ctx, func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	err = pools.Bus.Go(ctx, func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolOverload)
	close(release)
}

func TestPools_SubmitDetached(t *testing.T) {
	tests := []struct {
		name     string
		poolName string
	}{
		{"general pool", "general"},
		{"bus pool", "bus"},
		{"default fallback", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pools, err := NewPools(context.Background(), DefaultPoolConfig())
			require.NoError(t, err)

			var executed atomic.Bool
			var wg sync.WaitGroup
			wg.Add(1)

			err = pools.SubmitDetached(tt.poolName, func(ctx context.Context) {
				executed.Store(true)
				wg.Done()
			})
			require.NoError(t, err)

			wg.Wait()
			pools.Shutdown()
			assert.True(t, executed.Load())
		})
	}
}

func TestPools_Metrics(t *testing.T) {
	pools, err := NewPools(context.Background(), PoolConfig{GeneralPoolSize: 10, BusPoolSize: 5})
	require.NoError(t, err)
	defer pools.Shutdown()

	metrics := pools.Metrics()
	general, ok := metrics["general"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 10, general["cap"])

	bus, ok := metrics["bus"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 5, bus["cap"])
}
