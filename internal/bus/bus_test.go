package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/pkg/worker"
)

func init() {
	_ = logger.Init("error", "json")
}

func newTestBus(t *testing.T, busPoolSize int) *Bus {
	t.Helper()
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{
		GeneralPoolSize: 4,
		BusPoolSize:     busPoolSize,
	})
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)
	return New(pools.Bus)
}

type ping struct {
	N int
}

// barrierHandler returns once both halves of the barrier have been entered,
// proving the two invocations ran at the same time.
func barrierHandler(mine, other chan struct{}) Handler {
	return func(ctx context.Context, _ Event) (any, error) {
		close(mine)
		select {
		case <-other:
			return nil, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("peer handler never started")
		}
	}
}

func TestPublishAndWait_RunsHandlersConcurrently(t *testing.T) {
	b := newTestBus(t, 8)
	a, c := make(chan struct{}), make(chan struct{})
	b.Subscribe("t", barrierHandler(a, c))
	b.Subscribe("t", barrierHandler(c, a))

	require.NoError(t, b.PublishAndWait(context.Background(), NewEvent("t", None())))
}

func TestPublishAndWait_SaturatedPoolRunsInline(t *testing.T) {
	b := newTestBus(t, 1)
	a, c := make(chan struct{}), make(chan struct{})
	b.Subscribe("t", barrierHandler(a, c))
	b.Subscribe("t", barrierHandler(c, a))

	require.NoError(t, b.PublishAndWait(context.Background(), NewEvent("t", None())))
}

func TestPublishAndWait_ReturnsFirstError(t *testing.T) {
	b := newTestBus(t, 8)
	boom := errors.New("boom")
	var ran atomic.Int32
	b.Subscribe("ok", func(ctx context.Context, _ Event) (any, error) {
		ran.Add(1)
		return nil, nil
	})
	b.Subscribe("bad", func(ctx context.Context, _ Event) (any, error) {
		ran.Add(1)
		return nil, boom
	})

	err := b.PublishAndWait(context.Background(),
		NewEvent("ok", None()),
		NewEvent("bad", None()),
	)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), ran.Load(), "every handler completes before the call returns")
	assert.Zero(t, b.InFlight())
}

func TestPublishAndWait_NoHandlers(t *testing.T) {
	b := newTestBus(t, 8)
	assert.NoError(t, b.PublishAndWait(context.Background(), NewEvent("nobody.listens", None())))
}

func TestPublishAndWait_CorrelationID(t *testing.T) {
	b := newTestBus(t, 8)
	var ids sync.Map
	for i := 0; i < 2; i++ {
		b.Subscribe("t", func(ctx context.Context, _ Event) (any, error) {
			ids.Store(CorrelationID(ctx), true)
			return nil, nil
		})
	}

	require.NoError(t, b.PublishAndWait(context.Background(), NewEvent("t", None())))

	n := 0
	ids.Range(func(k, _ any) bool {
		n++
		assert.NotEmpty(t, k)
		return true
	})
	assert.Equal(t, 1, n, "handlers of one call share a correlation id")
}

func TestSubscribe_DuplicateHandlerRunsTwice(t *testing.T) {
	b := newTestBus(t, 8)
	var calls atomic.Int32
	h := func(ctx context.Context, _ Event) (any, error) {
		calls.Add(1)
		return nil, nil
	}
	b.Subscribe("t", h)
	b.Subscribe("t", h)

	assert.Equal(t, 2, b.SubscriberCount("t"))
	require.NoError(t, b.PublishAndWait(context.Background(), NewEvent("t", None())))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSubscribeType_RunsBeforeTopicHandlers(t *testing.T) {
	b := newTestBus(t, 8)
	b.Subscribe("t", func(ctx context.Context, _ Event) (any, error) {
		return "topic", nil
	})
	SubscribeType[ping](b, func(ctx context.Context, _ Event) (any, error) {
		return "type", nil
	})

	res, err := b.Request(context.Background(), NewEvent("t", Record(ping{N: 1})), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "type", res)

	// A raw payload has no runtime record type, so only the topic handler matches.
	res, err = b.Request(context.Background(), NewEvent("t", Raw(map[string]any{"N": 1})), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "topic", res)

	// Type handlers match on any topic.
	res, err = b.Request(context.Background(), NewEvent("other", Record(ping{})), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "type", res)
}

func TestRequest(t *testing.T) {
	t.Run("returns first handler result only", func(t *testing.T) {
		b := newTestBus(t, 8)
		var second atomic.Bool
		b.Subscribe("sum", func(ctx context.Context, evt Event) (any, error) {
			p, err := Decode[ping](evt)
			if err != nil {
				return nil, err
			}
			return p.N + 1, nil
		})
		b.Subscribe("sum", func(ctx context.Context, _ Event) (any, error) {
			second.Store(true)
			return nil, nil
		})

		res, err := b.Request(context.Background(), NewEvent("sum", Record(ping{N: 41})), time.Second)
		require.NoError(t, err)
		assert.Equal(t, 42, res)
		assert.False(t, second.Load())
	})

	t.Run("no handler", func(t *testing.T) {
		b := newTestBus(t, 8)
		_, err := b.Request(context.Background(), NewEvent("missing", None()), time.Second)
		require.ErrorIs(t, err, ErrNoHandlerRegistered)

		var de *DispatchError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "missing", de.Topic)
	})

	t.Run("timeout cancels the handler context", func(t *testing.T) {
		b := newTestBus(t, 8)
		cancelled := make(chan struct{})
		b.Subscribe("slow", func(ctx context.Context, _ Event) (any, error) {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		})

		_, err := b.Request(context.Background(), NewEvent("slow", None()), 20*time.Millisecond)
		require.ErrorIs(t, err, ErrTimeout)

		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("handler context was not cancelled")
		}
	})

	t.Run("timeout holds when the pool is saturated", func(t *testing.T) {
		b := newTestBus(t, 1)
		release := make(chan struct{})
		started := make(chan struct{})
		defer close(release)
		b.Subscribe("hog", func(ctx context.Context, _ Event) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
		b.Subscribe("sleepy", func(ctx context.Context, _ Event) (any, error) {
			time.Sleep(300 * time.Millisecond)
			return "late", nil
		})

		require.NoError(t, b.Publish(context.Background(), NewEvent("hog", None())))
		<-started

		start := time.Now()
		res, err := b.Request(context.Background(), NewEvent("sleepy", None()), 20*time.Millisecond)
		require.ErrorIs(t, err, ErrTimeout)
		assert.Nil(t, res)
		assert.Less(t, time.Since(start), 200*time.Millisecond)
	})

	t.Run("handler error passes through", func(t *testing.T) {
		b := newTestBus(t, 8)
		boom := errors.New("boom")
		b.Subscribe("bad", func(ctx context.Context, _ Event) (any, error) {
			return nil, boom
		})
		_, err := b.Request(context.Background(), NewEvent("bad", None()), time.Second)
		assert.Same(t, boom, err)
	})
}

func TestCall(t *testing.T) {
	b := newTestBus(t, 8)
	b.Subscribe("names", func(ctx context.Context, _ Event) (any, error) {
		return []string{"Fire", "Water"}, nil
	})
	b.Subscribe("empty", func(ctx context.Context, _ Event) (any, error) {
		return nil, nil
	})

	names, err := Call[[]string](context.Background(), b, NewEvent("names", None()), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fire", "Water"}, names)

	_, err = Call[int](context.Background(), b, NewEvent("names", None()), time.Second)
	assert.ErrorIs(t, err, ErrResultType)

	empty, err := Call[[]string](context.Background(), b, NewEvent("empty", None()), time.Second)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestHandlerPanicBecomesError(t *testing.T) {
	b := newTestBus(t, 8)
	b.Subscribe("panic", func(ctx context.Context, _ Event) (any, error) {
		panic("kaboom")
	})

	err := b.PublishAndWait(context.Background(), NewEvent("panic", None()))
	require.ErrorIs(t, err, ErrHandlerPanic)
	assert.Contains(t, err.Error(), "kaboom")

	_, err = b.Request(context.Background(), NewEvent("panic", None()), time.Second)
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

type ctxKey struct{}

func TestPublish_DetachesCancellation(t *testing.T) {
	b := newTestBus(t, 8)
	type seen struct {
		value any
		err   error
	}
	got := make(chan seen, 1)
	b.Subscribe("bg", func(ctx context.Context, _ Event) (any, error) {
		got <- seen{value: ctx.Value(ctxKey{}), err: ctx.Err()}
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "kept"))
	cancel()
	require.NoError(t, b.Publish(ctx, NewEvent("bg", None())))

	select {
	case s := <-got:
		assert.Equal(t, "kept", s.value)
		assert.NoError(t, s.err)
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestPublish_NoHandlersIsSilent(t *testing.T) {
	b := newTestBus(t, 8)
	assert.NoError(t, b.Publish(context.Background(), NewEvent("nobody", None())))
}

func TestShutdown(t *testing.T) {
	b := newTestBus(t, 8)
	release := make(chan struct{})
	b.Subscribe("hold", func(ctx context.Context, _ Event) (any, error) {
		<-release
		return nil, nil
	})

	waited := make(chan error, 1)
	go func() {
		waited <- b.PublishAndWait(context.Background(), NewEvent("hold", None()))
	}()
	require.Eventually(t, func() bool { return b.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Shutdown(short), context.DeadlineExceeded)

	assert.ErrorIs(t, b.PublishAndWait(context.Background(), NewEvent("hold", None())), ErrBusClosed)
	_, err := b.Request(context.Background(), NewEvent("hold", None()), time.Second)
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), NewEvent("hold", None())), ErrBusClosed)

	close(release)
	require.NoError(t, <-waited)
	assert.NoError(t, b.Shutdown(context.Background()))
}

func TestTracingMiddleware(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := newTestBus(t, 8)
	b.Use(Tracing(tp.Tracer("bus-test")), Logging())
	boom := errors.New("boom")
	b.Subscribe("ok", func(ctx context.Context, _ Event) (any, error) { return 1, nil })
	b.Subscribe("bad", func(ctx context.Context, _ Event) (any, error) { return nil, boom })

	res, err := b.Request(context.Background(), NewEvent("ok", None()), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res, "middleware must not alter results")

	err = b.PublishAndWait(context.Background(), NewEvent("bad", None()))
	assert.Same(t, boom, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "bus.handle ok", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "bus.handle bad", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}
