// Package bus is the in-process event bus every domain operation travels
// through.
//
// Handlers are registered per topic (or per payload type) and invoked on the
// bus worker pool. Three dispatch modes exist:
//   - Publish: fire-and-forget broadcast
//   - PublishAndWait: concurrent fan-out, waits for every handler
//   - Request: first handler only, bounded by a timeout, returns its result
//
// Handlers run inside the caller's unit of work: the context passed to a
// handler carries the ambient session of the publishing call chain.
package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/pkg/worker"
)

// Handler processes one event. The returned value is only observed by
// Request; PublishAndWait and Publish keep the error alone.
type Handler func(ctx context.Context, evt Event) (any, error)

// Middleware decorates a handler. It must not alter the handler's results.
type Middleware func(topic string, next Handler) Handler

// Runner schedules handler invocations. *worker.Pool implements it.
type Runner interface {
	Go(ctx context.Context, task worker.Task) error
}

type correlationKey struct{}

// CorrelationID returns the id of the PublishAndWait call that dispatched
// the handler running under ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func init() {
	logger.RegisterExtractor(func(ctx context.Context) []zap.Field {
		if id := CorrelationID(ctx); id != "" {
			return []zap.Field{zap.String("correlation_id", id)}
		}
		return nil
	})
}

// bucket tracks the invocations of one PublishAndWait call.
type bucket struct {
	topics  []string
	pending int
	started time.Time
}

// Bus routes events to handlers.
type Bus struct {
	runner Runner
	log    *zap.Logger

	mu         sync.RWMutex
	byTopic    map[string][]Handler
	byType     map[reflect.Type][]Handler
	middleware []Middleware

	stateMu sync.Mutex
	closed  bool
	active  int
	buckets map[string]*bucket
}

// New creates a bus that schedules handlers on runner.
func New(runner Runner) *Bus {
	return &Bus{
		runner:  runner,
		log:     logger.Named("bus"),
		byTopic: make(map[string][]Handler),
		byType:  make(map[reflect.Type][]Handler),
		buckets: make(map[string]*bucket),
	}
}

// Subscribe appends handler to topic. Subscribing the same handler twice
// makes it run twice per dispatch.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byTopic[topic] = append(b.byTopic[topic], handler)
	b.log.Debug("Handler subscribed", zap.String("topic", topic), zap.Int("count", len(b.byTopic[topic])))
}

// SubscribeType registers handler for every event whose record payload has
// runtime type T, regardless of topic.
func SubscribeType[T any](b *Bus, handler Handler) {
	t := reflect.TypeFor[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[t] = append(b.byType[t], handler)
	b.log.Debug("Handler subscribed", zap.Stringer("payload_type", t))
}

// Use appends handler middleware. The first middleware is outermost.
func (b *Bus) Use(mw ...Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw...)
}

// SubscriberCount returns the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byTopic[topic])
}

// InFlight returns the number of PublishAndWait calls still waiting.
func (b *Bus) InFlight() int {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return len(b.buckets)
}

// match returns the decorated handlers for evt: type-registered first, then
// topic-registered, each in registration order.
func (b *Bus) match(evt Event) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var typed []Handler
	if t := evt.recordType(); t != nil {
		typed = b.byType[t]
	}
	topical := b.byTopic[evt.Topic()]
	if len(typed)+len(topical) == 0 {
		return nil
	}

	out := make([]Handler, 0, len(typed)+len(topical))
	for _, h := range typed {
		out = append(out, b.decorate(evt.Topic(), h))
	}
	for _, h := range topical {
		out = append(out, b.decorate(evt.Topic(), h))
	}
	return out
}

func (b *Bus) decorate(topic string, h Handler) Handler {
	for i := len(b.middleware) - 1; i >= 0; i-- {
		h = b.middleware[i](topic, h)
	}
	return h
}

// invoke runs h and turns a panic into ErrHandlerPanic.
func (b *Bus) invoke(ctx context.Context, h Handler, evt Event) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Error("Event handler panic recovered",
				zap.String("topic", evt.Topic()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			res = nil
			err = &DispatchError{Topic: evt.Topic(), Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()
	return h(ctx, evt)
}

func (b *Bus) enter() bool {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.closed {
		return false
	}
	b.active++
	return true
}

func (b *Bus) leave() {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.active--
}

// Publish broadcasts evt without waiting. Handlers run with a context that
// keeps ctx's values but not its cancellation. Handler errors are logged.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if !b.enter() {
		return &DispatchError{Topic: evt.Topic(), Err: ErrBusClosed}
	}
	defer b.leave()

	handlers := b.match(evt)
	if len(handlers) == 0 {
		b.log.Debug("No subscribers for event", zap.String("topic", evt.Topic()))
		return nil
	}

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		task := func(ctx context.Context) {
			if _, err := b.invoke(ctx, h, evt); err != nil {
				logger.Ctx(ctx).Error("Event handler failed",
					zap.String("topic", evt.Topic()),
					zap.Error(err),
				)
			}
		}
		if err := b.runner.Go(detached, task); err != nil {
			b.log.Warn("Event dropped",
				zap.String("topic", evt.Topic()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// PublishAndWait runs every matched handler of every event concurrently and
// waits for all of them. It returns the first error in completion order.
// Handlers see ctx, including its ambient unit of work.
func (b *Bus) PublishAndWait(ctx context.Context, evts ...Event) error {
	if !b.enter() {
		return ErrBusClosed
	}
	defer b.leave()

	type call struct {
		evt Event
		h   Handler
	}
	var calls []call
	topics := make([]string, 0, len(evts))
	for _, evt := range evts {
		topics = append(topics, evt.Topic())
		for _, h := range b.match(evt) {
			calls = append(calls, call{evt: evt, h: h})
		}
	}
	if len(calls) == 0 {
		return nil
	}

	id := uuid.NewString()
	b.track(id, &bucket{topics: topics, pending: len(calls), started: time.Now()})
	defer b.untrack(id)
	ctx = context.WithValue(ctx, correlationKey{}, id)

	results := make(chan error, len(calls))
	for _, c := range calls {
		task := func(ctx context.Context) {
			_, err := b.invoke(ctx, c.h, c.evt)
			b.done(id)
			results <- err
		}
		err := b.runner.Go(ctx, task)
		switch {
		case err == nil:
		case errors.Is(err, worker.ErrPoolOverload):
			// Saturated pool: run on the caller so nested waits still progress.
			task(ctx)
		default:
			b.done(id)
			results <- &DispatchError{Topic: c.evt.Topic(), Err: err}
		}
	}

	var first error
	for range calls {
		if err := <-results; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Request runs the first matched handler under a context cancelled after
// timeout and returns its result.
func (b *Bus) Request(ctx context.Context, evt Event, timeout time.Duration) (any, error) {
	handlers := b.match(evt)
	if len(handlers) == 0 {
		return nil, &DispatchError{Topic: evt.Topic(), Err: ErrNoHandlerRegistered}
	}
	if !b.enter() {
		return nil, &DispatchError{Topic: evt.Topic(), Err: ErrBusClosed}
	}
	defer b.leave()

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		res any
		err error
	}
	done := make(chan reply, 1)
	task := func(ctx context.Context) {
		res, err := b.invoke(ctx, handlers[0], evt)
		done <- reply{res: res, err: err}
	}
	if err := b.runner.Go(rctx, task); err != nil {
		if !errors.Is(err, worker.ErrPoolOverload) {
			return nil, &DispatchError{Topic: evt.Topic(), Err: err}
		}
		// Saturated pool: the caller only waits on done or the deadline, so
		// the handler cannot deadlock a nested wait and the timeout holds.
		go task(rctx)
	}

	select {
	case r := <-done:
		if r.err != nil && errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &DispatchError{Topic: evt.Topic(), Err: ErrTimeout}
		}
		return r.res, r.err
	case <-rctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &DispatchError{Topic: evt.Topic(), Err: ErrTimeout}
	}
}

// Call is Request with a typed result. A nil result yields the zero T.
func Call[T any](ctx context.Context, b *Bus, evt Event, timeout time.Duration) (T, error) {
	var zero T
	res, err := b.Request(ctx, evt, timeout)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, &DispatchError{
			Topic: evt.Topic(),
			Err:   fmt.Errorf("%w: got %T, want %v", ErrResultType, res, reflect.TypeFor[T]()),
		}
	}
	return v, nil
}

func (b *Bus) track(id string, bk *bucket) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.buckets[id] = bk
}

func (b *Bus) untrack(id string) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	delete(b.buckets, id)
}

func (b *Bus) done(id string) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if bk, ok := b.buckets[id]; ok {
		bk.pending--
	}
}

// Shutdown rejects new dispatches and waits until in-flight waited calls
// finish or ctx is done. Fire-and-forget handlers are drained by the worker
// pool's own shutdown.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.stateMu.Lock()
	b.closed = true
	b.stateMu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		b.stateMu.Lock()
		active, pending := b.active, b.pendingLocked()
		b.stateMu.Unlock()
		if active == 0 {
			b.log.Info("Event bus drained")
			return nil
		}
		select {
		case <-ctx.Done():
			b.log.Warn("Event bus shutdown timed out",
				zap.Int("active_calls", active),
				zap.Int("pending_handlers", pending),
			)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *Bus) pendingLocked() int {
	n := 0
	for _, bk := range b.buckets {
		n += bk.pending
	}
	return n
}
