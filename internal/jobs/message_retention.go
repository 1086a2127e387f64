package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	"craftbot.io/craftbot/internal/pkg/logger"
)

const (
	// DefaultMessageRetention is how long chat messages are kept.
	DefaultMessageRetention = 30 * 24 * time.Hour
)

// MessageRetentionArgs is a periodic maintenance job that purges stored
// chat messages older than the retention window.
type MessageRetentionArgs struct{}

// Kind returns the job kind identifier for periodic message purging.
func (MessageRetentionArgs) Kind() string { return "message_retention" }

// InsertOpts ensures at most one purge job is enqueued within the same day.
func (MessageRetentionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// MessageRetentionWorker purges messages through the bus.
type MessageRetentionWorker struct {
	river.WorkerDefaults[MessageRetentionArgs]
	deps      Deps
	retention time.Duration
	now       func() time.Time
}

// NewMessageRetentionWorker creates a purge worker. Non-positive retention
// falls back to the 30-day default.
func NewMessageRetentionWorker(deps Deps, retention time.Duration) *MessageRetentionWorker {
	if retention <= 0 {
		retention = DefaultMessageRetention
	}
	return &MessageRetentionWorker{
		deps:      deps,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Work deletes expired message rows.
func (w *MessageRetentionWorker) Work(ctx context.Context, _ *river.Job[MessageRetentionArgs]) error {
	if w == nil || !w.deps.ready() {
		return fmt.Errorf("message retention worker is not initialized")
	}

	cutoff := w.now().Add(-w.retention)
	var deleted int64
	err := inScope(ctx, w.deps, func(ctx context.Context) error {
		var err error
		deleted, err = bus.Call[int64](ctx, w.deps.Bus, bus.NewEvent(domain.TopicMessagePurge,
			bus.Record(domain.MessagePurgePayload{Before: cutoff})), w.deps.timeout())
		return err
	})
	if err != nil {
		return fmt.Errorf("purge messages before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("message retention completed",
		zap.Int64("deleted_rows", deleted),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("retention", w.retention),
	)
	return nil
}
