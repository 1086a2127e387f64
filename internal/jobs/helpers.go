// Package jobs defines River Queue job types for background maintenance.
//
// Workers do not touch storage directly: they open a unit of work and
// drive the same bus topics the request path uses.
package jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/uow"
)

const defaultJobRequestTimeout = time.Minute

// Deps is what every worker in this package needs.
type Deps struct {
	Bus            *bus.Bus
	UnitOfWork     *uow.UnitOfWork
	RequestTimeout time.Duration
}

func (d Deps) ready() bool {
	return d.Bus != nil && d.UnitOfWork != nil
}

func (d Deps) timeout() time.Duration {
	if d.RequestTimeout > 0 {
		return d.RequestTimeout
	}
	return defaultJobRequestTimeout
}

// Periodic returns the periodic jobs to schedule on the River client.
func Periodic(interval time.Duration) []*river.PeriodicJob {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return MessageRetentionArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

// inScope runs fn in a fresh unit of work.
func inScope(ctx context.Context, d Deps, fn func(ctx context.Context) error) error {
	return d.UnitOfWork.Start(ctx, fn)
}
