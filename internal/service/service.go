// Package service holds the domain services.
//
// Every service subscribes one bus handler per topic. A handler decodes its
// payload, runs one persistence operation on the transaction of the ambient
// unit of work and returns a slice of records (possibly empty). Lookups that
// miss, inserts that collide and contradictory filters come back as the
// kinds in internal/pkg/errors; storage failures are logged and returned
// unchanged.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/bus"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/repository"
	"craftbot.io/craftbot/internal/uow"
)

// Registrar is implemented by every service.
type Registrar interface {
	Register(b *bus.Bus)
}

// RegisterAll subscribes every service to b.
func RegisterAll(b *bus.Bus, services ...Registrar) {
	for _, s := range services {
		s.Register(b)
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// exec runs fn with queries bound to the transaction of the scope in ctx.
func exec(ctx context.Context, fn func(q *repository.Queries) error) error {
	return uow.Exec(ctx, func(tx uow.DBTX) error {
		return fn(repository.New(tx))
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// outcome passes domain error kinds through and logs anything else as a
// storage failure before returning it unchanged.
func outcome(ctx context.Context, entity, op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *apperrors.EntityError
	if errors.As(err, &ee) {
		return err
	}
	logger.Ctx(ctx).Error("Storage operation failed",
		zap.String("entity", entity),
		zap.String("op", op),
		zap.Error(err),
	)
	return err
}

// exclusive reports whether exactly one of the filters is set.
func exclusive(set ...bool) (none, many bool) {
	n := 0
	for _, s := range set {
		if s {
			n++
		}
	}
	return n == 0, n > 1
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
