// Package uow provides the unit of work: a scoped transactional session
// bound to a context.Context.
//
// Start opens a scope, and every bus handler reached through the context it
// passes down shares the scope's session. A normal return commits; an error
// or a panic rolls back. Contexts are per call chain, so concurrent scopes
// never observe each other's session.
package uow

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/pkg/logger"
)

var (
	// ErrDoubleStart is returned when Start is called inside an active scope.
	ErrDoubleStart = errors.New("unit of work already started")
	// ErrNoActiveUnitOfWork is returned when no scope is bound to the context.
	ErrNoActiveUnitOfWork = errors.New("no active unit of work")
)

type scopeKey struct{}

type scope struct {
	session  Session
	released atomic.Bool
}

// UnitOfWork opens scopes over sessions produced by a factory. It holds no
// per-scope state and is safe for concurrent use.
type UnitOfWork struct {
	factory SessionFactory
	log     *zap.Logger
}

// New creates a UnitOfWork.
func New(factory SessionFactory) *UnitOfWork {
	return &UnitOfWork{
		factory: factory,
		log:     logger.Named("uow"),
	}
}

// Start runs fn inside a new scope. fn receives a context carrying the
// scope's session. The session is committed when fn returns nil and rolled
// back when fn returns an error or panics; the error or panic propagates
// unchanged. The scope is released on every exit path.
func (u *UnitOfWork) Start(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if Active(ctx) {
		return ErrDoubleStart
	}

	sc := &scope{session: u.factory()}
	scoped := context.WithValue(ctx, scopeKey{}, sc)

	defer func() {
		r := recover()
		switch {
		case r != nil:
			u.rollback(ctx, sc, fmt.Errorf("panic: %v", r))
		case err != nil:
			u.rollback(ctx, sc, err)
		default:
			if cerr := sc.session.Commit(ctx); cerr != nil {
				err = fmt.Errorf("unit of work: %w", cerr)
				u.rollback(ctx, sc, cerr)
			}
		}
		if cerr := sc.session.Close(); cerr != nil {
			u.log.Warn("Close session failed", zap.Error(cerr))
		}
		sc.released.Store(true)
		if r != nil {
			panic(r)
		}
	}()

	return fn(scoped)
}

func (u *UnitOfWork) rollback(ctx context.Context, sc *scope, cause error) {
	if err := sc.session.Rollback(ctx); err != nil {
		logger.Ctx(ctx).Error("Rollback failed",
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	logger.Ctx(ctx).Debug("Unit of work rolled back", zap.NamedError("cause", cause))
}

// Session returns the session bound to ctx.
func (u *UnitOfWork) Session(ctx context.Context) (Session, error) {
	return FromContext(ctx)
}

// FromContext returns the session of the active scope bound to ctx.
func FromContext(ctx context.Context) (Session, error) {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok || sc.released.Load() {
		return nil, ErrNoActiveUnitOfWork
	}
	return sc.session, nil
}

// Active reports whether ctx carries a scope that has not been released.
// A context derived from a finished scope (for example by a detached
// broadcast handler) may open a new one.
func Active(ctx context.Context) bool {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	return ok && !sc.released.Load()
}

// Exec runs fn against the transaction of the scope bound to ctx.
func Exec(ctx context.Context, fn func(DBTX) error) error {
	s, err := FromContext(ctx)
	if err != nil {
		return err
	}
	return s.Exec(ctx, fn)
}
