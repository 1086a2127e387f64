package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrSessionClosed is returned by a session used after its scope released it.
var ErrSessionClosed = errors.New("session is closed")

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is the transactional handle shared by every handler of one scope.
type Session interface {
	// Exec runs fn against the current transaction, beginning one if needed.
	// Calls are serialized; concurrent handlers of a scope take turns.
	Exec(ctx context.Context, fn func(DBTX) error) error
	// Flush makes pending writes visible inside the transaction.
	Flush(ctx context.Context) error
	// Commit commits the current transaction. The next Exec begins a new one.
	Commit(ctx context.Context) error
	// Rollback discards the current transaction.
	Rollback(ctx context.Context) error
	// Close rolls back anything uncommitted and rejects further use.
	Close() error
}

// SessionFactory produces a fresh session for each scope.
type SessionFactory func() Session

// NewSQLSessionFactory returns a factory of sessions over db.
func NewSQLSessionFactory(db *sql.DB) SessionFactory {
	return func() Session {
		return &sqlSession{db: db}
	}
}

type sqlSession struct {
	db *sql.DB

	mu     sync.Mutex
	tx     *sql.Tx
	closed bool
}

func (s *sqlSession) Exec(ctx context.Context, fn func(DBTX) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		// The transaction outlives the statement context: a Request timeout
		// cancels one statement, not the whole scope.
		tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		s.tx = tx
	}
	return fn(s.tx)
}

// Flush is satisfied by statement execution; it only checks the session.
func (s *sqlSession) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *sqlSession) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *sqlSession) Rollback(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked()
}

func (s *sqlSession) rollbackLocked() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

func (s *sqlSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.rollbackLocked()
}
