package uow

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"craftbot.io/craftbot/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "uow.db") + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func insert(ctx context.Context, body string) error {
	return Exec(ctx, func(tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO notes (body) VALUES ($1)`, body)
		return err
	})
}

func bodies(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT body FROM notes ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		require.NoError(t, rows.Scan(&b))
		out = append(out, b)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestStart_CommitsOnSuccess(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))

	err := u.Start(context.Background(), func(ctx context.Context) error {
		require.True(t, Active(ctx))
		if err := insert(ctx, "first"); err != nil {
			return err
		}
		return insert(ctx, "second")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, bodies(t, db))
}

func TestStart_RollsBackOnError(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))
	boom := errors.New("boom")

	err := u.Start(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insert(ctx, "lost"))
		return boom
	})
	assert.Same(t, boom, err, "the error propagates unchanged")
	assert.Empty(t, bodies(t, db))
}

func TestStart_RollsBackOnPanic(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))
	var scoped context.Context

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = u.Start(context.Background(), func(ctx context.Context) error {
			scoped = ctx
			require.NoError(t, insert(ctx, "lost"))
			panic("kaboom")
		})
	})
	assert.Empty(t, bodies(t, db))
	assert.False(t, Active(scoped), "scope is released after a panic")
}

func TestStart_DoubleStart(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))

	err := u.Start(context.Background(), func(ctx context.Context) error {
		return u.Start(ctx, func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrDoubleStart)
}

func TestSession_NoActiveUnitOfWork(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))

	_, err := u.Session(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveUnitOfWork)
	assert.ErrorIs(t, insert(context.Background(), "x"), ErrNoActiveUnitOfWork)

	var (
		scoped  context.Context
		session Session
	)
	require.NoError(t, u.Start(context.Background(), func(ctx context.Context) error {
		scoped = ctx
		var err error
		session, err = u.Session(ctx)
		return err
	}))

	_, err = FromContext(scoped)
	assert.ErrorIs(t, err, ErrNoActiveUnitOfWork, "lookup fails once the scope is released")
	assert.ErrorIs(t, session.Exec(scoped, func(DBTX) error { return nil }), ErrSessionClosed)

	// A context derived from a finished scope may open a new one.
	require.NoError(t, u.Start(scoped, func(ctx context.Context) error {
		return insert(ctx, "again")
	}))
	assert.Equal(t, []string{"again"}, bodies(t, db))
}

func TestSession_CommitMidScope(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))
	boom := errors.New("boom")

	err := u.Start(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insert(ctx, "kept"))
		s, err := FromContext(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Flush(ctx))
		require.NoError(t, s.Commit(ctx))

		require.NoError(t, insert(ctx, "lost"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"kept"}, bodies(t, db))
}

func TestSession_ConcurrentExecIsSerialized(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))

	err := u.Start(context.Background(), func(ctx context.Context) error {
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- insert(ctx, "row")
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, bodies(t, db), 10)
}

func TestStart_ConcurrentScopesAreIsolated(t *testing.T) {
	db := openDB(t)
	u := New(NewSQLSessionFactory(db))

	var (
		wg       sync.WaitGroup
		barrier  sync.WaitGroup
		sessions [2]Session
	)
	barrier.Add(2)
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = u.Start(context.Background(), func(ctx context.Context) error {
				s, err := FromContext(ctx)
				sessions[i] = s
				barrier.Done()
				barrier.Wait()
				return err
			})
		}()
	}
	wg.Wait()

	require.NotNil(t, sessions[0])
	require.NotNil(t, sessions[1])
	assert.NotSame(t, sessions[0], sessions[1])
}
