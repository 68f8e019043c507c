package memory

import (
	"context"
	"database/sql"
	"time"
)

// DB exposes the internal *sql.DB for test helpers in memory_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FailWrites makes every write statement return fn's error instead of
// executing; a nil fn restores normal behaviour.
func (s *Store) FailWrites(fn func(query string) error) {
	if fn == nil {
		s.hooks.exec = nil
		return
	}
	s.hooks.exec = func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
		if err := fn(query); err != nil {
			return nil, err
		}
		return db.ExecContext(ctx, query, args...)
	}
}

// FailReads is FailWrites for queries.
func (s *Store) FailReads(fn func(query string) error) {
	if fn == nil {
		s.hooks.query = nil
		return
	}
	s.hooks.query = func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
		if err := fn(query); err != nil {
			return nil, err
		}
		return db.QueryContext(ctx, query, args...)
	}
}

// SetClock pins the store clock and returns a restore func.
func SetClock(now func() time.Time) func() {
	old := timeNow
	timeNow = now
	return func() { timeNow = old }
}
