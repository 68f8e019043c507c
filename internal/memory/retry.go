package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// RetryPolicy retries transient storage errors at a fixed interval until a
// wall-clock budget is spent.
type RetryPolicy struct {
	Budget   time.Duration
	Interval time.Duration
}

// DefaultRetryPolicy mirrors the configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Budget: 2 * time.Second, Interval: 100 * time.Millisecond}
}

// do runs op until it succeeds, fails with a non-transient error, or the
// budget runs out. No attempt starts after the deadline, so a permanently
// busy engine fails within Budget plus one Interval.
func (p RetryPolicy) do(ctx context.Context, log zerolog.Logger, name string, op func() error) error {
	deadline := time.Now().Add(p.Budget)
	attempts := 0
	for {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}

		wait := p.Interval
		if remaining := time.Until(deadline); remaining <= 0 {
			log.Warn().Err(err).Str("op", name).Int("attempts", attempts).Msg("retry budget exhausted")
			return fmt.Errorf("%s after %d attempts: %w: %w", name, attempts, ErrStorageContention, err)
		} else if remaining < wait {
			wait = remaining
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-t.C:
		}
	}
}

// isTransient reports whether err is SQLite busy/locked contention.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
