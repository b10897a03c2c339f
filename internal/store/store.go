package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

/*
Store owns every persisted entity: pages, learning bits, cross-references,
categorization rules, crawl jobs, search logs, and the adaptive thresholds.

Guarantees:
  - Single writer: write transactions are serialized through a mutex;
    readers run in parallel with the writer (WAL mode).
  - Bit inserts are batched per transaction, and the full-text index is
    updated inside the same transaction as the primary table.
  - The schema is migrated to the current version on open (idempotent).
  - A checksum mismatch on open fails fast; no recovery is attempted.

Transient I/O failures are retried up to 3 times with exponential backoff
before being surfaced as an unavailable-store error.
*/
type Store struct {
	db   *sql.DB
	path string
	log  zerolog.Logger

	// writeMu serializes write transactions. SQLite allows one writer at
	// a time; queueing in-process avoids SQLITE_BUSY churn.
	writeMu sync.Mutex
}

// Open initializes the SQLite database at the given path, verifying
// integrity and migrating the schema to the current version.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{
				Message: fmt.Sprintf("failed to create store directory: %v", err),
				Cause:   ErrCauseUnavailable,
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("failed to open database: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}

	s := &Store{db: db, path: path, log: log}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &StoreError{
				Message: fmt.Sprintf("failed to apply %q: %v", pragma, err),
				Cause:   ErrCauseUnavailable,
			}
		}
	}

	// Corruption check happens before migration so a damaged file is
	// rejected without being touched.
	var integrity string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil || integrity != "ok" {
		db.Close()
		return nil, &StoreError{
			Message: fmt.Sprintf("integrity check failed: %v %s", err, integrity),
			Cause:   ErrCauseCorrupted,
		}
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("store opened")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withWriteTx runs fn inside a write transaction under the writer lock.
// Transient failures (busy/locked/disk I/O) are retried up to three times
// with exponential backoff before surfacing as unavailable.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	const maxAttempts = 3
	backoff := 50 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &StoreError{Message: err.Error(), Cause: ErrCauseCancelled}
		}

		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}

		lastErr = err
		if attempt < maxAttempts {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return &StoreError{Message: ctx.Err().Error(), Cause: ErrCauseCancelled}
			case <-timer.C:
			}
			backoff *= 2
		}
	}

	return &StoreError{
		Message: fmt.Sprintf("write failed after %d attempts: %v", maxAttempts, lastErr),
		Cause:   ErrCauseUnavailable,
	}
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// isTransient classifies driver errors that warrant a retry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StoreError); ok {
		return se.Retryable
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") ||
		strings.Contains(msg, "locked") ||
		strings.Contains(msg, "disk i/o")
}

// marshalTime stores timestamps in UTC RFC3339 with sub-second precision.
func marshalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func unmarshalTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
