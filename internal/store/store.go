package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"powderlab/internal/config"
)

// ErrConflict marks a transient lock conflict that survived the retry
// budget. It is the only contention signal callers should match on.
var ErrConflict = errors.New("store: transient lock conflict")

// ErrNotFound is returned by lookups that require a row to exist.
var ErrNotFound = errors.New("store: not found")

// Store manages powderlab persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

const sqliteBusyCode = 5

// Open initializes or connects to the shared database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.Store.BusyTimeoutMillis),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:             db,
		path:           dbPath,
		retryAttempts:  cfg.Store.RetryAttempts,
		initialBackoff: time.Duration(cfg.Store.RetryInitialBackoffMilli) * time.Millisecond,
		maxBackoff:     time.Duration(cfg.Store.RetryMaxBackoffMillis) * time.Millisecond,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Health runs a quick integrity check against the database file.
func (s *Store) Health(ctx context.Context) error {
	var verdict string
	if err := s.db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&verdict); err != nil {
		return fmt.Errorf("quick check: %w", err)
	}
	if verdict != "ok" {
		return fmt.Errorf("quick check reported %q", verdict)
	}
	return nil
}

// Tx exposes typed entity operations scoped to one transaction.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

// WithTx runs fn inside a single transaction. On a lock conflict the
// transaction is rolled back and the whole of fn is re-run, so fn must
// not carry side effects outside the store. Business errors from fn
// abort immediately without retry.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	ctx = ensureContext(ctx)
	delay := s.initialBackoff
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		lastErr = s.runTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == s.retryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= s.maxBackoff {
			delay = next
		}
	}
	if isSQLiteBusy(lastErr) {
		return fmt.Errorf("%w: %v", ErrConflict, lastErr)
	}
	return lastErr
}

func (s *Store) runTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{tx: tx, ctx: ctx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (t *Tx) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, args...)
}

func (t *Tx) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, args...)
}

func (t *Tx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, query, args...)
}
