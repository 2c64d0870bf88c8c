package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/sethvargo/go-retry"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db      *sql.DB
	dsn     string
	pending *store.Pending

	sealer    *cryptox.Sealer
	sealed    map[string]struct{}
	busyRetry func() retry.Backoff
	now       func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithSealer encrypts the values of keys at rest. Values written before a
// sealer was configured are still readable.
func WithSealer(s *cryptox.Sealer, keys ...string) Option {
	return func(st *Store) {
		st.sealer = s
		for _, k := range keys {
			st.sealed[k] = struct{}{}
		}
	}
}

// WithBusyRetry overrides the backoff used when the database is locked.
func WithBusyRetry(b func() retry.Backoff) Option {
	return func(st *Store) { st.busyRetry = b }
}

func defaultBusyRetry() retry.Backoff {
	b := retry.NewFibonacci(10 * time.Millisecond)
	b = retry.WithCappedDuration(500*time.Millisecond, b)
	return retry.WithMaxRetries(8, b)
}

func NewStore(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	} {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := &Store{
		db:        db,
		dsn:       dsn,
		pending:   store.NewPending(),
		sealed:    make(map[string]struct{}),
		busyRetry: defaultBusyRetry,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Attributes() store.Attributes { return &attributesRepo{s: s} }

// withTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// withBusyRetry reruns fn while sqlite reports the database as busy.
func (s *Store) withBusyRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.busyRetry(), func(ctx context.Context) error {
		err := fn(ctx)
		if isBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}

	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return strings.Contains(err.Error(), "database is locked")
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
