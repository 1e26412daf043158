// Package store wraps the SQL database behind retrying call guards. Every
// statement goes through a safe call that classifies failures: connectivity
// errors reset the connection pool and retry once, dead transactions retry
// once on a fresh transaction, and constraint violations surface as
// ErrRowExists without a retry. Reachability probes are cached so hot paths
// never block on a dead network.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store errors.
var (
	ErrRowExists   = errors.New("row already exists")
	ErrUnavailable = errors.New("store is unreachable")
)

// openFunc opens a database handle for a DSN. Swapped out in tests to
// inject failures.
type openFunc func(dsn string) (*sql.DB, error)

func defaultOpen(dsn string) (*sql.DB, error) {
	return sql.Open("sqlite", dsn)
}

// Option configures a Store.
type Option func(*Store)

// WithOpenFunc replaces how the store opens its database handle.
func WithOpenFunc(fn openFunc) Option {
	return func(s *Store) { s.open = fn }
}

// WithProbe replaces the reachability probe. The default pings the
// database handle.
func WithProbe(fn func(ctx context.Context) error) Option {
	return func(s *Store) { s.probe = fn }
}

// WithRecheck sets how long a reachability result is trusted before the
// probe runs again.
func WithRecheck(d time.Duration) Option {
	return func(s *Store) { s.recheck = d }
}

// Store is a retrying handle to the SQL database.
type Store struct {
	mu   sync.Mutex
	dsn  string
	db   *sql.DB
	open openFunc
	log  zerolog.Logger

	probe     func(ctx context.Context) error
	recheck   time.Duration
	lastProbe time.Time
	lastUp    bool
}

// New returns a store for the given DSN. The database is opened lazily on
// first use.
func New(dsn string, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		dsn:     dsn,
		open:    defaultOpen,
		log:     log.With().Str("component", "store").Logger(),
		recheck: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.probe == nil {
		s.probe = s.pingProbe
	}
	return s
}

// DSN returns the data source the store was built with.
func (s *Store) DSN() string { return s.dsn }

// DB returns the live database handle, opening it if needed.
func (s *Store) DB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbLocked()
}

func (s *Store) dbLocked() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := s.open(s.dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s.db = db
	return db, nil
}

// Reset discards the connection pool so the next call opens fresh. Called
// by the safe-call path after a connectivity failure.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	// Force a fresh probe after a reset.
	s.lastProbe = time.Time{}
	s.log.Debug().Msg("connection pool reset")
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) pingProbe(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Available reports whether the store is reachable. The probe result is
// cached for the recheck interval, so callers can gate every operation on
// it without paying a round trip each time.
func (s *Store) Available(ctx context.Context) bool {
	s.mu.Lock()
	if !s.lastProbe.IsZero() && time.Since(s.lastProbe) < s.recheck {
		up := s.lastUp
		s.mu.Unlock()
		return up
	}
	s.mu.Unlock()

	err := s.probe(ctx)
	up := err == nil

	s.mu.Lock()
	if up != s.lastUp && !s.lastProbe.IsZero() {
		s.log.Info().Bool("reachable", up).Msg("store reachability changed")
	}
	s.lastProbe = time.Now()
	s.lastUp = up
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(err).Msg("store unreachable")
	}
	return up
}

// safeCall runs fn against the database, applying the retry taxonomy. A
// connectivity failure resets the pool and retries the call once; a dead
// transaction or connection retries once without a reset; a constraint
// violation maps to ErrRowExists and never retries.
func (s *Store) safeCall(ctx context.Context, name string, fn func(db *sql.DB) error) error {
	db, err := s.dbErr()
	if err != nil {
		return err
	}

	err = fn(db)
	switch classify(err) {
	case classNone:
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	case classConstraint:
		return fmt.Errorf("%s: %w", name, ErrRowExists)
	case classConnectivity:
		s.log.Warn().Err(err).Str("call", name).Msg("connectivity failure, resetting and retrying")
		s.Reset()
	case classInvalidTxn:
		s.log.Warn().Err(err).Str("call", name).Msg("dead transaction, retrying")
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
	db, derr := s.dbErr()
	if derr != nil {
		return derr
	}
	if err = fn(db); err != nil {
		if classify(err) == classConstraint {
			return fmt.Errorf("%s: %w", name, ErrRowExists)
		}
		return fmt.Errorf("%s (after retry): %w", name, err)
	}
	return nil
}

func (s *Store) dbErr() (*sql.DB, error) {
	db, err := s.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return db, nil
}

// callName renders the identity of a store call, statement and arguments
// included, so retry logs and fatal errors are diagnosable on their own.
func callName(op, stmt string, args []any) string {
	if len(args) == 0 {
		return fmt.Sprintf("%s %q", op, stmt)
	}
	return fmt.Sprintf("%s %q %v", op, stmt, args)
}

// Exec runs a statement through the safe-call path.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := s.safeCall(ctx, callName("exec", query, args), func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

// Query runs a SELECT through the safe-call path and returns the rows as
// column-keyed maps, in result order.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	var out []map[string]any
	err := s.safeCall(ctx, callName("query", query, args), func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanRows(rows)
		return err
	})
	return out, err
}

// QueryValue runs a single-value SELECT (an aggregate, typically) and
// returns the scalar, nil when the result is NULL or empty.
func (s *Store) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	var val any
	err := s.safeCall(ctx, callName("query value", query, args), func(db *sql.DB) error {
		err := db.QueryRowContext(ctx, query, args...).Scan(&val)
		if errors.Is(err, sql.ErrNoRows) {
			val = nil
			return nil
		}
		return err
	})
	return val, err
}

// MaxDate returns the greatest value of a date column, used to decide where
// an import should resume. A table with no rows returns the zero time.
func (s *Store) MaxDate(ctx context.Context, table, col string) (time.Time, error) {
	val, err := s.QueryValue(ctx, fmt.Sprintf("SELECT MAX(%s) FROM %s", col, table))
	if err != nil {
		return time.Time{}, err
	}
	switch v := val.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
			if t, perr := time.Parse(layout, v); perr == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("max %s.%s: unparseable date %q", table, col, v)
	}
	return time.Time{}, fmt.Errorf("max %s.%s: unexpected type %T", table, col, val)
}

// scanRows reads every row into a column-keyed map. Byte slices are copied
// to strings because drivers reuse their buffers between rows.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
