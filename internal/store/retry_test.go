package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyDriver fails a configurable number of statements with a
// connectivity-shaped error before letting everything through.
type flakyDriver struct {
	mu       sync.Mutex
	failures int
	execs    int
}

func (d *flakyDriver) Open(name string) (driver.Conn, error) {
	return &flakyConn{d: d}, nil
}

func (d *flakyDriver) attempt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs++
	if d.failures > 0 {
		d.failures--
		return errors.New("write: connection reset by peer")
	}
	return nil
}

type flakyConn struct {
	d *flakyDriver
}

func (c *flakyConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *flakyConn) Close() error { return nil }

func (c *flakyConn) Begin() (driver.Tx, error) {
	return flakyTx{}, nil
}

func (c *flakyConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.d.attempt(); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

type flakyTx struct{}

func (flakyTx) Commit() error   { return nil }
func (flakyTx) Rollback() error { return nil }

var (
	flakyOnce sync.Once
	flaky     = &flakyDriver{}
)

func newFlakyStore(t *testing.T) (*Store, *flakyDriver) {
	t.Helper()
	flakyOnce.Do(func() { sql.Register("flaky", flaky) })
	flaky.mu.Lock()
	flaky.failures = 0
	flaky.execs = 0
	flaky.mu.Unlock()

	s := New("flaky-dsn", zerolog.Nop(), WithOpenFunc(func(dsn string) (*sql.DB, error) {
		return sql.Open("flaky", dsn)
	}))
	t.Cleanup(func() { _ = s.Close() })
	return s, flaky
}

func TestExecRetriesOnceOnConnectivityFailure(t *testing.T) {
	s, d := newFlakyStore(t)
	d.failures = 1

	n, err := s.Exec(context.Background(), "UPDATE EventLog SET Title = 'x'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, d.execs)
}

func TestExecDoesNotRetryTwice(t *testing.T) {
	s, d := newFlakyStore(t)
	d.failures = 2

	_, err := s.Exec(context.Background(), "UPDATE EventLog SET Title = 'x'")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after retry")
	assert.Equal(t, 2, d.execs)
}

func TestTransactionRetriesWholeBatchOnce(t *testing.T) {
	s, d := newFlakyStore(t)
	d.failures = 1

	tr := NewTransaction(s, nil, zerolog.Nop())
	require.NoError(t, tr.AddRow("EventLog", map[string]any{"UID": "a9", "Unit": "F309"}))
	require.NoError(t, tr.AddRow("EventLog", map[string]any{"UID": "b1", "Unit": "F310"}))

	n, err := tr.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	// First attempt failed on the first statement, the retry ran both.
	assert.Equal(t, 3, d.execs)
	assert.Equal(t, 0, tr.StagedCount())
}
