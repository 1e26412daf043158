package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errClass
	}{
		{name: "nil", err: nil, want: classNone},
		{name: "bad conn", err: driver.ErrBadConn, want: classConnectivity},
		{name: "wrapped bad conn", err: fmt.Errorf("exec: %w", driver.ErrBadConn), want: classConnectivity},
		{name: "tx done", err: sql.ErrTxDone, want: classInvalidTxn},
		{name: "conn done", err: sql.ErrConnDone, want: classInvalidTxn},
		{name: "deadline", err: context.DeadlineExceeded, want: classConnectivity},
		{name: "unique constraint", err: errors.New("UNIQUE constraint failed: EventLog.UID"), want: classConstraint},
		{name: "duplicate key", err: errors.New("duplicate key value violates unique constraint"), want: classConstraint},
		{name: "database locked", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: classConnectivity},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: classConnectivity},
		{name: "plain error", err: errors.New("no such column: Nope"), want: classNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
