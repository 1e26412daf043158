package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
)

// errClass buckets a store error by how the caller should react: reset the
// connection and retry, retry the transaction, or give up.
type errClass int

const (
	classNone errClass = iota
	classConnectivity
	classInvalidTxn
	classConstraint
)

// classify decides the retry treatment for a store error. Driver error
// types are checked first; the string checks cover drivers that surface
// connectivity and constraint failures as plain errors.
func classify(err error) errClass {
	if err == nil {
		return classNone
	}
	if errors.Is(err, driver.ErrBadConn) {
		return classConnectivity
	}
	if errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone) {
		return classInvalidTxn
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classConnectivity
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "constraint failed"),
		strings.Contains(msg, "duplicate key"):
		return classConstraint
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "i/o timeout"):
		return classConnectivity
	}
	return classNone
}
