package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/solatis/ticketkeeper/internal/types"
)

// ErrorClass says how the daemon should react to a store failure.
type ErrorClass int

const (
	// ClassFatal errors end the poll cycle.
	ClassFatal ErrorClass = iota
	// ClassTransient errors (lock waits, deadlocks, lost connections) are
	// logged and the event is retried next cycle.
	ClassTransient
	// ClassNotFound errors mean the event vanished between listing and handling.
	ClassNotFound
)

// String returns the class name used in logs and metric labels.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassNotFound:
		return "not_found"
	default:
		return "fatal"
	}
}

// Error wraps a store failure with its class and the operation that failed.
type Error struct {
	Class   ErrorClass
	Op      string
	EventID types.EventID
	Err     error
}

func (e *Error) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.EventID, e.Class, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of err. Errors not produced by this package are
// classified from their driver error.
func ClassOf(err error) ErrorClass {
	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}
	return classify(err)
}

// IsTransient reports whether err is a transient store error.
func IsTransient(err error) bool {
	return err != nil && ClassOf(err) == ClassTransient
}

// IsNotFound reports whether err means the event no longer exists.
func IsNotFound(err error) bool {
	return err != nil && ClassOf(err) == ClassNotFound
}

// wrap attaches op, id and class to err. nil stays nil.
func wrap(op string, id types.EventID, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: classify(err), Op: op, EventID: id, Err: err}
}

// Postgres SQLSTATEs treated as transient: lock and serialization conflicts,
// statement cancellation and admin shutdowns.
var transientPQCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

func classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassFatal
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, types.ErrEventNotFound):
		return ClassNotFound
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exceptions.
		if transientPQCodes[pqErr.Code] || strings.HasPrefix(string(pqErr.Code), "08") {
			return ClassTransient
		}
		return ClassFatal
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked {
			return ClassTransient
		}
		return ClassFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	return ClassFatal
}
