package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/solatis/ticketkeeper/internal/types"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "no rows", err: sql.ErrNoRows, want: ClassNotFound},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", types.ErrEventNotFound), want: ClassNotFound},
		{name: "bad conn", err: driver.ErrBadConn, want: ClassTransient},
		{name: "deadline", err: context.DeadlineExceeded, want: ClassTransient},
		{name: "pq lock not available", err: &pq.Error{Code: "55P03"}, want: ClassTransient},
		{name: "pq deadlock", err: &pq.Error{Code: "40P01"}, want: ClassTransient},
		{name: "pq serialization", err: &pq.Error{Code: "40001"}, want: ClassTransient},
		{name: "pq connection failure", err: &pq.Error{Code: "08006"}, want: ClassTransient},
		{name: "pq unique violation", err: &pq.Error{Code: "23505"}, want: ClassFatal},
		{name: "pq undefined table", err: &pq.Error{Code: "42P01"}, want: ClassFatal},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: ClassTransient},
		{name: "sqlite locked", err: sqlite3.Error{Code: sqlite3.ErrLocked}, want: ClassTransient},
		{name: "sqlite constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint}, want: ClassFatal},
		{name: "unknown", err: errors.New("boom"), want: ClassFatal},
		{name: "store error keeps class", err: &Error{Class: ClassTransient, Op: "x", Err: errors.New("boom")}, want: ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	pqErr := &pq.Error{Code: "40P01", Message: "deadlock detected"}
	err := wrap("update event", "evt-1", pqErr)

	if !IsTransient(err) {
		t.Errorf("IsTransient(%v) = false, want true", err)
	}
	var got *pq.Error
	if !errors.As(err, &got) || got.Code != "40P01" {
		t.Errorf("errors.As(*pq.Error) failed for %v", err)
	}
	if wrap("noop", "", nil) != nil {
		t.Error("wrap(nil) != nil")
	}
	if IsNotFound(nil) || IsTransient(nil) {
		t.Error("nil classified as not found or transient")
	}
}
