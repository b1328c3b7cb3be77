// Package store provides the event store the daemon polls.
//
// Open events live in the status table. Deleting an event moves it to the
// history table, and every status change the daemon makes is recorded with a
// reason in event_log. All failures are returned as *Error carrying a class
// (transient, not found, fatal) so the poll loop can decide whether to carry
// on.
package store

import (
	"context"
	"time"

	"github.com/solatis/ticketkeeper/internal/core/db"
	"github.com/solatis/ticketkeeper/internal/types"
)

// DefaultUser is recorded as the author of audit log entries.
const DefaultUser = "ticketkeeper"

// EventStore is the event store surface used by the daemon.
type EventStore interface {
	// ListEvents returns the events in the status table, oldest last-seen first.
	ListEvents(ctx context.Context) ([]types.EventRef, error)
	// GetEvent returns an event from status, falling back to history.
	GetEvent(ctx context.Context, id types.EventID) (*types.Event, error)
	// SetEventState changes the state of the given events.
	SetEventState(ctx context.Context, state types.EventState, ids ...types.EventID) error
	// UpdateEvent rewrites status fields and records reason in the audit log.
	UpdateEvent(ctx context.Context, id types.EventID, upd types.EventUpdate, reason string) error
	// DeleteEvent moves an event from status to history.
	DeleteEvent(ctx context.Context, id types.EventID) error
}

// LogEntry is one audit record.
type LogEntry struct {
	EvID     types.EventID `db:"evid"`
	UserName string        `db:"user_name"`
	CTime    time.Time     `db:"ctime"`
	Text     string        `db:"text"`
}

// SQLStore implements EventStore over the status/history/event_log tables.
type SQLStore struct {
	q    *db.Queries
	user string
	now  func() time.Time
}

// NewSQLStore creates a store that records audit entries as user.
func NewSQLStore(q *db.Queries, user string) *SQLStore {
	if user == "" {
		user = DefaultUser
	}
	return &SQLStore{
		q:    q,
		user: user,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) ListEvents(ctx context.Context) ([]types.EventRef, error) {
	var refs []types.EventRef
	if err := s.q.Select(ctx, "list-events", &refs); err != nil {
		return nil, wrap("list events", "", err)
	}
	return refs, nil
}

func (s *SQLStore) GetEvent(ctx context.Context, id types.EventID) (*types.Event, error) {
	var evt types.Event

	err := s.q.Get(ctx, "get-status-event", &evt, id)
	if err == nil {
		return &evt, nil
	}
	if ClassOf(err) != ClassNotFound {
		return nil, wrap("get event", id, err)
	}

	err = s.q.Get(ctx, "get-history-event", &evt, id)
	if err != nil {
		if ClassOf(err) == ClassNotFound {
			return nil, wrap("get event", id, types.ErrEventNotFound)
		}
		return nil, wrap("get event", id, err)
	}
	return &evt, nil
}

func (s *SQLStore) SetEventState(ctx context.Context, state types.EventState, ids ...types.EventID) error {
	if len(ids) == 0 {
		return nil
	}

	var changed int64
	err := s.q.InTx(ctx, func(tx *db.Queries) error {
		now := s.now()
		for _, id := range ids {
			res, err := tx.Exec(ctx, "set-event-state", int(state), now, id)
			if err != nil {
				return wrap("set event state", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrap("set event state", id, err)
			}
			changed += n
		}
		return nil
	})
	if err != nil {
		return asStoreError("set event state", ids[0], err)
	}
	if changed == 0 {
		return wrap("set event state", ids[0], types.ErrEventNotFound)
	}
	return nil
}

func (s *SQLStore) UpdateEvent(ctx context.Context, id types.EventID, upd types.EventUpdate, reason string) error {
	err := s.q.InTx(ctx, func(tx *db.Queries) error {
		if upd.OwnerID != nil {
			if err := execOne(ctx, tx, "update-owner", id, *upd.OwnerID, id); err != nil {
				return err
			}
		}
		if upd.Summary != nil {
			if err := execOne(ctx, tx, "update-summary", id, *upd.Summary, id); err != nil {
				return err
			}
		}
		if reason == "" {
			return nil
		}
		if _, err := tx.Exec(ctx, "insert-event-log", id, s.user, s.now(), reason); err != nil {
			return wrap("write event log", id, err)
		}
		return nil
	})
	return asStoreError("update event", id, err)
}

func (s *SQLStore) DeleteEvent(ctx context.Context, id types.EventID) error {
	err := s.q.InTx(ctx, func(tx *db.Queries) error {
		if err := execOne(ctx, tx, "archive-event", id, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "stamp-deleted", s.now(), id); err != nil {
			return wrap("archive event", id, err)
		}
		if _, err := tx.Exec(ctx, "delete-event", id); err != nil {
			return wrap("delete event", id, err)
		}
		return nil
	})
	return asStoreError("delete event", id, err)
}

// InsertEvent adds an event to the status table, filling in a UUIDv7 id and
// timestamps when absent. A missing first time is taken from a UUIDv7 id.
func (s *SQLStore) InsertEvent(ctx context.Context, evt *types.Event) error {
	now := s.now()
	if evt.EvID == "" {
		evt.EvID = types.NewEventID()
	}
	if evt.FirstTime.IsZero() {
		evt.FirstTime = types.EventIDTime(evt.EvID)
	}
	if evt.FirstTime.IsZero() {
		evt.FirstTime = now
	}
	if evt.LastTime.IsZero() {
		evt.LastTime = evt.FirstTime
	}
	if evt.StateChange.IsZero() {
		evt.StateChange = now
	}
	if evt.Count == 0 {
		evt.Count = 1
	}

	if _, err := s.q.NamedExec(ctx, "insert-event", evt); err != nil {
		return wrap("insert event", evt.EvID, err)
	}
	return nil
}

// EventLog returns the audit entries of an event, oldest first.
func (s *SQLStore) EventLog(ctx context.Context, id types.EventID) ([]LogEntry, error) {
	var entries []LogEntry
	if err := s.q.Select(ctx, "list-event-log", &entries, id); err != nil {
		return nil, wrap("list event log", id, err)
	}
	return entries, nil
}

// execOne runs a named statement that must touch exactly one status row.
func execOne(ctx context.Context, q *db.Queries, name string, id types.EventID, args ...interface{}) error {
	res, err := q.Exec(ctx, name, args...)
	if err != nil {
		return wrap(name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(name, id, err)
	}
	if n == 0 {
		return wrap(name, id, types.ErrEventNotFound)
	}
	return nil
}

// asStoreError keeps an existing *Error and classifies anything else
// (begin/commit failures).
func asStoreError(op string, id types.EventID, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return wrap(op, id, err)
}
