// Package types provides domain models shared across ticketkeeper components.
//
// Event mirrors the flat status record of the monitoring platform's event
// store. Field names follow the platform's event attributes; db tags match the
// columns of the status and history tables, json tags match the import format.
package types

import "time"

// EventID identifies an event in the store.
// Platform-issued ids are opaque strings; imported events without one receive
// a UUIDv7 (see NewEventID).
type EventID string

// EventState is the lifecycle state of an event in the store.
type EventState int

const (
	// EventStateNew marks an event nobody has handled yet.
	// Only new events are considered for tickets and auto-clear.
	EventStateNew EventState = 0

	// EventStateAcknowledged marks an event someone (or a ticket) owns.
	EventStateAcknowledged EventState = 1

	// EventStateSuppressed marks an event hidden by the platform.
	EventStateSuppressed EventState = 2
)

// String returns the platform name of the state.
func (s EventState) String() string {
	switch s {
	case EventStateNew:
		return "new"
	case EventStateAcknowledged:
		return "acknowledged"
	case EventStateSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Severity levels used by the platform.
const (
	SeverityClear    = 0
	SeverityDebug    = 1
	SeverityInfo     = 2
	SeverityWarning  = 3
	SeverityError    = 4
	SeverityCritical = 5
)

// TimeFormat renders event timestamps the way the platform prints them.
const TimeFormat = "2006/01/02 15:04:05.000"

// Event is a monitoring event as stored in the status (or history) table.
// Systems, DeviceGroups and EventGroup are pipe-delimited multi-values with a
// leading '|' (e.g. "|/Linux|/Linux/Web").
type Event struct {
	EvID              EventID    `db:"evid" json:"evid"`
	Device            string     `db:"device" json:"device"`
	Component         string     `db:"component" json:"component"`
	EventClass        string     `db:"event_class" json:"eventClass"`
	EventKey          string     `db:"event_key" json:"eventKey"`
	Summary           string     `db:"summary" json:"summary"`
	Message           string     `db:"message" json:"message"`
	Severity          int        `db:"severity" json:"severity"`
	EventState        EventState `db:"event_state" json:"eventState"`
	EventClassKey     string     `db:"event_class_key" json:"eventClassKey"`
	EventGroup        string     `db:"event_group" json:"eventGroup"`
	StateChange       time.Time  `db:"state_change" json:"stateChange"`
	FirstTime         time.Time  `db:"first_time" json:"firstTime"`
	LastTime          time.Time  `db:"last_time" json:"lastTime"`
	Count             int        `db:"count" json:"count"`
	ProdState         int        `db:"prod_state" json:"prodState"`
	SuppID            string     `db:"supp_id" json:"suppid"`
	Manager           string     `db:"manager" json:"manager"`
	Agent             string     `db:"agent" json:"agent"`
	DeviceClass       string     `db:"device_class" json:"DeviceClass"`
	Location          string     `db:"location" json:"Location"`
	Systems           string     `db:"systems" json:"Systems"`
	DeviceGroups      string     `db:"device_groups" json:"DeviceGroups"`
	IPAddress         string     `db:"ip_address" json:"ipAddress"`
	Facility          int        `db:"facility" json:"facility"`
	Priority          int        `db:"priority" json:"priority"`
	NtEvID            int        `db:"nt_evid" json:"ntevid"`
	OwnerID           string     `db:"owner_id" json:"ownerid"`
	ClearID           string     `db:"clear_id" json:"clearid"`
	DevicePriority    int        `db:"device_priority" json:"DevicePriority"`
	EventClassMapping string     `db:"event_class_mapping" json:"eventClassMapping"`
}

// EventRef is the lightweight row returned when enumerating events.
type EventRef struct {
	EvID       EventID    `db:"evid"`
	EventState EventState `db:"event_state"`
	LastTime   time.Time  `db:"last_time"`
	FirstTime  time.Time  `db:"first_time"`
}

// EventUpdate carries the status fields the daemon rewrites.
// Nil fields are left unchanged.
type EventUpdate struct {
	OwnerID *string
	Summary *string
}
