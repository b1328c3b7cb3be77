package types

import "errors"

// Sentinel errors for ticketkeeper operations.
var (
	// ErrEventNotFound indicates the event is in neither the status nor the history table.
	ErrEventNotFound = errors.New("event not found")

	// ErrEmptyCommand indicates the expanded ticket command has no program to run.
	ErrEmptyCommand = errors.New("ticket command is empty")

	// ErrNoTicketID indicates the ticket command exited cleanly but printed no ticket id.
	ErrNoTicketID = errors.New("ticket command output contains no ticket id")

	// ErrMissingSection indicates a required rule file section is absent.
	ErrMissingSection = errors.New("missing required section")

	// ErrMissingOption indicates a required option is absent from its section.
	ErrMissingOption = errors.New("missing required option")

	// ErrInvalidCycleTime indicates cycletime is not a positive integer.
	ErrInvalidCycleTime = errors.New("cycletime must be a positive integer")

	// ErrAlreadyRunning indicates a live process already owns the PID file.
	ErrAlreadyRunning = errors.New("daemon already running")

	// ErrNotRunning indicates no live process owns the PID file.
	ErrNotRunning = errors.New("daemon not running")
)
