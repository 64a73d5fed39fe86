package models

import "errors"

// Workflow error taxonomy. NotFound deliberately covers both "absent" and
// "belongs to another organization" so callers cannot probe tenant boundaries.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrItemUnavailable     = errors.New("item is not available for booking")
	ErrInvalidPax          = errors.New("party size outside allowed range")
	ErrInvalidDates        = errors.New("invalid or out-of-range dates")
	ErrQuoteExpired        = errors.New("quote has expired")
	ErrCapacityExceeded    = errors.New("capacity exceeded for requested date")
	ErrLedgerInconsistency = errors.New("capacity ledger inconsistency")
	ErrInvalidTransition   = errors.New("transition not allowed from current status")
	// ErrTimeout means the database could not confirm the operation in time.
	// The enclosing transition fails closed: nothing was committed.
	ErrTimeout = errors.New("operation timed out")
)
