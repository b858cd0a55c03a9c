package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrBookingCancelled is returned when an operation targets a booking
// that has already been cancelled (e.g. a confirm racing a cancel).
var ErrBookingCancelled = errors.New("booking already cancelled")

// ValidationError rejects a malformed request before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// QuantityBoundsError names the line item whose quantity falls outside
// its catalog-declared bounds. Quantities are never silently clamped.
type QuantityBoundsError struct {
	Line     string
	ID       int64
	Quantity int64
	Min      int64
	Max      int64
}

func (e *QuantityBoundsError) Error() string {
	return fmt.Sprintf("%s %d: quantity %d outside bounds [%d, %d]", e.Line, e.ID, e.Quantity, e.Min, e.Max)
}

// StatusTransitionError reports an illegal lifecycle or payment move.
// The booking state is unchanged.
type StatusTransitionError struct {
	From string
	To   string
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// PrematureTransitionError reports a time-gated transition attempted
// before its window opened.
type PrematureTransitionError struct {
	To        Status
	NotBefore time.Time
}

func (e *PrematureTransitionError) Error() string {
	return fmt.Sprintf("transition to %s not allowed before %s", e.To, e.NotBefore.Format(time.RFC3339))
}

// ResourceConflictError carries the ids of the confirmed bookings whose
// claims clash with the requested windows.
type ResourceConflictError struct {
	ResourceID string
	BookingIDs []int64
}

func (e *ResourceConflictError) Error() string {
	return fmt.Sprintf("resource %s already claimed by bookings %v", e.ResourceID, e.BookingIDs)
}
