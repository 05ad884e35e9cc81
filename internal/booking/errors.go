package booking

import (
	"fmt"
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
)

// ValidationError reports malformed input. The caller must correct the
// request; it is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing appointment, customer, staff member or
// detail service.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConflictError reports an overlapping booking on the staff calendar. It
// carries the earliest conflicting appointment so the caller can present
// alternatives.
type ConflictError struct {
	ConflictingID    string
	ConflictingStart time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time window overlaps appointment %s starting %s",
		e.ConflictingID, e.ConflictingStart.UTC().Format(time.RFC3339))
}

// InvalidTransitionError reports a state change not allowed from the current
// status. Terminal; not retried.
type InvalidTransitionError struct {
	From model.Status
	To   model.Status
}

func (e *InvalidTransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("appointment not modifiable: status %s is terminal", e.From)
	}
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// TransientError wraps a lock timeout, serialization failure or deadlock at
// the storage layer. The whole operation is safe to retry from scratch.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage failure: %v", e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}
