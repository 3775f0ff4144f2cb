package leads

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateLead is returned when an insert collides with an
	// existing lead ID.
	ErrDuplicateLead = errors.New("lead already exists")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInvalidPageToken is returned when a pagination token cannot be
	// decoded or does not belong to the query it was presented with.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// FieldError reports a validation failure tied to a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// SpamError rejects a submission that tripped the spam heuristics. Reasons
// are logged server-side and never surfaced to the caller.
type SpamError struct {
	Reasons []string
}

func (e *SpamError) Error() string {
	return fmt.Sprintf("submission flagged as spam (%d signals)", len(e.Reasons))
}

// RateLimitError rejects a submission from a client that exhausted its
// hourly budget. ResetMinutes tells the caller when the window rolls over.
type RateLimitError struct {
	CurrentCount int64
	ResetMinutes int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests this window", e.CurrentCount)
}

// StorageError wraps a persistence fault with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("leads storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
