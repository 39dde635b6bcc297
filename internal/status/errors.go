package status

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the resolver and mutator. Everything here
// reaches the caller verbatim; there is no silent fallback.
var (
	// ErrNotFound means the garage's status or schedule row is missing.
	// Rows are created at garage initialization, so this is a defect,
	// not a normal runtime case.
	ErrNotFound = errors.New("garage status not initialized")

	// ErrConcurrencyConflict means a concurrent mutation won the
	// version check. The mutator retries once before returning it.
	ErrConcurrencyConflict = errors.New("concurrent status mutation detected")

	// ErrInvalidOverrideWindow means override_until is not in the future.
	ErrInvalidOverrideWindow = errors.New("override deadline must be in the future")

	// ErrInvalidSchedule means the schedule input was rejected.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ActiveBookingsError blocks a non-forced close while bookings are live.
type ActiveBookingsError struct {
	Count int
}

func (e *ActiveBookingsError) Error() string {
	return fmt.Sprintf("cannot close: %d active bookings; use force close", e.Count)
}
