package convocation

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

// ErrNotFound is returned when a convocation does not exist.
var ErrNotFound = errors.New("convocation not found")

// ValidationError wraps a user-facing validation message: malformed input or
// a caller-contract violation. Never worth retrying.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// InvalidTransitionError reports a transition the state machine forbids.
type InvalidTransitionError struct {
	From model.ConvocationStatus
	To   model.ConvocationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s → %s is not allowed", e.From, e.To)
}

// StaleStateError reports a lost race: the stored status no longer matches
// the one the caller observed. The caller should re-read and decide again.
type StaleStateError struct {
	Expected model.ConvocationStatus
	Actual   model.ConvocationStatus
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("convocation is %s, expected %s (changed concurrently)", e.Actual, e.Expected)
}

// DeadlineExceededError reports a worker action attempted after the
// acceptance deadline. Carries the deadline so the UI can show it.
type DeadlineExceededError struct {
	Deadline time.Time
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("acceptance deadline %s has passed", e.Deadline.Format(time.RFC3339))
}

// LocationTooFarError reports a check-in/out attempted too far from the job
// site. Carries the measured distance for the user-facing message.
type LocationTooFarError struct {
	DistanceKm    float64
	MaxDistanceKm float64
}

func (e *LocationTooFarError) Error() string {
	return fmt.Sprintf("you must be at the work site to check in or out: current distance %.0fm, allowed %.0fm",
		e.DistanceKm*1000, e.MaxDistanceKm*1000)
}
