// Package convocation owns the assignment state machine.
//
// Valid status graph:
//
//	pending ──► accepted ──► started ──► completed ──► paid
//	    │
//	    ├─────► rejected
//	    └─────► expired
//
// rejected, expired and paid are terminal states.
//
// Expiry is a derived property, not only a stored one: a pending convocation
// past its acceptance deadline is already expired for any reader, even
// before the background sweep persists the status. EffectiveStatus is the
// single source of truth for that rule.
package convocation

import (
	"fmt"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[model.ConvocationStatus][]model.ConvocationStatus{
	model.ConvocationPending:   {model.ConvocationAccepted, model.ConvocationRejected, model.ConvocationExpired},
	model.ConvocationAccepted:  {model.ConvocationStarted},
	model.ConvocationStarted:   {model.ConvocationCompleted},
	model.ConvocationCompleted: {model.ConvocationPaid},
	// rejected, expired and paid are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a ConvocationStatus, returning an
// error for unknown values.
func ParseStatus(s string) (model.ConvocationStatus, error) {
	st := model.ConvocationStatus(s)
	switch st {
	case model.ConvocationPending, model.ConvocationAccepted, model.ConvocationRejected,
		model.ConvocationExpired, model.ConvocationStarted, model.ConvocationCompleted,
		model.ConvocationPaid:
		return st, nil
	}
	return "", fmt.Errorf("unknown convocation status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to model.ConvocationStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions.
func IsTerminal(s model.ConvocationStatus) bool {
	_, ok := validTransitions[s]
	return !ok
}

// EffectiveStatus returns the status a reader must act on at instant now:
// identical to the stored status except that a pending convocation past its
// acceptance deadline reads as expired, whether or not the sweep has
// persisted it yet.
func EffectiveStatus(c *model.Convocation, now time.Time) model.ConvocationStatus {
	if c.Status == model.ConvocationPending && now.After(c.AcceptanceDeadline) {
		return model.ConvocationExpired
	}
	return c.Status
}
