// Package event defines the typed lifecycle events emitted by the engine
// and the sinks that consume them.
//
// Delivery is at-least-once: a sink may see the same event more than once
// and must deduplicate on Event.ID if it matters.
package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

// Type identifies a lifecycle event.
type Type string

const (
	ConvocationOffered  Type = "convocation.offered"
	ConvocationAccepted Type = "convocation.accepted"
	ConvocationRejected Type = "convocation.rejected"
	ConvocationExpired  Type = "convocation.expired"
	WorkStarted         Type = "work.started"
	WorkCompleted       Type = "work.completed"
	SettlementSucceeded Type = "settlement.succeeded"
	SettlementFailed    Type = "settlement.failed"
)

// Event is one lifecycle occurrence on a convocation.
type Event struct {
	ID            string            `json:"id"`
	Type          Type              `json:"type"`
	ConvocationID string            `json:"convocationId"`
	JobID         string            `json:"jobId"`
	WorkerID      string            `json:"workerId"`
	CompanyID     string            `json:"companyId"`
	At            time.Time         `json:"at"`
	Detail        map[string]string `json:"detail,omitempty"`
}

// New builds an event for a convocation, stamped with a fresh id and the
// given occurrence time.
func New(t Type, c *model.Convocation, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		ConvocationID: c.ID,
		JobID:         c.JobID,
		WorkerID:      c.WorkerID,
		CompanyID:     c.CompanyID,
		At:            at.UTC(),
	}
}

// Sink consumes lifecycle events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout delivers each event to every sink. All sinks are attempted even
// when an earlier one fails; the errors are joined.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory is an in-memory sink that records every published event. Used in
// tests and as a no-op default when no external sink is wired.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Sink.
func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByType returns the recorded events of one type, in publish order.
func (m *Memory) ByType(t Type) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
