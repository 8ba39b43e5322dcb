package convocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/event"
	"github.com/fernandolim41/picopro-clt/internal/geo"
	"github.com/fernandolim41/picopro-clt/internal/metrics"
	"github.com/fernandolim41/picopro-clt/internal/model"
	"github.com/fernandolim41/picopro-clt/internal/payment"
	"github.com/fernandolim41/picopro-clt/internal/store"
)

// AcceptanceWindow is how long a worker has to accept an offer. Fixed at
// offer time and never extended.
const AcceptanceWindow = time.Hour

// CheckInRadiusKm is the maximum distance from the job site at which a
// worker may check in or out.
const CheckInRadiusKm = 0.1

// Service drives convocation lifecycle transitions. Every transition is
// CAS-guarded through the store, so concurrent actors on the same record
// produce exactly one winner; losers get a StaleStateError.
type Service struct {
	convocations store.ConvocationStore
	jobs         store.JobStore
	sink         event.Sink
	metrics      *metrics.Collector
	now          func() time.Time
}

// Option tweaks a Service at construction time.
type Option func(*Service)

// WithClock overrides the wall clock. Tests use it to pin deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service publishing lifecycle events to sink.
// m may be nil.
func NewService(convocations store.ConvocationStore, jobs store.JobStore, sink event.Sink, m *metrics.Collector, opts ...Option) *Service {
	s := &Service{
		convocations: convocations,
		jobs:         jobs,
		sink:         sink,
		metrics:      m,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a convocation with its effective (deadline-aware) status.
func (s *Service) Get(ctx context.Context, id string) (*model.Convocation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Status = EffectiveStatus(c, s.now().UTC())
	return c, nil
}

// Accept moves a pending convocation to accepted. Only the addressed worker
// may accept, and only before the acceptance deadline.
func (s *Service) Accept(ctx context.Context, id, workerID string) (*model.Convocation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardWorkerAction(c, workerID); err != nil {
		return nil, err
	}
	return s.transition(ctx, c, model.ConvocationAccepted, store.ConvocationPatch{}, event.ConvocationAccepted, nil)
}

// Reject moves a pending convocation to rejected. Worker-initiated, allowed
// any time before expiry.
func (s *Service) Reject(ctx context.Context, id, workerID string) (*model.Convocation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardWorkerAction(c, workerID); err != nil {
		return nil, err
	}
	return s.transition(ctx, c, model.ConvocationRejected, store.ConvocationPatch{}, event.ConvocationRejected, nil)
}

// CheckIn moves an accepted convocation to started. The worker must be
// within CheckInRadiusKm of the job site; the measured distance is returned
// in the error otherwise. Sets the start time.
func (s *Service) CheckIn(ctx context.Context, id, workerID string, at model.Location) (*model.Convocation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.WorkerID != workerID {
		return nil, &ValidationError{Msg: fmt.Sprintf("convocation %s is not addressed to worker %s", id, workerID)}
	}
	if err := s.guardProximity(ctx, c, at); err != nil {
		return nil, err
	}

	start := s.now().UTC()
	return s.transition(ctx, c, model.ConvocationStarted,
		store.ConvocationPatch{StartTime: &start}, event.WorkStarted, nil)
}

// CheckOut moves a started convocation to completed: same proximity rule as
// check-in, then computes the billable hours and payment breakdown, stores
// the total and emits WorkCompleted for the settlement orchestrator.
func (s *Service) CheckOut(ctx context.Context, id, workerID string, at model.Location) (*model.Convocation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.WorkerID != workerID {
		return nil, &ValidationError{Msg: fmt.Sprintf("convocation %s is not addressed to worker %s", id, workerID)}
	}
	if err := s.guardProximity(ctx, c, at); err != nil {
		return nil, err
	}
	if c.StartTime == nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("convocation %s has no start time", id)}
	}

	end := s.now().UTC()
	hours, err := payment.HoursWorked(*c.StartTime, end)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	job, err := s.jobs.GetJob(ctx, c.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", c.JobID, err)
	}
	breakdown := payment.Calculate(job.HourlyRate, hours)

	detail := map[string]string{
		"hoursWorked":  fmt.Sprintf("%d", hours),
		"totalPayment": breakdown.TotalPayment.String(),
	}
	return s.transition(ctx, c, model.ConvocationCompleted,
		store.ConvocationPatch{EndTime: &end, TotalPayment: &breakdown.TotalPayment},
		event.WorkCompleted, detail)
}

// MarkPaid moves a completed convocation to paid. Called by the settlement
// orchestrator once all settlement steps have succeeded; a convocation that
// is already paid is returned as-is.
func (s *Service) MarkPaid(ctx context.Context, id string) (*model.Convocation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.ConvocationPaid {
		return c, nil
	}
	if !IsTransitionAllowed(c.Status, model.ConvocationPaid) {
		return nil, &InvalidTransitionError{From: c.Status, To: model.ConvocationPaid}
	}

	updated, err := s.convocations.UpdateConvocationStatus(ctx, id,
		model.ConvocationCompleted, model.ConvocationPaid, store.ConvocationPatch{})
	if err != nil {
		return nil, s.mapStoreErr(ctx, err, c, model.ConvocationPaid)
	}
	s.metrics.TransitionApplied(string(model.ConvocationPaid))
	return updated, nil
}

// ExpireOverdue marks every pending convocation past its deadline as
// expired and returns how many were swept. Races with worker actions are
// no-ops: a record that was accepted or already expired in the meantime is
// skipped, so repeated sweeps are idempotent.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	overdue, err := s.convocations.ListPendingPastDeadline(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue convocations: %w", err)
	}

	expired := 0
	for i := range overdue {
		c := overdue[i]
		updated, err := s.convocations.UpdateConvocationStatus(ctx, c.ID,
			model.ConvocationPending, model.ConvocationExpired, store.ConvocationPatch{})
		if errors.Is(err, store.ErrStaleStatus) || errors.Is(err, store.ErrNotFound) {
			continue // resolved by a concurrent actor — nothing to do
		}
		if err != nil {
			return expired, fmt.Errorf("expire convocation %s: %w", c.ID, err)
		}
		expired++
		s.metrics.TransitionApplied(string(model.ConvocationExpired))
		s.emit(ctx, event.New(event.ConvocationExpired, updated, now))
	}
	s.metrics.ExpiredSwept(expired)
	return expired, nil
}

// ─── Internals ───────────────────────────────────────────────────────────────

func (s *Service) load(ctx context.Context, id string) (*model.Convocation, error) {
	c, err := s.convocations.GetConvocation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load convocation %s: %w", id, err)
	}
	return c, nil
}

// guardWorkerAction validates an accept/reject attempt: right worker, still
// pending, deadline not passed. The deadline check uses the effective
// status, so an unswept expired record is rejected just the same.
func (s *Service) guardWorkerAction(c *model.Convocation, workerID string) error {
	if c.WorkerID != workerID {
		return &ValidationError{Msg: fmt.Sprintf("convocation %s is not addressed to worker %s", c.ID, workerID)}
	}
	if EffectiveStatus(c, s.now().UTC()) == model.ConvocationExpired {
		return &DeadlineExceededError{Deadline: c.AcceptanceDeadline}
	}
	return nil
}

func (s *Service) guardProximity(ctx context.Context, c *model.Convocation, at model.Location) error {
	job, err := s.jobs.GetJob(ctx, c.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", c.JobID, err)
	}
	if d := geo.DistanceKm(at, job.Location); d > CheckInRadiusKm {
		return &LocationTooFarError{DistanceKm: d, MaxDistanceKm: CheckInRadiusKm}
	}
	return nil
}

// transition applies a CAS status update from c.Status to target and emits
// the given event type on success.
func (s *Service) transition(ctx context.Context, c *model.Convocation, target model.ConvocationStatus,
	patch store.ConvocationPatch, evType event.Type, detail map[string]string) (*model.Convocation, error) {

	if !IsTransitionAllowed(c.Status, target) {
		return nil, &InvalidTransitionError{From: c.Status, To: target}
	}

	updated, err := s.convocations.UpdateConvocationStatus(ctx, c.ID, c.Status, target, patch)
	if err != nil {
		return nil, s.mapStoreErr(ctx, err, c, target)
	}

	s.metrics.TransitionApplied(string(target))

	ev := event.New(evType, updated, s.now().UTC())
	ev.Detail = detail
	s.emit(ctx, ev)

	return updated, nil
}

// mapStoreErr translates store sentinels into the engine's error taxonomy,
// reloading the record on a lost race so StaleStateError can report the
// actual status the winner left behind.
func (s *Service) mapStoreErr(ctx context.Context, err error, c *model.Convocation, target model.ConvocationStatus) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrStaleStatus):
		actual := c.Status
		if fresh, ferr := s.convocations.GetConvocation(ctx, c.ID); ferr == nil {
			actual = fresh.Status
		}
		return &StaleStateError{Expected: c.Status, Actual: actual}
	default:
		return fmt.Errorf("transition convocation %s to %s: %w", c.ID, target, err)
	}
}

// emit publishes a lifecycle event. Publish failures are logged, not
// propagated: the transition itself already committed.
func (s *Service) emit(ctx context.Context, ev event.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, ev); err != nil {
		slog.Warn("publish lifecycle event failed",
			"type", ev.Type, "convocationId", ev.ConvocationID, "err", err)
	}
}
