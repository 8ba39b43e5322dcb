// Package settlement orchestrates the post-work settlement of a completed
// convocation: payroll registration, instant payment and legal document
// generation. The three steps are independent external calls; the
// orchestrator runs the ones still outstanding, records per-step outcomes,
// and marks the convocation paid only once all three have succeeded.
// Re-running settlement is safe: succeeded steps are never invoked again.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/convocation"
	"github.com/fernandolim41/picopro-clt/internal/event"
	"github.com/fernandolim41/picopro-clt/internal/metrics"
	"github.com/fernandolim41/picopro-clt/internal/model"
	"github.com/fernandolim41/picopro-clt/internal/payment"
	"github.com/fernandolim41/picopro-clt/internal/store"
)

// DefaultStepTimeout bounds each external settlement call.
const DefaultStepTimeout = 10 * time.Second

// ErrNotFound is returned when the convocation has no settlement record yet
// and one cannot be created in its current state.
var ErrNotFound = convocation.ErrNotFound

// TimeoutError marks a settlement step that exceeded its per-step timeout.
// The step is recorded as failed and retried on the next settlement run.
type TimeoutError struct {
	Step    model.SettlementStep
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("settlement step %s timed out after %s", e.Step, e.Timeout)
}

// Orchestrator drives settlement runs for completed convocations.
type Orchestrator struct {
	convocations store.ConvocationStore
	jobs         store.JobStore
	settlements  store.SettlementStore
	lifecycle    *convocation.Service
	payroll      PayrollRegistrationService
	payments     InstantPaymentService
	documents    DocumentService
	sink         event.Sink
	metrics      *metrics.Collector
	stepTimeout  time.Duration
	now          func() time.Time
}

// NewOrchestrator wires an Orchestrator. stepTimeout <= 0 falls back to
// DefaultStepTimeout; m may be nil.
func NewOrchestrator(convocations store.ConvocationStore, jobs store.JobStore, settlements store.SettlementStore,
	lifecycle *convocation.Service, payroll PayrollRegistrationService, payments InstantPaymentService,
	documents DocumentService, sink event.Sink, m *metrics.Collector, stepTimeout time.Duration) *Orchestrator {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &Orchestrator{
		convocations: convocations,
		jobs:         jobs,
		settlements:  settlements,
		lifecycle:    lifecycle,
		payroll:      payroll,
		payments:     payments,
		documents:    documents,
		sink:         sink,
		metrics:      m,
		stepTimeout:  stepTimeout,
		now:          time.Now,
	}
}

// Record returns the settlement record for a convocation.
func (o *Orchestrator) Record(ctx context.Context, convocationID string) (*model.SettlementRecord, error) {
	rec, err := o.settlements.GetSettlement(ctx, convocationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Settle runs one settlement pass for a completed convocation. Steps that
// already succeeded on a previous run are skipped; the remaining ones run
// concurrently, each bounded by the per-step timeout. The record is
// persisted whatever the outcome. When every step has succeeded the
// convocation is marked paid; otherwise the joined step errors are returned
// alongside the partial record so the caller can retry later.
func (o *Orchestrator) Settle(ctx context.Context, convocationID string) (*model.SettlementRecord, error) {
	c, err := o.convocations.GetConvocation(ctx, convocationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load convocation %s: %w", convocationID, err)
	}

	if c.Status == model.ConvocationPaid {
		return o.Record(ctx, convocationID)
	}
	if c.Status != model.ConvocationCompleted {
		return nil, &convocation.InvalidTransitionError{From: c.Status, To: model.ConvocationPaid}
	}
	if c.StartTime == nil || c.EndTime == nil {
		return nil, &convocation.ValidationError{Msg: fmt.Sprintf("convocation %s has no recorded work period", convocationID)}
	}

	rec, err := o.loadOrCreateRecord(ctx, convocationID)
	if err != nil {
		return nil, err
	}

	// The breakdown is derived, never trusted from storage: recompute it
	// from the job rate and the recorded work period on every run.
	job, err := o.jobs.GetJob(ctx, c.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", c.JobID, err)
	}
	hours, err := payment.HoursWorked(*c.StartTime, *c.EndTime)
	if err != nil {
		return nil, &convocation.ValidationError{Msg: err.Error()}
	}
	breakdown := payment.Calculate(job.HourlyRate, hours)
	taxes := payment.EstimateTaxes(breakdown.TotalPayment)

	stepErrs := o.runOutstandingSteps(ctx, c, rec, breakdown, taxes)

	rec.UpdatedAt = o.now().UTC()
	if err := o.settlements.SaveSettlement(ctx, rec); err != nil {
		return nil, fmt.Errorf("save settlement record %s: %w", convocationID, err)
	}

	if !rec.AllSucceeded() {
		o.metrics.SettlementRun(false)
		o.emit(ctx, c, event.SettlementFailed, map[string]string{
			"failedSteps": joinSteps(rec.FailedSteps()),
		})
		return rec, errors.Join(stepErrs...)
	}

	if _, err := o.lifecycle.MarkPaid(ctx, convocationID); err != nil {
		var stale *convocation.StaleStateError
		if !errors.As(err, &stale) {
			return rec, fmt.Errorf("mark convocation %s paid: %w", convocationID, err)
		}
		// another settlement run won; the money moved exactly once
	}
	o.metrics.SettlementRun(true)
	o.emit(ctx, c, event.SettlementSucceeded, map[string]string{
		"totalPayment": breakdown.TotalPayment.String(),
	})
	return rec, nil
}

func (o *Orchestrator) loadOrCreateRecord(ctx context.Context, convocationID string) (*model.SettlementRecord, error) {
	rec, err := o.settlements.GetSettlement(ctx, convocationID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load settlement record %s: %w", convocationID, err)
	}

	now := o.now().UTC()
	rec = &model.SettlementRecord{
		ConvocationID: convocationID,
		Steps:         make(map[model.SettlementStep]model.StepResult, len(model.SettlementSteps)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, step := range model.SettlementSteps {
		rec.Steps[step] = model.StepResult{Status: model.StepPending, UpdatedAt: now}
	}
	return rec, nil
}

// runOutstandingSteps executes every non-succeeded step concurrently and
// writes each outcome into rec. Returns the per-step errors.
func (o *Orchestrator) runOutstandingSteps(ctx context.Context, c *model.Convocation,
	rec *model.SettlementRecord, breakdown model.PaymentBreakdown, taxes payment.TaxEstimate) []error {

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		stepErrs []error
	)

	run := func(step model.SettlementStep, call func(ctx context.Context) ([]string, error)) {
		if rec.Steps[step].Status == model.StepSucceeded {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()

			stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
			defer cancel()

			refs, err := call(stepCtx)
			if errors.Is(err, context.DeadlineExceeded) {
				err = &TimeoutError{Step: step, Timeout: o.stepTimeout}
			}

			mu.Lock()
			defer mu.Unlock()
			result := model.StepResult{Status: model.StepSucceeded, Refs: refs, UpdatedAt: o.now().UTC()}
			if err != nil {
				result = model.StepResult{Status: model.StepFailed, Error: err.Error(), UpdatedAt: result.UpdatedAt}
				stepErrs = append(stepErrs, fmt.Errorf("%s: %w", step, err))
				o.metrics.SettlementStep(string(step), false)
			} else {
				o.metrics.SettlementStep(string(step), true)
			}
			rec.Steps[step] = result
		}()
	}

	run(model.StepPayrollRegistration, func(ctx context.Context) ([]string, error) {
		protocol, err := o.payroll.Submit(ctx, c.ID, breakdown, taxes)
		if err != nil {
			return nil, err
		}
		return []string{protocol}, nil
	})
	run(model.StepPaymentTransfer, func(ctx context.Context) ([]string, error) {
		tx, err := o.payments.Transfer(ctx, c.ID, breakdown.TotalPayment, c.WorkerID)
		if err != nil {
			return nil, err
		}
		return []string{tx}, nil
	})
	run(model.StepDocumentGeneration, func(ctx context.Context) ([]string, error) {
		refs := make([]string, 0, len(model.DocumentKinds))
		for _, kind := range model.DocumentKinds {
			ref, err := o.documents.Generate(ctx, c.ID, kind)
			if err != nil {
				return nil, fmt.Errorf("generate %s: %w", kind, err)
			}
			refs = append(refs, ref)
		}
		return refs, nil
	})

	wg.Wait()
	return stepErrs
}

func (o *Orchestrator) emit(ctx context.Context, c *model.Convocation, t event.Type, detail map[string]string) {
	if o.sink == nil {
		return
	}
	ev := event.New(t, c, o.now().UTC())
	ev.Detail = detail
	if err := o.sink.Publish(ctx, ev); err != nil {
		slog.Warn("publish settlement event failed",
			"type", ev.Type, "convocationId", ev.ConvocationID, "err", err)
	}
}

func joinSteps(steps []model.SettlementStep) string {
	out := ""
	for i, s := range steps {
		if i > 0 {
			out += ","
		}
		out += string(s)
	}
	return out
}

// Trigger is an event sink that starts a settlement run whenever work
// completes. The run happens in the background with its own deadline so a
// slow settlement never blocks the check-out that triggered it; failures
// are logged and left for a later manual or scheduled retry.
type Trigger struct {
	Orchestrator *Orchestrator
}

// Publish implements event.Sink.
func (t *Trigger) Publish(_ context.Context, ev event.Event) error {
	if ev.Type != event.WorkCompleted {
		return nil
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*t.Orchestrator.stepTimeout)
		defer cancel()
		if _, err := t.Orchestrator.Settle(ctx, ev.ConvocationID); err != nil {
			slog.Warn("background settlement failed", "convocationId", ev.ConvocationID, "err", err)
		}
	}()
	return nil
}
