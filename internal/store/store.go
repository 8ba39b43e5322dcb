// Package store defines the repository contracts the engine consumes and
// provides two implementations: PostgreSQL (production) and in-memory
// (tests, local development).
//
// The one non-CRUD primitive is the compare-and-swap status update: every
// state-machine transition supplies the status it expects to move away from,
// and the store refuses the write when a concurrent actor got there first.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStaleStatus is returned by a compare-and-swap update when the
	// stored status no longer matches the expected one.
	ErrStaleStatus = errors.New("status changed concurrently")

	// ErrDuplicateConvocation is returned when a convocation already exists
	// for the same (job, worker) pair.
	ErrDuplicateConvocation = errors.New("convocation already exists for this job and worker")
)

// ConvocationPatch carries the write-once fields a transition may set
// alongside its status change. Nil fields are left untouched.
type ConvocationPatch struct {
	StartTime    *time.Time
	EndTime      *time.Time
	TotalPayment *decimal.Decimal
}

// WorkerStore reads professional profiles. The engine never mutates workers.
type WorkerStore interface {
	GetWorker(ctx context.Context, id string) (*model.Worker, error)

	// ListAvailableWorkers returns workers that are available, have the
	// required skill and a known location — the matchable pool for a job.
	ListAvailableWorkers(ctx context.Context, requiredSkill string) ([]model.Worker, error)
}

// JobStore reads job postings and owns their status column.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*model.JobPosting, error)

	// ListOpenJobs returns open postings whose required skill is in skills.
	ListOpenJobs(ctx context.Context, skills []string) ([]model.JobPosting, error)

	// UpdateJobStatus moves a job from → to, failing with ErrStaleStatus
	// when the stored status differs from from.
	UpdateJobStatus(ctx context.Context, id string, from, to model.JobStatus) error
}

// ConvocationStore owns convocation records.
type ConvocationStore interface {
	// CreateConvocation inserts a new convocation, enforcing uniqueness on
	// (JobID, WorkerID) with ErrDuplicateConvocation.
	CreateConvocation(ctx context.Context, c *model.Convocation) error

	GetConvocation(ctx context.Context, id string) (*model.Convocation, error)

	// UpdateConvocationStatus is the CAS transition primitive: the update
	// applies only when the stored status equals from. Returns the updated
	// record, ErrStaleStatus on a lost race, ErrNotFound when missing.
	UpdateConvocationStatus(ctx context.Context, id string, from, to model.ConvocationStatus, patch ConvocationPatch) (*model.Convocation, error)

	// ListPendingPastDeadline returns pending convocations whose acceptance
	// deadline is before now — the sweep input.
	ListPendingPastDeadline(ctx context.Context, now time.Time) ([]model.Convocation, error)

	// ListPaidConvocations returns paid convocations for one participant,
	// newest end time first. company selects the company side of the pair.
	ListPaidConvocations(ctx context.Context, participantID string, company bool) ([]model.Convocation, error)
}

// SettlementStore owns settlement records, keyed by convocation id.
type SettlementStore interface {
	GetSettlement(ctx context.Context, convocationID string) (*model.SettlementRecord, error)

	// SaveSettlement inserts or fully replaces the record.
	SaveSettlement(ctx context.Context, rec *model.SettlementRecord) error
}
