// Package matching allocates jobs to workers: it builds the candidate pool,
// ranks it, and opens convocations for the best candidates. Allocation is a
// one-shot pass per job; re-running it tops the job up with fresh offers
// without duplicating the ones already outstanding.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fernandolim41/picopro-clt/internal/convocation"
	"github.com/fernandolim41/picopro-clt/internal/event"
	"github.com/fernandolim41/picopro-clt/internal/geo"
	"github.com/fernandolim41/picopro-clt/internal/metrics"
	"github.com/fernandolim41/picopro-clt/internal/model"
	"github.com/fernandolim41/picopro-clt/internal/scoring"
	"github.com/fernandolim41/picopro-clt/internal/skills"
	"github.com/fernandolim41/picopro-clt/internal/store"
)

// Defaults applied when an Options field is zero.
const (
	DefaultRadiusKm        = 10.0
	DefaultMaxConvocations = 5
	DefaultMinScore        = 30
)

// ErrJobNotOpen is returned when allocation is requested for a job that is
// closed (a job already in matching can be topped up).
var ErrJobNotOpen = errors.New("job is not open for matching")

// Options tunes one allocation pass. Zero fields fall back to the defaults.
type Options struct {
	RadiusKm        float64
	MaxConvocations int
	MinScore        int
}

func (o Options) withDefaults() Options {
	if o.RadiusKm <= 0 {
		o.RadiusKm = DefaultRadiusKm
	}
	if o.MaxConvocations <= 0 {
		o.MaxConvocations = DefaultMaxConvocations
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	return o
}

// Candidate is one ranked worker considered during allocation.
type Candidate struct {
	Worker     model.Worker `json:"worker"`
	DistanceKm float64      `json:"distanceKm"`
	Score      int          `json:"score"`
}

// Result reports the outcome of one allocation pass. Success is false when
// no candidate cleared the score threshold; that is a business outcome, not
// an error.
type Result struct {
	Success        bool        `json:"success"`
	JobID          string      `json:"jobId"`
	Candidates     []Candidate `json:"candidates"`
	ConvocationIDs []string    `json:"convocationIds"`
}

// JobMatch is a job ranked from a worker's point of view, for browsing.
type JobMatch struct {
	Job        model.JobPosting `json:"job"`
	DistanceKm float64          `json:"distanceKm"`
	Score      int              `json:"score"`
}

// Allocator runs matching passes over the worker pool.
type Allocator struct {
	workers      store.WorkerStore
	jobs         store.JobStore
	convocations store.ConvocationStore
	graph        skills.Graph
	sink         event.Sink
	metrics      *metrics.Collector
	now          func() time.Time
}

// Option tweaks an Allocator at construction time.
type Option func(*Allocator)

// WithClock overrides the wall clock. Tests use it to pin offer deadlines.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// NewAllocator returns an Allocator scoring related skills against graph.
// m may be nil.
func NewAllocator(workers store.WorkerStore, jobs store.JobStore, convocations store.ConvocationStore,
	graph skills.Graph, sink event.Sink, m *metrics.Collector, opts ...Option) *Allocator {
	a := &Allocator{
		workers:      workers,
		jobs:         jobs,
		convocations: convocations,
		graph:        graph,
		sink:         sink,
		metrics:      m,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate runs one matching pass for a job: pool → radius filter → score →
// threshold → rank, then opens a pending convocation for each of the top
// candidates. Candidates who already hold a convocation for this job are
// skipped, so a second pass only adds new offers.
func (a *Allocator) Allocate(ctx context.Context, jobID string, opts Options) (*Result, error) {
	started := a.now()
	opts = opts.withDefaults()

	job, err := a.jobs.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, convocation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status == model.JobClosed {
		return nil, ErrJobNotOpen
	}

	candidates, err := a.rank(ctx, job, opts)
	if err != nil {
		return nil, err
	}

	// The candidate list is bounded the same way the offers are: callers
	// never see more than MaxConvocations candidates per pass.
	if len(candidates) > opts.MaxConvocations {
		candidates = candidates[:opts.MaxConvocations]
	}

	result := &Result{JobID: jobID, Candidates: candidates}
	if len(candidates) == 0 {
		a.metrics.AllocationObserved(a.now().Sub(started), false)
		return result, nil
	}

	now := a.now().UTC()
	for _, cand := range candidates {
		c := &model.Convocation{
			ID:                 uuid.NewString(),
			JobID:              job.ID,
			WorkerID:           cand.Worker.ID,
			CompanyID:          job.CompanyID,
			Status:             model.ConvocationPending,
			OfferedAt:          now,
			AcceptanceDeadline: now.Add(convocation.AcceptanceWindow),
		}
		err := a.convocations.CreateConvocation(ctx, c)
		if errors.Is(err, store.ErrDuplicateConvocation) {
			continue // already offered in an earlier pass
		}
		if err != nil {
			return nil, fmt.Errorf("create convocation for worker %s: %w", cand.Worker.ID, err)
		}

		result.ConvocationIDs = append(result.ConvocationIDs, c.ID)
		a.metrics.ConvocationOffered()
		a.emit(ctx, event.New(event.ConvocationOffered, c, now))
	}

	if job.Status == model.JobOpen && len(result.ConvocationIDs) > 0 {
		err := a.jobs.UpdateJobStatus(ctx, job.ID, model.JobOpen, model.JobMatching)
		if err != nil && !errors.Is(err, store.ErrStaleStatus) {
			return nil, fmt.Errorf("move job %s to matching: %w", job.ID, err)
		}
	}

	result.Success = len(result.ConvocationIDs) > 0 || len(result.Candidates) > 0
	a.metrics.AllocationObserved(a.now().Sub(started), result.Success)
	return result, nil
}

// BrowseJobs ranks open jobs from a worker's point of view: jobs within
// radiusKm of the worker, scored by fit and sorted best-first. Workers with
// no known location get an empty list.
func (a *Allocator) BrowseJobs(ctx context.Context, workerID string, radiusKm float64) ([]JobMatch, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	w, err := a.workers.GetWorker(ctx, workerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, convocation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load worker %s: %w", workerID, err)
	}
	if w.Location == nil {
		return nil, nil
	}

	jobs, err := a.jobs.ListOpenJobs(ctx, w.Skills)
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}

	matches := make([]JobMatch, 0, len(jobs))
	for _, within := range geo.FilterWithinRadius(*w.Location, jobs, radiusKm) {
		matches = append(matches, JobMatch{
			Job:        within.Entity,
			DistanceKm: within.DistanceKm,
			Score:      scoring.JobScore(within.Entity, *w, within.DistanceKm),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches, nil
}

// rank builds the scored candidate list for a job: available workers with
// the required skill, within radius, at or above the score threshold.
// Ordered by score descending, then distance, then worker id for a stable
// total order.
func (a *Allocator) rank(ctx context.Context, job *model.JobPosting, opts Options) ([]Candidate, error) {
	pool, err := a.workers.ListAvailableWorkers(ctx, job.RequiredSkill)
	if err != nil {
		return nil, fmt.Errorf("list available workers: %w", err)
	}

	candidates := make([]Candidate, 0, len(pool))
	for _, within := range geo.FilterWithinRadius(job.Location, pool, opts.RadiusKm) {
		score := scoring.Score(within.Entity, *job, within.DistanceKm, a.graph)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{
			Worker:     within.Entity,
			DistanceKm: within.DistanceKm,
			Score:      score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].Worker.ID < candidates[j].Worker.ID
	})
	return candidates, nil
}

func (a *Allocator) emit(ctx context.Context, ev event.Event) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Publish(ctx, ev); err != nil {
		slog.Warn("publish offer event failed",
			"type", ev.Type, "convocationId", ev.ConvocationID, "err", err)
	}
}
