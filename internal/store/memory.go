package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

// Memory is an in-memory implementation of every store contract, guarded by
// a single mutex. It backs the engine's tests and local development without
// a database; the CAS semantics match the PostgreSQL implementation.
type Memory struct {
	mu           sync.Mutex
	workers      map[string]model.Worker
	jobs         map[string]model.JobPosting
	convocations map[string]model.Convocation
	settlements  map[string]model.SettlementRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		workers:      make(map[string]model.Worker),
		jobs:         make(map[string]model.JobPosting),
		convocations: make(map[string]model.Convocation),
		settlements:  make(map[string]model.SettlementRecord),
	}
}

// ─── Seeding helpers ─────────────────────────────────────────────────────────

// PutWorker inserts or replaces a worker profile.
func (m *Memory) PutWorker(w model.Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.ID] = w
}

// PutJob inserts or replaces a job posting.
func (m *Memory) PutJob(j model.JobPosting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

// ─── WorkerStore ─────────────────────────────────────────────────────────────

func (m *Memory) GetWorker(_ context.Context, id string) (*model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (m *Memory) ListAvailableWorkers(_ context.Context, requiredSkill string) ([]model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Worker
	for _, w := range m.workers {
		if w.Available && w.Location != nil && w.HasSkill(requiredSkill) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── JobStore ────────────────────────────────────────────────────────────────

func (m *Memory) GetJob(_ context.Context, id string) (*model.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (m *Memory) ListOpenJobs(_ context.Context, skills []string) ([]model.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(skills))
	for _, s := range skills {
		wanted[s] = true
	}
	var out []model.JobPosting
	for _, j := range m.jobs {
		if j.Status == model.JobOpen && wanted[j.RequiredSkill] {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateJobStatus(_ context.Context, id string, from, to model.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != from {
		return ErrStaleStatus
	}
	j.Status = to
	m.jobs[id] = j
	return nil
}

// ─── ConvocationStore ────────────────────────────────────────────────────────

func (m *Memory) CreateConvocation(_ context.Context, c *model.Convocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.convocations {
		if existing.JobID == c.JobID && existing.WorkerID == c.WorkerID {
			return ErrDuplicateConvocation
		}
	}
	m.convocations[c.ID] = *c
	return nil
}

func (m *Memory) GetConvocation(_ context.Context, id string) (*model.Convocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convocations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) UpdateConvocationStatus(_ context.Context, id string, from, to model.ConvocationStatus, patch ConvocationPatch) (*model.Convocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convocations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != from {
		return nil, ErrStaleStatus
	}

	c.Status = to
	if patch.StartTime != nil {
		t := *patch.StartTime
		c.StartTime = &t
	}
	if patch.EndTime != nil {
		t := *patch.EndTime
		c.EndTime = &t
	}
	if patch.TotalPayment != nil {
		p := *patch.TotalPayment
		c.TotalPayment = &p
	}

	m.convocations[id] = c
	return &c, nil
}

func (m *Memory) ListPendingPastDeadline(_ context.Context, now time.Time) ([]model.Convocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Convocation
	for _, c := range m.convocations {
		if c.Status == model.ConvocationPending && now.After(c.AcceptanceDeadline) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListPaidConvocations(_ context.Context, participantID string, company bool) ([]model.Convocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Convocation
	for _, c := range m.convocations {
		if c.Status != model.ConvocationPaid {
			continue
		}
		if company && c.CompanyID != participantID {
			continue
		}
		if !company && c.WorkerID != participantID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].EndTime, out[j].EndTime
		if ti == nil || tj == nil {
			return out[i].ID < out[j].ID
		}
		return ti.After(*tj)
	})
	return out, nil
}

// ─── SettlementStore ─────────────────────────────────────────────────────────

func (m *Memory) GetSettlement(_ context.Context, convocationID string) (*model.SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.settlements[convocationID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySettlement(&rec), nil
}

func (m *Memory) SaveSettlement(_ context.Context, rec *model.SettlementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[rec.ConvocationID] = *copySettlement(rec)
	return nil
}

// copySettlement deep-copies the steps map so callers never alias stored
// state.
func copySettlement(rec *model.SettlementRecord) *model.SettlementRecord {
	out := *rec
	out.Steps = make(map[model.SettlementStep]model.StepResult, len(rec.Steps))
	for step, res := range rec.Steps {
		refs := make([]string, len(res.Refs))
		copy(refs, res.Refs)
		res.Refs = refs
		out.Steps[step] = res
	}
	return &out
}
