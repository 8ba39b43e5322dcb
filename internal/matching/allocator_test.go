package matching_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fernandolim41/picopro-clt/internal/convocation"
	"github.com/fernandolim41/picopro-clt/internal/event"
	"github.com/fernandolim41/picopro-clt/internal/matching"
	"github.com/fernandolim41/picopro-clt/internal/model"
	"github.com/fernandolim41/picopro-clt/internal/skills"
	"github.com/fernandolim41/picopro-clt/internal/store"
)

var (
	t0      = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	jobSite = model.Location{Latitude: -23.5505, Longitude: -46.6333}
	// roughly 5 km north of the job site
	fiveKmOff = model.Location{Latitude: -23.5055, Longitude: -46.6333}
	// well past the default 10 km radius
	farOff = model.Location{Latitude: -23.2505, Longitude: -46.6333}
)

func newAllocator(t *testing.T) (*matching.Allocator, *store.Memory, *event.Memory) {
	t.Helper()
	mem := store.NewMemory()
	sink := &event.Memory{}
	a := matching.NewAllocator(mem, mem, mem, skills.Default(), sink, nil,
		matching.WithClock(func() time.Time { return t0 }))
	return a, mem, sink
}

func seedCookJob(mem *store.Memory, status model.JobStatus) {
	mem.PutJob(model.JobPosting{
		ID:            "job-1",
		CompanyID:     "co-1",
		RequiredSkill: "Cook",
		DurationHours: 4,
		HourlyRate:    decimal.NewFromInt(20),
		Location:      jobSite,
		Status:        status,
	})
}

func TestAllocate_RanksAndConvokes(t *testing.T) {
	a, mem, sink := newAllocator(t)
	seedCookJob(mem, model.JobOpen)
	site := jobSite
	five := fiveKmOff
	far := farOff
	mem.PutWorker(model.Worker{
		ID: "w-top", Skills: []string{"Cook", "Chef"},
		Certifications: []string{"food-handling", "first-aid"},
		Available:      true, Location: &site,
	})
	mem.PutWorker(model.Worker{ID: "w-mid", Skills: []string{"Cook"}, Available: true, Location: &five})
	mem.PutWorker(model.Worker{ID: "w-far", Skills: []string{"Cook"}, Available: true, Location: &far})
	mem.PutWorker(model.Worker{ID: "w-off-duty", Skills: []string{"Cook"}, Available: false, Location: &site})

	res, err := a.Allocate(context.Background(), "job-1", matching.Options{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false, want true")
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates %v, want 2 (outside-radius and off-duty excluded)", len(res.Candidates), res.Candidates)
	}
	if res.Candidates[0].Worker.ID != "w-top" || res.Candidates[1].Worker.ID != "w-mid" {
		t.Errorf("ranking = [%s %s], want [w-top w-mid]",
			res.Candidates[0].Worker.ID, res.Candidates[1].Worker.ID)
	}
	// At the site: 40 skill + 30 proximity + 5 related (Chef) + 6 certs.
	if got := res.Candidates[0].Score; got != 81 {
		t.Errorf("w-top score = %d, want 81", got)
	}
	if top, mid := res.Candidates[0].Score, res.Candidates[1].Score; mid >= top {
		t.Errorf("scores not descending: %d then %d", top, mid)
	}
	if len(res.ConvocationIDs) != 2 {
		t.Fatalf("got %d convocations, want 2", len(res.ConvocationIDs))
	}

	c, err := mem.GetConvocation(context.Background(), res.ConvocationIDs[0])
	if err != nil {
		t.Fatalf("load convocation: %v", err)
	}
	if c.Status != model.ConvocationPending {
		t.Errorf("convocation status = %s, want pending", c.Status)
	}
	if !c.AcceptanceDeadline.Equal(t0.Add(time.Hour)) {
		t.Errorf("deadline = %s, want offeredAt + 1h", c.AcceptanceDeadline)
	}

	job, _ := mem.GetJob(context.Background(), "job-1")
	if job.Status != model.JobMatching {
		t.Errorf("job status = %s, want matching", job.Status)
	}
	if evs := sink.ByType(event.ConvocationOffered); len(evs) != 2 {
		t.Errorf("got %d ConvocationOffered events, want 2", len(evs))
	}
}

func TestAllocate_MinScoreCutsWeakCandidates(t *testing.T) {
	a, mem, _ := newAllocator(t)
	seedCookJob(mem, model.JobOpen)
	site := jobSite
	five := fiveKmOff
	mem.PutWorker(model.Worker{
		ID: "w-top", Skills: []string{"Cook", "Chef"},
		Certifications: []string{"food-handling", "first-aid"},
		Available:      true, Location: &site,
	})
	mem.PutWorker(model.Worker{ID: "w-mid", Skills: []string{"Cook"}, Available: true, Location: &five})

	res, err := a.Allocate(context.Background(), "job-1", matching.Options{MinScore: 70})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Worker.ID != "w-top" {
		t.Errorf("candidates = %v, want only w-top above threshold 70", res.Candidates)
	}
}

func TestAllocate_MaxConvocationsBoundsCandidatesAndOffers(t *testing.T) {
	a, mem, _ := newAllocator(t)
	seedCookJob(mem, model.JobOpen)
	for _, id := range []string{"w-a", "w-b", "w-c", "w-d"} {
		site := jobSite
		mem.PutWorker(model.Worker{ID: id, Skills: []string{"Cook"}, Available: true, Location: &site})
	}

	res, err := a.Allocate(context.Background(), "job-1", matching.Options{MaxConvocations: 2})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	// Four workers qualify, but the bound caps both lists.
	if len(res.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2 (bounded)", len(res.Candidates))
	}
	if len(res.ConvocationIDs) != 2 {
		t.Errorf("got %d convocations, want 2 (bounded)", len(res.ConvocationIDs))
	}
	// Equal scores and distances: the worker-id tiebreak keeps the cut stable.
	if res.Candidates[0].Worker.ID != "w-a" || res.Candidates[1].Worker.ID != "w-b" {
		t.Errorf("kept candidates = [%s %s], want [w-a w-b]",
			res.Candidates[0].Worker.ID, res.Candidates[1].Worker.ID)
	}
}

func TestAllocate_SecondPassSkipsExistingOffers(t *testing.T) {
	a, mem, sink := newAllocator(t)
	seedCookJob(mem, model.JobOpen)
	site := jobSite
	mem.PutWorker(model.Worker{ID: "w-a", Skills: []string{"Cook"}, Available: true, Location: &site})

	if _, err := a.Allocate(context.Background(), "job-1", matching.Options{}); err != nil {
		t.Fatalf("first Allocate: %v", err)
	}
	res, err := a.Allocate(context.Background(), "job-1", matching.Options{})
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	if len(res.ConvocationIDs) != 0 {
		t.Errorf("second pass created %d convocations, want 0", len(res.ConvocationIDs))
	}
	if !res.Success {
		t.Error("second pass Success = false, want true (candidate still ranked)")
	}
	if evs := sink.ByType(event.ConvocationOffered); len(evs) != 1 {
		t.Errorf("got %d ConvocationOffered events, want 1 (no duplicate offer)", len(evs))
	}
}

func TestAllocate_NoCandidates(t *testing.T) {
	a, mem, _ := newAllocator(t)
	seedCookJob(mem, model.JobOpen)

	res, err := a.Allocate(context.Background(), "job-1", matching.Options{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if res.Success {
		t.Error("Success = true with an empty pool, want false")
	}
	if len(res.ConvocationIDs) != 0 {
		t.Errorf("created %d convocations, want 0", len(res.ConvocationIDs))
	}

	job, _ := mem.GetJob(context.Background(), "job-1")
	if job.Status != model.JobOpen {
		t.Errorf("job status = %s, want still open", job.Status)
	}
}

func TestAllocate_ClosedJobRejected(t *testing.T) {
	a, mem, _ := newAllocator(t)
	seedCookJob(mem, model.JobClosed)

	_, err := a.Allocate(context.Background(), "job-1", matching.Options{})
	if !errors.Is(err, matching.ErrJobNotOpen) {
		t.Errorf("got %v, want ErrJobNotOpen", err)
	}
}

func TestAllocate_UnknownJob(t *testing.T) {
	a, _, _ := newAllocator(t)

	_, err := a.Allocate(context.Background(), "nope", matching.Options{})
	if !errors.Is(err, convocation.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestBrowseJobs_RanksByWorkerFit(t *testing.T) {
	a, mem, _ := newAllocator(t)
	site := jobSite
	mem.PutWorker(model.Worker{ID: "w-1", Skills: []string{"Cook"}, Available: true, Location: &site})

	mem.PutJob(model.JobPosting{
		ID: "job-near", CompanyID: "co-1", RequiredSkill: "Cook", DurationHours: 8,
		HourlyRate: decimal.NewFromInt(35), Location: jobSite, Status: model.JobOpen,
	})
	mem.PutJob(model.JobPosting{
		ID: "job-away", CompanyID: "co-1", RequiredSkill: "Cook", DurationHours: 2,
		HourlyRate: decimal.NewFromInt(12), Location: fiveKmOff, Status: model.JobOpen,
	})
	mem.PutJob(model.JobPosting{
		ID: "job-other-skill", CompanyID: "co-1", RequiredSkill: "Security", DurationHours: 8,
		HourlyRate: decimal.NewFromInt(35), Location: jobSite, Status: model.JobOpen,
	})
	mem.PutJob(model.JobPosting{
		ID: "job-far", CompanyID: "co-1", RequiredSkill: "Cook", DurationHours: 8,
		HourlyRate: decimal.NewFromInt(35), Location: farOff, Status: model.JobOpen,
	})

	matches, err := a.BrowseJobs(context.Background(), "w-1", 0)
	if err != nil {
		t.Fatalf("BrowseJobs: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches %v, want 2", len(matches), matches)
	}
	if matches[0].Job.ID != "job-near" || matches[1].Job.ID != "job-away" {
		t.Errorf("order = [%s %s], want [job-near job-away]", matches[0].Job.ID, matches[1].Job.ID)
	}
	// 50 skill + 30 proximity + 10 + 5 rate tiers + 5 long shift.
	if matches[0].Score != 100 {
		t.Errorf("job-near score = %d, want 100", matches[0].Score)
	}
}

func TestBrowseJobs_WorkerWithoutLocation(t *testing.T) {
	a, mem, _ := newAllocator(t)
	mem.PutWorker(model.Worker{ID: "w-1", Skills: []string{"Cook"}, Available: true})

	matches, err := a.BrowseJobs(context.Background(), "w-1", 0)
	if err != nil {
		t.Fatalf("BrowseJobs: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want 0 for a worker with no known position", len(matches))
	}
}
