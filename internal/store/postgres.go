package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fernandolim41/picopro-clt/internal/model"
)

// Postgres implements every store contract on a pgx connection pool.
//
// Numeric columns travel as text on both sides (`::numeric` on write,
// `::text` on read) so amounts round-trip through shopspring/decimal without
// loss. Settlement step results live in a JSONB column.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Postgres store on the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the engine tables when they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS workers (
	id             TEXT PRIMARY KEY,
	skills         TEXT[] NOT NULL DEFAULT '{}',
	certifications TEXT[] NOT NULL DEFAULT '{}',
	latitude       DOUBLE PRECISION,
	longitude      DOUBLE PRECISION,
	available      BOOLEAN NOT NULL DEFAULT false,
	CHECK ((latitude IS NULL) = (longitude IS NULL))
);

CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	required_skill TEXT NOT NULL,
	duration_hours INT NOT NULL CHECK (duration_hours BETWEEN 1 AND 12),
	hourly_rate    NUMERIC(10,2) NOT NULL CHECK (hourly_rate BETWEEN 10.00 AND 100.00),
	latitude       DOUBLE PRECISION NOT NULL,
	longitude      DOUBLE PRECISION NOT NULL,
	status         TEXT NOT NULL DEFAULT 'open',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS convocations (
	id                  TEXT PRIMARY KEY,
	job_id              TEXT NOT NULL REFERENCES jobs(id),
	worker_id           TEXT NOT NULL REFERENCES workers(id),
	company_id          TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	offered_at          TIMESTAMPTZ NOT NULL,
	acceptance_deadline TIMESTAMPTZ NOT NULL,
	start_time          TIMESTAMPTZ,
	end_time            TIMESTAMPTZ,
	total_payment       NUMERIC(12,2),
	UNIQUE (job_id, worker_id)
);

CREATE TABLE IF NOT EXISTS settlements (
	convocation_id TEXT PRIMARY KEY REFERENCES convocations(id),
	steps          JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_convocations_pending_deadline
	ON convocations (acceptance_deadline) WHERE status = 'pending';
`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ─── WorkerStore ─────────────────────────────────────────────────────────────

const workerColumns = `id, skills, certifications, latitude, longitude, available`

func (p *Postgres) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = $1`, id)
	w, err := scanWorker(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get worker %s: %w", id, err)
	}
	return w, nil
}

func (p *Postgres) ListAvailableWorkers(ctx context.Context, requiredSkill string) ([]model.Worker, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+workerColumns+`
		 FROM workers
		 WHERE available = true
		   AND $1 = ANY(skills)
		   AND latitude IS NOT NULL
		 ORDER BY id`,
		requiredSkill,
	)
	if err != nil {
		return nil, fmt.Errorf("list available workers: %w", err)
	}
	defer rows.Close()

	var workers []model.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

func scanWorker(row pgx.Row) (*model.Worker, error) {
	var (
		w        model.Worker
		lat, lon *float64
	)
	if err := row.Scan(&w.ID, &w.Skills, &w.Certifications, &lat, &lon, &w.Available); err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		w.Location = &model.Location{Latitude: *lat, Longitude: *lon}
	}
	return &w, nil
}

// ─── JobStore ────────────────────────────────────────────────────────────────

const jobColumns = `id, company_id, required_skill, duration_hours, hourly_rate::text,
	latitude, longitude, status, created_at`

func (p *Postgres) GetJob(ctx context.Context, id string) (*model.JobPosting, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

func (p *Postgres) ListOpenJobs(ctx context.Context, skills []string) ([]model.JobPosting, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM jobs
		 WHERE status = 'open' AND required_skill = ANY($1)
		 ORDER BY created_at DESC`,
		skills,
	)
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*model.JobPosting, error) {
	var (
		j    model.JobPosting
		rate string
	)
	if err := row.Scan(&j.ID, &j.CompanyID, &j.RequiredSkill, &j.DurationHours, &rate,
		&j.Location.Latitude, &j.Location.Longitude, &j.Status, &j.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("parse hourly rate %q: %w", rate, err)
	}
	j.HourlyRate = parsed
	return &j, nil
}

func (p *Postgres) UpdateJobStatus(ctx context.Context, id string, from, to model.JobStatus) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update job %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := p.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check job %s: %w", id, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

// ─── ConvocationStore ────────────────────────────────────────────────────────

const convocationColumns = `id, job_id, worker_id, company_id, status,
	offered_at, acceptance_deadline, start_time, end_time, total_payment::text`

func (p *Postgres) CreateConvocation(ctx context.Context, c *model.Convocation) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO convocations (id, job_id, worker_id, company_id, status, offered_at, acceptance_deadline)
		 SELECT $1, $2, $3, $4, $5, $6, $7
		 WHERE NOT EXISTS (
		   SELECT 1 FROM convocations WHERE job_id = $2 AND worker_id = $3
		 )`,
		c.ID, c.JobID, c.WorkerID, c.CompanyID, string(c.Status), c.OfferedAt, c.AcceptanceDeadline,
	)
	if err != nil {
		return fmt.Errorf("create convocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateConvocation
	}
	return nil
}

func (p *Postgres) GetConvocation(ctx context.Context, id string) (*model.Convocation, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+convocationColumns+` FROM convocations WHERE id = $1`, id)
	c, err := scanConvocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get convocation %s: %w", id, err)
	}
	return c, nil
}

func (p *Postgres) UpdateConvocationStatus(ctx context.Context, id string, from, to model.ConvocationStatus, patch ConvocationPatch) (*model.Convocation, error) {
	var totalPayment *string
	if patch.TotalPayment != nil {
		s := patch.TotalPayment.String()
		totalPayment = &s
	}

	row := p.pool.QueryRow(ctx,
		`UPDATE convocations
		 SET status        = $1,
		     start_time    = COALESCE($2, start_time),
		     end_time      = COALESCE($3, end_time),
		     total_payment = COALESCE($4::numeric, total_payment)
		 WHERE id = $5 AND status = $6
		 RETURNING `+convocationColumns,
		string(to), patch.StartTime, patch.EndTime, totalPayment, id, string(from),
	)
	c, err := scanConvocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := p.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM convocations WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return nil, fmt.Errorf("check convocation %s: %w", id, qerr)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrStaleStatus
	}
	if err != nil {
		return nil, fmt.Errorf("update convocation %s status: %w", id, err)
	}
	return c, nil
}

func (p *Postgres) ListPendingPastDeadline(ctx context.Context, now time.Time) ([]model.Convocation, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+convocationColumns+`
		 FROM convocations
		 WHERE status = 'pending' AND acceptance_deadline < $1
		 ORDER BY acceptance_deadline`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending past deadline: %w", err)
	}
	defer rows.Close()
	return collectConvocations(rows)
}

func (p *Postgres) ListPaidConvocations(ctx context.Context, participantID string, company bool) ([]model.Convocation, error) {
	column := "worker_id"
	if company {
		column = "company_id"
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+convocationColumns+`
		 FROM convocations
		 WHERE status = 'paid' AND `+column+` = $1
		 ORDER BY end_time DESC`,
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list paid convocations: %w", err)
	}
	defer rows.Close()
	return collectConvocations(rows)
}

func collectConvocations(rows pgx.Rows) ([]model.Convocation, error) {
	var out []model.Convocation
	for rows.Next() {
		c, err := scanConvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan convocation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanConvocation(row pgx.Row) (*model.Convocation, error) {
	var (
		c            model.Convocation
		totalPayment *string
	)
	if err := row.Scan(&c.ID, &c.JobID, &c.WorkerID, &c.CompanyID, &c.Status,
		&c.OfferedAt, &c.AcceptanceDeadline, &c.StartTime, &c.EndTime, &totalPayment); err != nil {
		return nil, err
	}
	if totalPayment != nil {
		parsed, err := decimal.NewFromString(*totalPayment)
		if err != nil {
			return nil, fmt.Errorf("parse total payment %q: %w", *totalPayment, err)
		}
		c.TotalPayment = &parsed
	}
	return &c, nil
}

// ─── SettlementStore ─────────────────────────────────────────────────────────

func (p *Postgres) GetSettlement(ctx context.Context, convocationID string) (*model.SettlementRecord, error) {
	var (
		rec   model.SettlementRecord
		steps []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT convocation_id, steps, created_at, updated_at
		 FROM settlements WHERE convocation_id = $1`,
		convocationID,
	).Scan(&rec.ConvocationID, &steps, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settlement %s: %w", convocationID, err)
	}
	if err := json.Unmarshal(steps, &rec.Steps); err != nil {
		return nil, fmt.Errorf("decode settlement steps for %s: %w", convocationID, err)
	}
	return &rec, nil
}

func (p *Postgres) SaveSettlement(ctx context.Context, rec *model.SettlementRecord) error {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("encode settlement steps for %s: %w", rec.ConvocationID, err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO settlements (convocation_id, steps, created_at, updated_at)
		 VALUES ($1, $2::jsonb, $3, $4)
		 ON CONFLICT (convocation_id) DO UPDATE
		 SET steps = EXCLUDED.steps, updated_at = EXCLUDED.updated_at`,
		rec.ConvocationID, steps, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settlement %s: %w", rec.ConvocationID, err)
	}
	return nil
}
