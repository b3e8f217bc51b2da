package job

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gridwise/carbonsched/internal/apperror"
	domain "github.com/gridwise/carbonsched/internal/job"
)

const jobColumns = `id, name, duration_minutes, power_draw_watts, priority,
	carbon_threshold, status, submitted_at, scheduled_for, emissions_avoided_kg`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO jobs (id, name, duration_minutes, power_draw_watts,
		priority, carbon_threshold, status, submitted_at, scheduled_for, emissions_avoided_kg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		j.ID, j.Name, j.DurationMinutes, j.PowerDrawWatts,
		j.Priority, j.CarbonThreshold, string(j.Status),
		j.SubmittedAt.UTC().Format(time.RFC3339),
		nullableTime(j.ScheduledFor),
		j.EmissionsAvoidedKg,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, j *domain.Job) error {
	const query = `UPDATE jobs SET status = ?, scheduled_for = ?, emissions_avoided_kg = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		string(j.Status), nullableTime(j.ScheduledFor), j.EmissionsAvoidedKg, j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "job not found")
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY seq ASC`
	return r.queryJobs(ctx, query)
}

func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ? ORDER BY seq ASC`
	return r.queryJobs(ctx, query, string(status))
}

// ListAwaitingEvaluation returns pending and deferred jobs, highest priority
// first. Ordering by seq within equal priority keeps the tie-break stable.
func (r *Repository) ListAwaitingEvaluation(ctx context.Context) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status IN ('pending', 'deferred')
		ORDER BY priority DESC, seq ASC`
	return r.queryJobs(ctx, query)
}

func (r *Repository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	const query = `SELECT status, COUNT(*) FROM jobs GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *Repository) queryJobs(ctx context.Context, query string, args ...any) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.Job, error) {
	j := &domain.Job{}
	var status, submittedStr string
	var scheduledStr sql.NullString

	err := s.Scan(
		&j.ID, &j.Name, &j.DurationMinutes, &j.PowerDrawWatts, &j.Priority,
		&j.CarbonThreshold, &status, &submittedStr, &scheduledStr,
		&j.EmissionsAvoidedKg,
	)
	if err != nil {
		return nil, err
	}

	j.Status = domain.Status(status)
	j.SubmittedAt, err = time.Parse(time.RFC3339, submittedStr)
	if err != nil {
		return nil, fmt.Errorf("parse submitted_at: %w", err)
	}
	if scheduledStr.Valid {
		t, err := time.Parse(time.RFC3339, scheduledStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse scheduled_for: %w", err)
		}
		j.ScheduledFor = &t
	}
	return j, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
