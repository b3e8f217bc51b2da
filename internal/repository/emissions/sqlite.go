package emissions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/gridwise/carbonsched/internal/emissions"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, rec *domain.Record) error {
	const query = `INSERT INTO emissions (job_name, emissions_kg, duration_seconds, recorded_at, country_code)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.JobName, rec.EmissionsKg, rec.DurationSeconds,
		rec.RecordedAt.UTC().Format(time.RFC3339), rec.CountryCode,
	)
	if err != nil {
		return fmt.Errorf("append emissions record: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Record, error) {
	const query = `SELECT job_name, emissions_kg, duration_seconds, recorded_at, country_code
		FROM emissions ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list emissions records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		var recordedStr string
		if err := rows.Scan(&rec.JobName, &rec.EmissionsKg, &rec.DurationSeconds,
			&recordedStr, &rec.CountryCode); err != nil {
			return nil, fmt.Errorf("scan emissions record: %w", err)
		}
		rec.RecordedAt, _ = time.Parse(time.RFC3339, recordedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
