// Package emissions records start/stop brackets of job execution and derives
// cumulative statistics. Measurement itself is delegated to a Meter, which
// may legitimately read zero when no instrument is available.
package emissions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gridwise/carbonsched/internal/apperror"
)

// Record is one measured execution window. Records are append-only.
type Record struct {
	JobName         string    `json:"jobName"`
	EmissionsKg     float64   `json:"emissionsKg"`
	DurationSeconds float64   `json:"durationSeconds"`
	RecordedAt      time.Time `json:"timestamp"`
	CountryCode     string    `json:"countryCode"`
}

// Summary aggregates the whole ledger. All fields are zero when empty.
type Summary struct {
	TotalJobs            int     `json:"totalJobs"`
	TotalEmissionsKg     float64 `json:"totalEmissionsKg"`
	AvgEmissionsPerJobKg float64 `json:"avgEmissionsPerJobKg"`
	TotalDurationHours   float64 `json:"totalDurationHours"`
	MaxSingleJobKg       float64 `json:"maxSingleJobKg"`
	MinSingleJobKg       float64 `json:"minSingleJobKg"`
}

// Meter is the external measurement instrument bracketing one execution.
// Stop returns the estimate in kg CO2; zero means the instrument was
// unavailable, which is degraded precision rather than an error.
type Meter interface {
	Start()
	Stop() float64
}

// NopMeter is the no-instrument fallback; it always reads zero.
type NopMeter struct{}

func (NopMeter) Start()        {}
func (NopMeter) Stop() float64 { return 0 }

type Repository interface {
	Append(ctx context.Context, r *Record) error
	List(ctx context.Context) ([]Record, error)
}

// Ledger tracks at most one open bracket at a time.
type Ledger struct {
	repo        Repository
	meter       Meter
	countryCode string
	now         func() time.Time

	mu        sync.Mutex
	active    bool
	activeJob string
	startedAt time.Time
}

func NewLedger(repo Repository, meter Meter, countryCode string) *Ledger {
	if meter == nil {
		meter = NopMeter{}
	}
	return &Ledger{
		repo:        repo,
		meter:       meter,
		countryCode: countryCode,
		now:         time.Now,
	}
}

// StartTracking opens a bracket for the given job label. A second call
// before StopTracking fails with TrackingActive.
func (l *Ledger) StartTracking(jobLabel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active {
		return apperror.New(apperror.TrackingActive,
			"tracking already active for job "+l.activeJob)
	}

	l.meter.Start()
	l.active = true
	l.activeJob = jobLabel
	l.startedAt = l.now()
	return nil
}

// StopTracking closes the bracket, appends the record to the ledger, and
// persists it before returning.
func (l *Ledger) StopTracking(ctx context.Context) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return nil, apperror.New(apperror.NoTracking, "no active tracking bracket")
	}

	emissions := l.meter.Stop()
	rec := &Record{
		JobName:         l.activeJob,
		EmissionsKg:     emissions,
		DurationSeconds: l.now().Sub(l.startedAt).Seconds(),
		RecordedAt:      l.now().UTC(),
		CountryCode:     l.countryCode,
	}

	if err := l.repo.Append(ctx, rec); err != nil {
		return nil, err
	}

	l.active = false
	l.activeJob = ""

	slog.Info("emissions recorded", "job", rec.JobName,
		"emissionsKg", rec.EmissionsKg, "durationSeconds", rec.DurationSeconds)
	return rec, nil
}

// Discard closes the bracket without appending a record. It is the abort
// path for a run that never completed; the ledger only counts measured runs.
func (l *Ledger) Discard() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return apperror.New(apperror.NoTracking, "no active tracking bracket")
	}

	l.meter.Stop()
	l.active = false
	l.activeJob = ""
	return nil
}

// Summary aggregates every record in the ledger. An empty ledger yields a
// zero summary; the average is never a division by zero.
func (l *Ledger) Summary(ctx context.Context) (Summary, error) {
	records, err := l.repo.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(records) == 0 {
		return Summary{}, nil
	}

	s := Summary{
		TotalJobs:      len(records),
		MaxSingleJobKg: records[0].EmissionsKg,
		MinSingleJobKg: records[0].EmissionsKg,
	}
	var totalSeconds float64
	for _, r := range records {
		s.TotalEmissionsKg += r.EmissionsKg
		totalSeconds += r.DurationSeconds
		if r.EmissionsKg > s.MaxSingleJobKg {
			s.MaxSingleJobKg = r.EmissionsKg
		}
		if r.EmissionsKg < s.MinSingleJobKg {
			s.MinSingleJobKg = r.EmissionsKg
		}
	}
	s.AvgEmissionsPerJobKg = s.TotalEmissionsKg / float64(len(records))
	s.TotalDurationHours = totalSeconds / 3600
	return s, nil
}
