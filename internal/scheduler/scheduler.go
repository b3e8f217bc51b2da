// Package scheduler decides when jobs run. Evaluate classifies waiting jobs
// against the live grid intensity; RunJob drives one job through the
// running → completed transition with an emissions bracket around it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridwise/carbonsched/internal/carbon"
	"github.com/gridwise/carbonsched/internal/emissions"
	"github.com/gridwise/carbonsched/internal/job"
)

const (
	// deferHorizon is the fixed re-evaluation horizon for deferred jobs.
	// No grid forecast is available, so a policy constant stands in.
	deferHorizon = 6 * time.Hour

	// estimateFactorKgPerKWh converts a deferred job's energy use into an
	// estimated emissions figure. Note the unit: kg CO2 per kWh, unlike the
	// live grid reading which is in g CO2 per kWh. The two are deliberately
	// separate; the estimate is a coarse planning number, not a measurement.
	estimateFactorKgPerKWh = 0.8

	// maxSimulatedRun caps the stand-in execution delay.
	maxSimulatedRun = 5 * time.Second

	// historyWindow is how many cycle results the dashboard shows.
	historyWindow = 10
)

// SignalSource provides the current grid status for a region.
type SignalSource interface {
	FetchIntensity(ctx context.Context, region string) carbon.GridStatus
}

// WorkFunc performs a job's execution phase. A real deployment substitutes
// actual workload dispatch; the default simulates it with a capped block.
type WorkFunc func(ctx context.Context, j *job.Job) error

// SimulatedWork blocks for the job's duration, one second per estimated
// minute, capped at maxSimulatedRun.
func SimulatedWork(ctx context.Context, j *job.Job) error {
	d := time.Duration(j.DurationMinutes) * time.Second
	if d > maxSimulatedRun {
		d = maxSimulatedRun
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CycleResult is one evaluation cycle's outcome, appended to the history.
type CycleResult struct {
	Timestamp        time.Time        `json:"timestamp"`
	Region           string           `json:"region"`
	CarbonIntensity  float64          `json:"currentCarbonIntensity"`
	Greenness        carbon.Greenness `json:"gridGreenness"`
	Synthetic        bool             `json:"isSynthetic"`
	ScheduledCount   int              `json:"scheduledCount"`
	DeferredCount    int              `json:"deferredCount"`
	EstimatedSavedKg float64          `json:"estimatedEmissionsSavedKg"`
	Scheduled        []job.Job        `json:"scheduledJobs"`
	Deferred         []job.Job        `json:"deferredJobs"`
}

// RunResult reports a completed job run.
type RunResult struct {
	JobID           string  `json:"jobId"`
	Status          string  `json:"status"`
	EmissionsKg     float64 `json:"emissionsKg"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// DashboardStats is the read-only composition for reporting.
type DashboardStats struct {
	TotalSubmitted int               `json:"totalJobsSubmitted"`
	Pending        int               `json:"pending"`
	Scheduled      int               `json:"scheduled"`
	Running        int               `json:"running"`
	Deferred       int               `json:"deferred"`
	Completed      int               `json:"completed"`
	Ledger         emissions.Summary `json:"emissions"`
	History        []CycleResult     `json:"scheduleHistory"`
}

// Engine is the scheduling core. A single mutex serializes Evaluate and
// RunJob so store mutation plus persistence form one exclusion domain.
type Engine struct {
	store  *job.Service
	signal SignalSource
	ledger *emissions.Ledger
	work   WorkFunc
	now    func() time.Time
	notify func() // optional: fired after each completed cycle or run

	mu      sync.Mutex
	history []CycleResult
}

func NewEngine(store *job.Service, signal SignalSource, ledger *emissions.Ledger) *Engine {
	return &Engine{
		store:  store,
		signal: signal,
		ledger: ledger,
		work:   SimulatedWork,
		now:    time.Now,
	}
}

// SetWork replaces the execution phase. Nil restores the simulated default.
func (e *Engine) SetWork(fn WorkFunc) {
	if fn == nil {
		fn = SimulatedWork
	}
	e.work = fn
}

// SetNotify sets a callback invoked after each evaluation cycle or job run.
func (e *Engine) SetNotify(fn func()) { e.notify = fn }

// Evaluate runs one admit/defer cycle over every pending and deferred job.
// A job runs now only when the live intensity is strictly below its
// threshold; an exactly-at-threshold grid defers it.
func (e *Engine) Evaluate(ctx context.Context, region string) (*CycleResult, error) {
	result, err := e.evaluate(ctx, region)
	if err != nil {
		return nil, err
	}
	// Notify outside the engine lock; listeners read dashboard state.
	if e.notify != nil {
		e.notify()
	}
	return result, nil
}

func (e *Engine) evaluate(ctx context.Context, region string) (*CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	grid := e.signal.FetchIntensity(ctx, region)

	waiting, err := e.store.PrioritizedPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list waiting jobs: %w", err)
	}

	now := e.now().UTC()
	result := &CycleResult{
		Timestamp:       now,
		Region:          region,
		CarbonIntensity: grid.CarbonIntensity,
		Greenness:       grid.Greenness,
		Synthetic:       grid.Synthetic,
		Scheduled:       []job.Job{},
		Deferred:        []job.Job{},
	}

	for _, j := range waiting {
		if grid.CarbonIntensity < float64(j.CarbonThreshold) {
			updated, err := e.store.Reschedule(ctx, j.ID, job.StatusScheduled, now)
			if err != nil {
				return nil, fmt.Errorf("schedule job %s: %w", j.ID, err)
			}
			result.Scheduled = append(result.Scheduled, *updated)
		} else {
			updated, err := e.store.Reschedule(ctx, j.ID, job.StatusDeferred, now.Add(deferHorizon))
			if err != nil {
				return nil, fmt.Errorf("defer job %s: %w", j.ID, err)
			}
			result.Deferred = append(result.Deferred, *updated)
			result.EstimatedSavedKg += estimatedEmissionsKg(*updated)
		}
	}

	result.ScheduledCount = len(result.Scheduled)
	result.DeferredCount = len(result.Deferred)
	e.history = append(e.history, *result)

	slog.Info("evaluation cycle complete", "region", region,
		"intensity", grid.CarbonIntensity, "greenness", grid.Greenness,
		"synthetic", grid.Synthetic,
		"scheduled", result.ScheduledCount, "deferred", result.DeferredCount)

	return result, nil
}

// estimatedEmissionsKg is the planning estimate for one job:
// kW × hours × fixed kg/kWh factor.
func estimatedEmissionsKg(j job.Job) float64 {
	powerKW := float64(j.PowerDrawWatts) / 1000
	durationH := float64(j.DurationMinutes) / 60
	return powerKW * durationH * estimateFactorKgPerKWh
}

// RunJob executes one job: transition to running, bracket the execution with
// the emissions ledger, then complete with the measured figure. Any failure
// after the job entered running leaves it running so callers can detect and
// retry a stuck run; it is never silently completed with zero emissions.
func (e *Engine) RunJob(ctx context.Context, id string) (*RunResult, error) {
	result, err := e.runJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.notify != nil {
		e.notify()
	}
	return result, nil
}

func (e *Engine) runJob(ctx context.Context, id string) (*RunResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.SetStatus(ctx, id, job.StatusRunning); err != nil {
		return nil, err
	}

	if err := e.ledger.StartTracking(j.Name); err != nil {
		return nil, err
	}

	if err := e.work(ctx, j); err != nil {
		// Discard the bracket so a retry can open a fresh one. Nothing is
		// recorded for a run that never completed; the job stays running.
		_ = e.ledger.Discard()
		return nil, fmt.Errorf("run job %s: %w", id, err)
	}

	rec, err := e.ledger.StopTracking(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.Complete(ctx, id, rec.EmissionsKg); err != nil {
		return nil, err
	}

	slog.Info("job completed", "id", id, "name", j.Name,
		"emissionsKg", rec.EmissionsKg, "durationSeconds", rec.DurationSeconds)

	return &RunResult{
		JobID:           id,
		Status:          string(job.StatusCompleted),
		EmissionsKg:     rec.EmissionsKg,
		DurationSeconds: rec.DurationSeconds,
	}, nil
}

// History returns a copy of the last n cycle results, oldest first.
// n <= 0 returns the full history.
func (e *Engine) History(n int) []CycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := 0
	if n > 0 && len(e.history) > n {
		start = len(e.history) - n
	}
	out := make([]CycleResult, len(e.history)-start)
	copy(out, e.history[start:])
	return out
}

// DashboardStats composes job counts, the ledger summary, and recent cycle
// history. Read-only; it mutates nothing.
func (e *Engine) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	summary, err := e.ledger.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger summary: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return &DashboardStats{
		TotalSubmitted: total,
		Pending:        counts[job.StatusPending],
		Scheduled:      counts[job.StatusScheduled],
		Running:        counts[job.StatusRunning],
		Deferred:       counts[job.StatusDeferred],
		Completed:      counts[job.StatusCompleted],
		Ledger:         summary,
		History:        e.History(historyWindow),
	}, nil
}
