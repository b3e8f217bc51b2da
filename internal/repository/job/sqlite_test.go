package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridwise/carbonsched/internal/apperror"
	domain "github.com/gridwise/carbonsched/internal/job"
	"github.com/gridwise/carbonsched/internal/platform/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newJob(id, name string, priority int) *domain.Job {
	return &domain.Job{
		ID:              id,
		Name:            name,
		DurationMinutes: 60,
		PowerDrawWatts:  300,
		Priority:        priority,
		CarbonThreshold: 400,
		Status:          domain.StatusPending,
		SubmittedAt:     time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreate_And_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob("job-1", "train", 4)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "train" {
		t.Errorf("expected train, got %s", got.Name)
	}
	if got.Priority != 4 {
		t.Errorf("expected priority 4, got %d", got.Priority)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.ScheduledFor != nil {
		t.Error("expected nil scheduledFor")
	}
	if !got.SubmittedAt.Equal(j.SubmittedAt) {
		t.Errorf("expected submittedAt %v, got %v", j.SubmittedAt, got.SubmittedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	_, err := repo.Get(context.Background(), "missing")
	if !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob("job-1", "train", 3)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC)
	j.Status = domain.StatusScheduled
	j.ScheduledFor = &at
	j.EmissionsAvoidedKg = 1.25
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := repo.Get(ctx, "job-1")
	if got.Status != domain.StatusScheduled {
		t.Errorf("expected scheduled, got %s", got.Status)
	}
	if got.ScheduledFor == nil || !got.ScheduledFor.Equal(at) {
		t.Errorf("expected scheduledFor %v, got %v", at, got.ScheduledFor)
	}
	if got.EmissionsAvoidedKg != 1.25 {
		t.Errorf("expected 1.25, got %f", got.EmissionsAvoidedKg)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)

	err := repo.Update(context.Background(), newJob("ghost", "x", 1))
	if !apperror.Is(err, apperror.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListByStatus_InsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, newJob(id, id, 1)); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := repo.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3, got %d", len(jobs))
	}
	for i, id := range []string{"a", "b", "c"} {
		if jobs[i].ID != id {
			t.Errorf("expected %s at %d, got %s", id, i, jobs[i].ID)
		}
	}
}

func TestListAwaitingEvaluation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	// Two jobs with equal priority submitted in a known order, one higher
	// priority job after them, plus statuses that must be excluded.
	if err := repo.Create(ctx, newJob("low-a", "low-a", 2)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, newJob("low-b", "low-b", 2)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, newJob("high", "high", 5)); err != nil {
		t.Fatal(err)
	}

	deferred := newJob("deferred", "deferred", 4)
	deferred.Status = domain.StatusDeferred
	if err := repo.Create(ctx, deferred); err != nil {
		t.Fatal(err)
	}

	running := newJob("running", "running", 5)
	running.Status = domain.StatusRunning
	if err := repo.Create(ctx, running); err != nil {
		t.Fatal(err)
	}
	completed := newJob("done", "done", 5)
	completed.Status = domain.StatusCompleted
	if err := repo.Create(ctx, completed); err != nil {
		t.Fatal(err)
	}

	jobs, err := repo.ListAwaitingEvaluation(ctx)
	if err != nil {
		t.Fatalf("list awaiting evaluation: %v", err)
	}

	want := []string{"high", "deferred", "low-a", "low-b"}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for i, id := range want {
		if jobs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, jobs[i].ID)
		}
	}
}

func TestCountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	for i, status := range []domain.Status{
		domain.StatusPending, domain.StatusPending, domain.StatusCompleted,
	} {
		j := newJob(string(rune('a'+i)), "x", 1)
		j.Status = status
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[domain.StatusPending] != 2 {
		t.Errorf("expected 2 pending, got %d", counts[domain.StatusPending])
	}
	if counts[domain.StatusCompleted] != 1 {
		t.Errorf("expected 1 completed, got %d", counts[domain.StatusCompleted])
	}
}

// A corrupt persisted timestamp surfaces as an error, never a zero time.
func TestGet_CorruptTimestamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO jobs (id, name, duration_minutes, power_draw_watts,
		priority, carbon_threshold, status, submitted_at, scheduled_for, emissions_avoided_kg)
		VALUES ('bad', 'bad', 60, 300, 1, 400, 'pending', 'not-a-timestamp', NULL, 0)`)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Get(ctx, "bad"); err == nil {
		t.Fatal("expected error for corrupt submitted_at")
	}
}

// Reopening the database must yield the identical job collection.
func TestRoundTrip_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()

	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo := NewRepository(db.DB)

	at := time.Date(2026, 2, 2, 8, 30, 0, 0, time.UTC)
	j := newJob("job-1", "train", 5)
	j.Status = domain.StatusDeferred
	j.ScheduledFor = &at
	j.EmissionsAvoidedKg = 2.5
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, newJob("job-2", "render", 1)); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	db2, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	repo2 := NewRepository(db2.DB)

	jobs, err := repo2.List(ctx)
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs after reopen, got %d", len(jobs))
	}

	got := jobs[0]
	if got.ID != "job-1" || got.Name != "train" || got.Priority != 5 ||
		got.DurationMinutes != 60 || got.PowerDrawWatts != 300 ||
		got.CarbonThreshold != 400 {
		t.Errorf("job fields did not survive reopen: %+v", got)
	}
	if got.Status != domain.StatusDeferred {
		t.Errorf("expected deferred, got %s", got.Status)
	}
	if got.ScheduledFor == nil || !got.ScheduledFor.Equal(at) {
		t.Errorf("expected scheduledFor %v, got %v", at, got.ScheduledFor)
	}
	if got.EmissionsAvoidedKg != 2.5 {
		t.Errorf("expected 2.5, got %f", got.EmissionsAvoidedKg)
	}
}
