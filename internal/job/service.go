// Package job holds the job queue domain: the Job model, its status state
// machine, and the Service that guards every mutation behind transition
// validation and write-through persistence.
package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gridwise/carbonsched/internal/apperror"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Add validates and inserts a new pending job, returning it with its
// assigned id. The repository persists before Add returns.
func (s *Service) Add(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	threshold := req.CarbonThreshold
	if threshold == 0 {
		threshold = defaultCarbonThreshold
	}

	j := &Job{
		ID:              uuid.NewString(),
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		PowerDrawWatts:  req.PowerDrawWatts,
		Priority:        req.Priority,
		CarbonThreshold: threshold,
		Status:          StatusPending,
		SubmittedAt:     s.now().UTC(),
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	slog.Info("job submitted", "id", j.ID, "name", j.Name, "priority", j.Priority, "threshold", j.CarbonThreshold)
	return j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if err := (GetJobRequest{ID: id}).Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Job, error) {
	if !status.Valid() {
		return nil, apperror.New(apperror.BadRequest, "unknown status: "+string(status))
	}
	return s.repo.ListByStatus(ctx, status)
}

// SetStatus applies a state-machine transition. Unknown ids fail with
// NotFound, disallowed moves with InvalidTransition; nothing is persisted
// on failure.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Job, error) {
	if !status.Valid() {
		return nil, apperror.New(apperror.BadRequest, "unknown status: "+string(status))
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(j.Status, status) {
		return nil, apperror.New(apperror.InvalidTransition,
			"cannot transition job from "+string(j.Status)+" to "+string(status))
	}

	j.Status = status
	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Reschedule moves a job to scheduled or deferred and stamps ScheduledFor.
// Used by the evaluation cycle; both fields change under one persisted write.
func (s *Service) Reschedule(ctx context.Context, id string, status Status, at time.Time) (*Job, error) {
	if status != StatusScheduled && status != StatusDeferred {
		return nil, apperror.New(apperror.BadRequest, "reschedule requires scheduled or deferred status")
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(j.Status, status) {
		return nil, apperror.New(apperror.InvalidTransition,
			"cannot transition job from "+string(j.Status)+" to "+string(status))
	}

	j.Status = status
	j.ScheduledFor = &at
	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Complete closes out a running job, recording the measured emissions.
func (s *Service) Complete(ctx context.Context, id string, emissionsKg float64) (*Job, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(j.Status, StatusCompleted) {
		return nil, apperror.New(apperror.InvalidTransition,
			"cannot complete job in status "+string(j.Status))
	}

	j.Status = StatusCompleted
	j.EmissionsAvoidedKg = emissionsKg
	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// PrioritizedPending returns the jobs awaiting the next evaluation cycle:
// pending and deferred, highest priority first, ties in submission order.
func (s *Service) PrioritizedPending(ctx context.Context) ([]Job, error) {
	return s.repo.ListAwaitingEvaluation(ctx)
}

func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}
