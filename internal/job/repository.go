package job

import "context"

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// List returns every job in insertion order.
	List(ctx context.Context) ([]Job, error)
	// ListByStatus returns jobs with the given status in insertion order.
	ListByStatus(ctx context.Context, status Status) ([]Job, error)
	// ListAwaitingEvaluation returns pending and deferred jobs ordered by
	// priority descending, insertion order breaking ties.
	ListAwaitingEvaluation(ctx context.Context) ([]Job, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
