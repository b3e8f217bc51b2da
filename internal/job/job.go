package job

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusDeferred  Status = "deferred"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusRunning, StatusCompleted, StatusDeferred:
		return true
	}
	return false
}

// transitions is the closed set of permitted status changes. Scheduled and
// deferred jobs re-enter the admit/defer decision on the next evaluation
// cycle, so both may move to either outcome again (including a self
// transition, which keeps re-evaluation idempotent). Running also permits a
// self transition: a run whose execution phase failed leaves the job running,
// and a retry re-enters the run flow from that state. Completed is terminal.
var transitions = map[Status]map[Status]bool{
	StatusPending:   {StatusScheduled: true, StatusDeferred: true, StatusRunning: true},
	StatusScheduled: {StatusScheduled: true, StatusDeferred: true, StatusRunning: true},
	StatusDeferred:  {StatusScheduled: true, StatusDeferred: true, StatusRunning: true},
	StatusRunning:   {StatusRunning: true, StatusCompleted: true},
	StatusCompleted: {},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Job is a compute workload waiting for a clean enough grid to run on.
type Job struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	DurationMinutes int        `json:"durationMinutes"`
	PowerDrawWatts  int        `json:"powerDrawWatts"`
	Priority        int        `json:"priority"`
	CarbonThreshold int        `json:"carbonThreshold"`
	Status          Status     `json:"status"`
	SubmittedAt     time.Time  `json:"submittedAt"`
	ScheduledFor    *time.Time `json:"scheduledFor,omitempty"`
	// EmissionsAvoidedKg holds the measured emissions of the job's run once
	// it completes. The name is historical; it is a measurement, not a
	// savings figure.
	EmissionsAvoidedKg float64 `json:"emissionsAvoidedKg"`
}
