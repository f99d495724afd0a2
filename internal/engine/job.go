package engine

import (
	"time"

	"git.home.luguber.info/inful/docsflow/internal/config"
	"git.home.luguber.info/inful/docsflow/internal/guard"
)

// JobState is the lifecycle state of a job within a run.
type JobState string

const (
	JobPending   JobState = "pending"
	JobBlocked   JobState = "blocked"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobSkipped   JobState = "skipped"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobSkipped, JobCancelled:
		return true
	default:
		return false
	}
}

// Job is the runtime record for one configured job inside a run. The run
// exclusively owns its jobs; all state mutation happens on the executor's
// bookkeeping goroutine.
type Job struct {
	Name   string
	Config config.JobConfig
	Guard  *guard.Guard // nil when the job has no guard

	State       JobState
	Reason      string // human-readable cause for failed/skipped/cancelled
	Outputs     map[string]string
	StartedAt   time.Time
	CompletedAt time.Time

	deps       []int // indices into the run's job arena
	dependents []int
}

// Duration returns how long the job ran, zero if it never started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}
