package daemon

import (
	"time"

	"git.home.luguber.info/inful/docsflow/internal/eventstore"
)

// Status is the operational snapshot served at /status.
type Status struct {
	Workflow    string                   `json:"workflow"`
	Uptime      string                   `json:"uptime"`
	StartedAt   time.Time                `json:"started_at"`
	ActiveRuns  int                      `json:"active_runs"`
	QueuedRuns  int                      `json:"queued_runs"`
	LastRun     *eventstore.RunSummary   `json:"last_run,omitempty"`
	RunningRuns []*eventstore.RunSummary `json:"running_runs,omitempty"`
}

// Status assembles the current operational snapshot.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	name := d.workflow.Name
	d.mu.RUnlock()

	return Status{
		Workflow:    name,
		Uptime:      time.Since(d.startTime).Round(time.Second).String(),
		StartedAt:   d.startTime,
		ActiveRuns:  d.governor.ActiveCount(),
		QueuedRuns:  d.governor.QueuedCount(),
		LastRun:     d.projection.GetLastCompletedRun(),
		RunningRuns: d.projection.GetActiveRuns(),
	}
}
