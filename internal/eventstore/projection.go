// Package eventstore provides event sourcing primitives for run tracking.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

const runStatusRunning = "running"

// RunSummary is a read model summarizing a completed or in-progress run.
type RunSummary struct {
	RunID       string            `json:"run_id"`
	Workflow    string            `json:"workflow,omitempty"`
	EventKind   string            `json:"event_kind,omitempty"`
	Ref         string            `json:"ref,omitempty"`
	Repository  string            `json:"repository,omitempty"`
	GroupKey    string            `json:"group_key,omitempty"`
	Status      string            `json:"status"` // "running", "succeeded", "failed", "cancelled"
	Reason      string            `json:"reason,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	JobCounts   map[string]int    `json:"job_counts,omitempty"`
	JobStates   map[string]string `json:"job_states,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the event store.
type RunHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	runs    map[string]*RunSummary // runID -> summary
	history []*RunSummary          // ordered by start time, newest first
	maxSize int

	lastSync time.Time
}

// NewRunHistoryProjection creates a new projection backed by the given store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		history: make([]*RunSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
// Typically called once at startup.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	p.history = make([]*RunSummary, 0, p.maxSize)

	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection. Used for
// real-time updates as events are emitted.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *RunHistoryProjection) applyEventLocked(event Event) {
	runID := event.RunID()
	if runID == "" || strings.HasPrefix(runID, "ignored:") {
		return
	}

	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{
			RunID:     runID,
			Status:    runStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.runs[runID] = summary
	}

	switch event.Type() {
	case "RunStarted":
		summary.StartedAt = event.Timestamp()
		summary.Status = runStatusRunning
		var meta RunStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Workflow = meta.Workflow
			summary.EventKind = meta.EventKind
			summary.Ref = meta.Ref
			summary.Repository = meta.Repository
			summary.GroupKey = meta.GroupKey
		}

	case "JobStateChanged":
		var payload struct {
			Job   string `json:"job"`
			State string `json:"state"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Job != "" {
			if summary.JobStates == nil {
				summary.JobStates = make(map[string]string)
			}
			summary.JobStates[payload.Job] = payload.State
		}

	case "RunCompleted":
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		var payload struct {
			State     string         `json:"state"`
			Reason    string         `json:"reason"`
			JobCounts map[string]int `json:"job_counts"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			if payload.State != "" {
				summary.Status = payload.State
			}
			summary.Reason = payload.Reason
			summary.JobCounts = payload.JobCounts
		}
		p.addToHistoryLocked(summary)
	}
}

// addToHistoryLocked adds a terminal run to history if not already present.
func (p *RunHistoryProjection) addToHistoryLocked(summary *RunSummary) {
	for _, h := range p.history {
		if h.RunID == summary.RunID {
			return
		}
	}

	p.history = append([]*RunSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
}

// pruneRunsLocked drops terminal runs that fell out of the bounded history.
// Runs still marked running are always kept.
func (p *RunHistoryProjection) pruneRunsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.RunID] = struct{}{}
	}
	for id, summary := range p.runs {
		if summary.Status == runStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// GetHistory returns terminal runs, newest first.
func (p *RunHistoryProjection) GetHistory() []*RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*RunSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetRun returns the summary for a specific run.
func (p *RunHistoryProjection) GetRun(runID string) (*RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	summary, exists := p.runs[runID]
	if !exists {
		return nil, false
	}
	cp := *summary
	return &cp, true
}

// GetActiveRuns returns all runs currently marked running.
func (p *RunHistoryProjection) GetActiveRuns() []*RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var active []*RunSummary
	for _, summary := range p.runs {
		if summary.Status == runStatusRunning {
			cp := *summary
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].StartedAt.Before(active[j].StartedAt)
	})
	return active
}

// GetLastCompletedRun returns the most recently finished run, nil when none.
func (p *RunHistoryProjection) GetLastCompletedRun() *RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.history) == 0 {
		return nil
	}
	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last rebuilt from the store.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
