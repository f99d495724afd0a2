package eventstore

import (
	"encoding/json"
	"time"

	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
)

// RunStartedMeta contains typed metadata for run start events.
type RunStartedMeta struct {
	Workflow   string `json:"workflow"`
	EventKind  string `json:"event_kind"`
	Ref        string `json:"ref"`
	Repository string `json:"repository,omitempty"`
	GroupKey   string `json:"group_key"`
	TriggerID  string `json:"trigger_id,omitempty"`
}

// RunStarted is emitted when a run begins executing.
type RunStarted struct {
	BaseEvent
	Meta RunStartedMeta `json:"meta"`
}

// NewRunStarted creates a RunStarted event with typed metadata.
func NewRunStarted(runID string, meta RunStartedMeta) (*RunStarted, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, derrors.StorageError("marshal RunStarted payload", err).
			WithContext("run_id", runID)
	}

	return &RunStarted{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      "RunStarted",
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Meta: meta,
	}, nil
}

// JobStateChanged is emitted on every job state transition within a run.
type JobStateChanged struct {
	BaseEvent
	Job      string        `json:"job"`
	State    string        `json:"state"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration_ms"`
}

// NewJobStateChanged creates a JobStateChanged event.
func NewJobStateChanged(runID, job, state, reason string, duration time.Duration) (*JobStateChanged, error) {
	payload, err := json.Marshal(map[string]any{
		"job":         job,
		"state":       state,
		"reason":      reason,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, derrors.StorageError("marshal JobStateChanged payload", err).
			WithContext("run_id", runID).
			WithContext("job", job)
	}

	return &JobStateChanged{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      "JobStateChanged",
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Job:      job,
		State:    state,
		Reason:   reason,
		Duration: duration,
	}, nil
}

// RunCompleted is emitted when a run reaches any terminal state, including
// cancelled. Per-state job counts give the summary without replaying every
// JobStateChanged event.
type RunCompleted struct {
	BaseEvent
	State     string         `json:"state"`
	Duration  time.Duration  `json:"duration_ms"`
	JobCounts map[string]int `json:"job_counts"`
	Reason    string         `json:"reason,omitempty"`
}

// NewRunCompleted creates a RunCompleted event.
func NewRunCompleted(runID, state string, duration time.Duration, jobCounts map[string]int, reason string) (*RunCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"state":       state,
		"duration_ms": duration.Milliseconds(),
		"job_counts":  jobCounts,
		"reason":      reason,
	})
	if err != nil {
		return nil, derrors.StorageError("marshal RunCompleted payload", err).
			WithContext("run_id", runID)
	}

	return &RunCompleted{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      "RunCompleted",
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		State:     state,
		Duration:  duration,
		JobCounts: jobCounts,
		Reason:    reason,
	}, nil
}

// EventIgnored is emitted when an incoming trigger event matched no rule.
// Stored under a synthetic run id so ignored traffic remains auditable.
type EventIgnored struct {
	BaseEvent
	EventKind string `json:"event_kind"`
	Ref       string `json:"ref"`
}

// NewEventIgnored creates an EventIgnored event.
func NewEventIgnored(triggerID, eventKind, ref string) (*EventIgnored, error) {
	payload, err := json.Marshal(map[string]any{
		"event_kind": eventKind,
		"ref":        ref,
	})
	if err != nil {
		return nil, derrors.StorageError("marshal EventIgnored payload", err).
			WithContext("trigger_id", triggerID)
	}

	return &EventIgnored{
		BaseEvent: BaseEvent{
			EventRunID:     "ignored:" + triggerID,
			EventType:      "EventIgnored",
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		EventKind: eventKind,
		Ref:       ref,
	}, nil
}
