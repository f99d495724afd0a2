// Package trigger decides whether incoming repository events start a run.
package trigger

import "time"

// EventKind identifies the class of repository event.
type EventKind string

const (
	EventPush     EventKind = "push"
	EventTag      EventKind = "tag"
	EventSchedule EventKind = "schedule"
)

// Event is an incoming event descriptor. Ref is the branch or tag short name
// for push/tag events and empty for schedule events.
type Event struct {
	Kind       EventKind `json:"kind"`
	Ref        string    `json:"ref,omitempty"`
	Repository string    `json:"repository,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Time       time.Time `json:"time"`
}
