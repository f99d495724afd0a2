package daemon

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docsflow/internal/engine"
	"git.home.luguber.info/inful/docsflow/internal/eventstore"
	"git.home.luguber.info/inful/docsflow/internal/logfields"
)

// appendTimeout bounds a single event store write from the bookkeeping loop.
const appendTimeout = 5 * time.Second

// EventEmitter persists run lifecycle events to the event store and applies
// them to the run-history projection. It implements engine.Listener; emission
// failures are logged, never propagated, so persistence trouble cannot stall
// a run.
type EventEmitter struct {
	store      eventstore.Store
	projection *eventstore.RunHistoryProjection
}

// NewEventEmitter creates an emitter over the given store and projection.
// Either may be nil, in which case that half is skipped.
func NewEventEmitter(store eventstore.Store, projection *eventstore.RunHistoryProjection) *EventEmitter {
	return &EventEmitter{store: store, projection: projection}
}

// emit persists one event and updates the projection.
func (e *EventEmitter) emit(event eventstore.Event) {
	if e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		defer cancel()
		if err := e.store.Append(ctx, event.RunID(), event.Type(), event.Payload(), event.Metadata()); err != nil {
			slog.Error("Failed to persist run event",
				logfields.RunID(event.RunID()),
				slog.String("event_type", event.Type()),
				logfields.Error(err))
		}
	}
	if e.projection != nil {
		e.projection.Apply(event)
	}
}

// RunStarted implements engine.Listener.
func (e *EventEmitter) RunStarted(run *engine.Run) {
	event, err := eventstore.NewRunStarted(run.ID, eventstore.RunStartedMeta{
		Workflow:   run.Workflow.Name,
		EventKind:  string(run.Event.Kind),
		Ref:        run.Event.Ref,
		Repository: run.Event.Repository,
		GroupKey:   run.GroupKey,
	})
	if err != nil {
		slog.Error("Failed to build RunStarted event", logfields.RunID(run.ID), logfields.Error(err))
		return
	}
	e.emit(event)
}

// JobTransition implements engine.Listener. Only terminal transitions and
// dispatches are persisted; blocked is transient bookkeeping.
func (e *EventEmitter) JobTransition(run *engine.Run, job *engine.Job) {
	if job.State == engine.JobBlocked {
		return
	}
	event, err := eventstore.NewJobStateChanged(run.ID, job.Name, string(job.State), job.Reason, job.Duration())
	if err != nil {
		slog.Error("Failed to build JobStateChanged event",
			logfields.RunID(run.ID),
			logfields.JobName(job.Name),
			logfields.Error(err))
		return
	}
	e.emit(event)
}

// RunFinished implements engine.Listener.
func (e *EventEmitter) RunFinished(run *engine.Run) {
	counts := make(map[string]int)
	for _, job := range run.Jobs {
		counts[string(job.State)]++
	}
	_, reason := run.CancelStatus()

	event, err := eventstore.NewRunCompleted(run.ID, string(run.State),
		run.CompletedAt.Sub(run.CreatedAt), counts, reason)
	if err != nil {
		slog.Error("Failed to build RunCompleted event", logfields.RunID(run.ID), logfields.Error(err))
		return
	}
	e.emit(event)
}

// EmitEventIgnored records an incoming trigger event that matched no rule.
func (e *EventEmitter) EmitEventIgnored(triggerID, eventKind, ref string) {
	event, err := eventstore.NewEventIgnored(triggerID, eventKind, ref)
	if err != nil {
		slog.Error("Failed to build EventIgnored event", logfields.TriggerID(triggerID), logfields.Error(err))
		return
	}
	e.emit(event)
}

// Compile-time check that EventEmitter implements engine.Listener.
var _ engine.Listener = (*EventEmitter)(nil)
