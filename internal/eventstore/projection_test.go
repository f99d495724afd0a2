package eventstore

import (
	"testing"
	"time"
)

func appendRunLifecycle(t *testing.T, store Store, runID, finalState string) {
	t.Helper()
	ctx := t.Context()

	started, err := NewRunStarted(runID, RunStartedMeta{
		Workflow:  "docs",
		EventKind: "push",
		Ref:       "main",
		GroupKey:  "docs-main",
	})
	if err != nil {
		t.Fatalf("failed to build RunStarted: %v", err)
	}
	if err := store.Append(ctx, runID, started.Type(), started.Payload(), nil); err != nil {
		t.Fatalf("failed to append RunStarted: %v", err)
	}

	job, err := NewJobStateChanged(runID, "build", "succeeded", "", 2*time.Second)
	if err != nil {
		t.Fatalf("failed to build JobStateChanged: %v", err)
	}
	if err := store.Append(ctx, runID, job.Type(), job.Payload(), nil); err != nil {
		t.Fatalf("failed to append JobStateChanged: %v", err)
	}

	completed, err := NewRunCompleted(runID, finalState, 3*time.Second, map[string]int{"succeeded": 1}, "")
	if err != nil {
		t.Fatalf("failed to build RunCompleted: %v", err)
	}
	if err := store.Append(ctx, runID, completed.Type(), completed.Payload(), nil); err != nil {
		t.Fatalf("failed to append RunCompleted: %v", err)
	}
}

func TestProjectionApplyTracksLifecycle(t *testing.T) {
	proj := NewRunHistoryProjection(nil, 10)

	started, err := NewRunStarted("run-1", RunStartedMeta{
		Workflow: "docs", EventKind: "push", Ref: "stable-2.5", GroupKey: "docs-stable-2.5",
	})
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	proj.Apply(started)

	summary, ok := proj.GetRun("run-1")
	if !ok {
		t.Fatal("expected run-1 in projection")
	}
	if summary.Status != "running" {
		t.Errorf("expected status running, got %s", summary.Status)
	}
	if summary.Ref != "stable-2.5" {
		t.Errorf("expected ref stable-2.5, got %s", summary.Ref)
	}

	job, err := NewJobStateChanged("run-1", "build", "running", "", 0)
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	proj.Apply(job)

	summary, _ = proj.GetRun("run-1")
	if summary.JobStates["build"] != "running" {
		t.Errorf("expected build running, got %v", summary.JobStates)
	}

	completed, err := NewRunCompleted("run-1", "succeeded", time.Second, map[string]int{"succeeded": 1}, "")
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	proj.Apply(completed)

	summary, _ = proj.GetRun("run-1")
	if summary.Status != "succeeded" {
		t.Errorf("expected status succeeded, got %s", summary.Status)
	}
	if summary.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if len(proj.GetHistory()) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(proj.GetHistory()))
	}
}

func TestProjectionRebuildFromStore(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	appendRunLifecycle(t, store, "run-1", "succeeded")
	appendRunLifecycle(t, store, "run-2", "failed")

	proj := NewRunHistoryProjection(store, 10)
	if err := proj.Rebuild(t.Context()); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	history := proj.GetHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}

	r1, ok := proj.GetRun("run-1")
	if !ok || r1.Status != "succeeded" {
		t.Errorf("expected run-1 succeeded, got %+v", r1)
	}
	r2, ok := proj.GetRun("run-2")
	if !ok || r2.Status != "failed" {
		t.Errorf("expected run-2 failed, got %+v", r2)
	}
	if proj.LastSyncTime().IsZero() {
		t.Error("expected last sync time to be set")
	}
}

func TestProjectionBoundsHistory(t *testing.T) {
	proj := NewRunHistoryProjection(nil, 2)

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		completed, err := NewRunCompleted(id, "succeeded", time.Second, nil, "")
		if err != nil {
			t.Fatalf("failed to build event: %v", err)
		}
		proj.Apply(completed)
	}

	if got := len(proj.GetHistory()); got != 2 {
		t.Errorf("expected history bounded to 2, got %d", got)
	}
	// The oldest terminal run also fell out of the lookup map.
	if _, ok := proj.GetRun("run-1"); ok {
		t.Error("expected run-1 to be pruned")
	}
}

func TestProjectionIgnoresSyntheticRuns(t *testing.T) {
	proj := NewRunHistoryProjection(nil, 10)

	ignored, err := NewEventIgnored("trig-1", "push", "feature-x")
	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	proj.Apply(ignored)

	if len(proj.GetActiveRuns()) != 0 {
		t.Error("ignored events must not create run summaries")
	}
}
