package eventstore

import (
	"bytes"
	"testing"
	"time"
)

const testRunID = "run-42"

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	payload := []byte(`{"job": "build", "state": "running"}`)
	metadata := map[string]string{"workflow": "docs"}

	if err := store.Append(ctx, testRunID, "JobStateChanged", payload, metadata); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	events, err := store.GetByRunID(ctx, testRunID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.RunID() != testRunID {
		t.Errorf("expected run_id %s, got %s", testRunID, event.RunID())
	}
	if event.Type() != "JobStateChanged" {
		t.Errorf("expected event_type JobStateChanged, got %s", event.Type())
	}
	if !bytes.Equal(event.Payload(), payload) {
		t.Errorf("expected payload %s, got %s", payload, event.Payload())
	}
	if event.Metadata()["workflow"] != "docs" {
		t.Errorf("expected metadata workflow=docs, got %v", event.Metadata())
	}
}

func TestEventStoreAppendOrderPreserved(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	types := []string{"RunStarted", "JobStateChanged", "RunCompleted"}
	for _, et := range types {
		if err := store.Append(ctx, testRunID, et, []byte("{}"), nil); err != nil {
			t.Fatalf("failed to append %s: %v", et, err)
		}
	}

	events, err := store.GetByRunID(ctx, testRunID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(events))
	}
	for i, et := range types {
		if events[i].Type() != et {
			t.Errorf("event %d: expected %s, got %s", i, et, events[i].Type())
		}
	}
}

func TestEventStoreGetRange(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	now := time.Now()

	for range 3 {
		if appendErr := store.Append(ctx, testRunID, "JobStateChanged", []byte("{}"), nil); appendErr != nil {
			t.Fatalf("failed to append event: %v", appendErr)
		}
	}

	events, err := store.GetRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events in range, got %d", len(events))
	}

	past, err := store.GetRange(ctx, now.Add(-2*time.Hour), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to get past range: %v", err)
	}
	if len(past) != 0 {
		t.Errorf("expected no events in past range, got %d", len(past))
	}
}

func TestEventStoreIsolatesRuns(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	if err := store.Append(ctx, "run-a", "RunStarted", []byte("{}"), nil); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := store.Append(ctx, "run-b", "RunStarted", []byte("{}"), nil); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	events, err := store.GetByRunID(ctx, "run-a")
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event for run-a, got %d", len(events))
	}
}
