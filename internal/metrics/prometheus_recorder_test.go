package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveJobDuration("build", 150*time.Millisecond)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncJobResult("build", "succeeded")
	pr.IncRunOutcome("succeeded")
	pr.IncEventMatched("push")
	pr.IncEventIgnored("deployment")
	pr.IncRunsDeferred()
	pr.IncRunsSuperseded()
	pr.IncInvocationRetry("publish")
	pr.SetActiveRuns(1)
	pr.SetQueuedRuns(2)
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

func TestNilRegistryGetsPrivateRegistry(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome("failed")
}
