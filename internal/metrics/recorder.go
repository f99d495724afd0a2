package metrics

import "time"

// Recorder defines observability hooks for run and job metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. The NoopRecorder is the
// default when metrics are not configured.
type Recorder interface {
	ObserveJobDuration(job string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncJobResult(job, result string)  // result: succeeded|failed|skipped|cancelled
	IncRunOutcome(outcome string)     // outcome: succeeded|failed|cancelled
	IncEventMatched(kind string)
	IncEventIgnored(kind string)
	IncRunsDeferred()
	IncRunsSuperseded()
	IncInvocationRetry(job string)
	SetActiveRuns(n int)
	SetQueuedRuns(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveJobDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)         {}
func (NoopRecorder) IncJobResult(string, string)              {}
func (NoopRecorder) IncRunOutcome(string)                     {}
func (NoopRecorder) IncEventMatched(string)                   {}
func (NoopRecorder) IncEventIgnored(string)                   {}
func (NoopRecorder) IncRunsDeferred()                         {}
func (NoopRecorder) IncRunsSuperseded()                       {}
func (NoopRecorder) IncInvocationRetry(string)                {}
func (NoopRecorder) SetActiveRuns(int)                        {}
func (NoopRecorder) SetQueuedRuns(int)                        {}
