package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	jobDuration     *prom.HistogramVec
	runDuration     prom.Histogram
	jobResults      *prom.CounterVec
	runOutcomes     *prom.CounterVec
	eventsMatched   *prom.CounterVec
	eventsIgnored   *prom.CounterVec
	runsDeferred    prom.Counter
	runsSuperseded  prom.Counter
	invocationRetry *prom.CounterVec
	activeRuns      prom.Gauge
	queuedRuns      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on the
// given registry (a fresh private registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		jobDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsflow",
			Name:      "job_duration_seconds",
			Help:      "Duration of individual job invocations",
			Buckets:   prom.DefBuckets,
		}, []string{"job"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docsflow",
			Name:      "run_duration_seconds",
			Help:      "Total run duration from admission to terminal state",
			Buckets:   prom.DefBuckets,
		}),
		jobResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsflow",
			Name:      "job_results_total",
			Help:      "Job results by terminal state",
		}, []string{"job", "result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsflow",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by terminal state",
		}, []string{"outcome"}),
		eventsMatched: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsflow",
			Name:      "events_matched_total",
			Help:      "Incoming events that matched a trigger rule",
		}, []string{"kind"}),
		eventsIgnored: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsflow",
			Name:      "events_ignored_total",
			Help:      "Incoming events that matched no trigger rule",
		}, []string{"kind"}),
		runsDeferred: prom.NewCounter(prom.CounterOpts{
			Namespace: "docsflow",
			Name:      "runs_deferred_total",
			Help:      "Runs queued behind an active run in the same concurrency group",
		}),
		runsSuperseded: prom.NewCounter(prom.CounterOpts{
			Namespace: "docsflow",
			Name:      "runs_superseded_total",
			Help:      "Runs cancelled because a newer run claimed their concurrency group",
		}),
		invocationRetry: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsflow",
			Name:      "invocation_retries_total",
			Help:      "Transient invocation failures that were retried",
		}, []string{"job"}),
		activeRuns: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docsflow",
			Name:      "active_runs",
			Help:      "Runs currently in a non-terminal state",
		}),
		queuedRuns: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docsflow",
			Name:      "queued_runs",
			Help:      "Runs deferred behind concurrency groups",
		}),
	}
	reg.MustRegister(
		pr.jobDuration, pr.runDuration, pr.jobResults, pr.runOutcomes,
		pr.eventsMatched, pr.eventsIgnored, pr.runsDeferred, pr.runsSuperseded,
		pr.invocationRetry, pr.activeRuns, pr.queuedRuns,
	)
	return pr
}

func (p *PrometheusRecorder) ObserveJobDuration(job string, d time.Duration) {
	p.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobResult(job, result string) {
	p.jobResults.WithLabelValues(job, result).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncEventMatched(kind string) {
	p.eventsMatched.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncEventIgnored(kind string) {
	p.eventsIgnored.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncRunsDeferred()   { p.runsDeferred.Inc() }
func (p *PrometheusRecorder) IncRunsSuperseded() { p.runsSuperseded.Inc() }

func (p *PrometheusRecorder) IncInvocationRetry(job string) {
	p.invocationRetry.WithLabelValues(job).Inc()
}

func (p *PrometheusRecorder) SetActiveRuns(n int) { p.activeRuns.Set(float64(n)) }
func (p *PrometheusRecorder) SetQueuedRuns(n int) { p.queuedRuns.Set(float64(n)) }
