// Package daemon wires the trigger sources, concurrency governor, job graph
// executor, event store, and HTTP surface into a long-running service.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsflow/internal/config"
	"git.home.luguber.info/inful/docsflow/internal/engine"
	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
	"git.home.luguber.info/inful/docsflow/internal/eventstore"
	"git.home.luguber.info/inful/docsflow/internal/invoker"
	"git.home.luguber.info/inful/docsflow/internal/logfields"
	"git.home.luguber.info/inful/docsflow/internal/metrics"
	"git.home.luguber.info/inful/docsflow/internal/retry"
	"git.home.luguber.info/inful/docsflow/internal/trigger"
)

// Daemon is the long-running dispatch service. Incoming events, whether from
// the webhook endpoint, the git poller, or schedule rules, all flow through
// HandleEvent.
type Daemon struct {
	configPath string

	mu       sync.RWMutex
	workflow *config.Workflow
	matcher  *trigger.Matcher
	executor *engine.Executor

	governor   *engine.Governor
	invoker    invoker.Invoker
	store      eventstore.Store
	projection *eventstore.RunHistoryProjection
	emitter    *EventEmitter
	scheduler  *Scheduler
	httpServer *HTTPServer
	watcher    *ConfigWatcher
	recorder   metrics.Recorder
	registry   *prom.Registry
	workers    WorkerGroup

	runCtx    context.Context
	cancelAll context.CancelFunc
	startTime time.Time
}

// New assembles a daemon from a validated workflow definition. Nothing runs
// until Start.
func New(configPath string, w *config.Workflow) (*Daemon, error) {
	d := &Daemon{
		configPath: configPath,
		workflow:   w,
	}

	matcher, err := trigger.NewMatcher(w.On)
	if err != nil {
		return nil, derrors.ConfigInvalid("on", err.Error())
	}
	d.matcher = matcher

	d.registry = prom.NewRegistry()
	d.recorder = metrics.NewPrometheusRecorder(d.registry)

	store, err := eventstore.NewSQLiteStore(w.Daemon.Database)
	if err != nil {
		return nil, derrors.StorageError("open event store", err)
	}
	d.store = store
	d.projection = eventstore.NewRunHistoryProjection(store, w.Daemon.HistorySize)
	d.emitter = NewEventEmitter(store, d.projection)

	inv, err := buildInvoker(w.Invoker)
	if err != nil {
		return nil, err
	}
	d.invoker = inv
	d.executor = buildExecutor(w, inv, d.recorder, d.emitter)

	d.governor = engine.NewGovernor(d.executeRun, d.recorder)

	scheduler, err := NewScheduler(d.ingest)
	if err != nil {
		return nil, derrors.InternalError("create scheduler", err)
	}
	d.scheduler = scheduler
	if err := scheduler.AddScheduleRules(w.On.Schedule, w.Context["repository"]); err != nil {
		return nil, derrors.ConfigInvalid("on.schedule", err.Error())
	}
	if remote := w.Daemon.Poll.Remote; remote != "" {
		poller := trigger.NewGitPoller(remote, w.Context["repository"], d.ingest)
		if err := scheduler.AddPoller(poller, w.Daemon.PollInterval()); err != nil {
			return nil, derrors.ConfigInvalid("daemon.poll", err.Error())
		}
	}

	d.httpServer = NewHTTPServer(w.Daemon.HTTPPort, d)
	return d, nil
}

// buildInvoker constructs the configured external invoker.
func buildInvoker(ic config.InvokerConfig) (invoker.Invoker, error) {
	switch ic.Kind {
	case config.InvokerKindNATS:
		inv, err := invoker.NewNATS(ic.URL, ic.Subject)
		if err != nil {
			return nil, derrors.ConfigInvalid("invoker", err.Error())
		}
		return inv, nil
	default:
		return invoker.NewLocal(""), nil
	}
}

// buildExecutor constructs an executor from the workflow's invoker settings.
func buildExecutor(w *config.Workflow, inv invoker.Invoker, rec metrics.Recorder, listener engine.Listener) *engine.Executor {
	timeout, err := time.ParseDuration(w.Invoker.Timeout)
	if err != nil {
		timeout = 30 * time.Minute
	}
	return engine.NewExecutor(inv, timeout,
		engine.WithRecorder(rec),
		engine.WithRetryPolicy(retry.FromConfig(w.Invoker.Retry)),
		engine.WithListener(listener))
}

// Start brings up the scheduler, HTTP server, config watcher, and projection.
func (d *Daemon) Start(ctx context.Context) error {
	d.runCtx, d.cancelAll = context.WithCancel(context.WithoutCancel(ctx))
	d.startTime = time.Now()

	if err := d.projection.Rebuild(ctx); err != nil {
		slog.Warn("Failed to rebuild run history projection", logfields.Error(err))
	}

	if err := d.httpServer.Start(); err != nil {
		return err
	}
	d.scheduler.Start()

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d)
		if err != nil {
			slog.Warn("Config watcher unavailable", logfields.Error(err))
		} else if err := watcher.Start(d.runCtx); err != nil {
			slog.Warn("Config watcher failed to start", logfields.Error(err))
		} else {
			d.watcher = watcher
		}
	}

	d.mu.RLock()
	name := d.workflow.Name
	port := d.workflow.Daemon.HTTPPort
	d.mu.RUnlock()
	slog.Info("Daemon started",
		slog.String("workflow", name),
		slog.Int("http_port", port))
	return nil
}

// Stop shuts the daemon down: no new runs are admitted, in-flight runs are
// cancelled, and all components drain within the given context.
func (d *Daemon) Stop(ctx context.Context) error {
	slog.Info("Stopping daemon")

	if d.watcher != nil {
		d.watcher.Stop()
	}
	if err := d.scheduler.Stop(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}

	if d.cancelAll != nil {
		d.cancelAll()
	}
	done := make(chan struct{})
	go func() {
		d.governor.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timed out waiting for in-flight runs")
	}

	if err := d.workers.StopAndWait(ctx); err != nil {
		slog.Warn("Timed out waiting for workers", logfields.Error(err))
	}
	if err := d.httpServer.Stop(ctx); err != nil {
		slog.Warn("HTTP shutdown failed", logfields.Error(err))
	}
	if closer, ok := d.invoker.(interface{ Close() }); ok {
		closer.Close()
	}
	if err := d.store.Close(); err != nil {
		slog.Warn("Event store close failed", logfields.Error(err))
	}

	slog.Info("Daemon stopped")
	return nil
}

// ingest stamps an event time if missing and runs it through HandleEvent.
// It is the EmitFunc handed to the scheduler and poller.
func (d *Daemon) ingest(ev trigger.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	d.HandleEvent(ev)
}

// HandleEvent matches an incoming event against the trigger rules and, on a
// match, admits a run through the governor. Returns the run ID and whether
// the event matched.
func (d *Daemon) HandleEvent(ev trigger.Event) (string, bool) {
	triggerID := uuid.NewString()

	d.mu.RLock()
	w := d.workflow
	matcher := d.matcher
	d.mu.RUnlock()

	if !matcher.Matches(ev) {
		d.recorder.IncEventIgnored(string(ev.Kind))
		slog.Debug("Event matched no trigger rule",
			logfields.TriggerID(triggerID),
			logfields.EventKind(string(ev.Kind)),
			logfields.Ref(ev.Ref))
		d.emitter.EmitEventIgnored(triggerID, string(ev.Kind), ev.Ref)
		return "", false
	}
	d.recorder.IncEventMatched(string(ev.Kind))

	run, err := engine.NewRun(w, ev)
	if err != nil {
		slog.Error("Failed to admit run",
			logfields.TriggerID(triggerID),
			logfields.EventKind(string(ev.Kind)),
			logfields.Error(err))
		return "", false
	}

	slog.Info("Event matched, submitting run",
		logfields.TriggerID(triggerID),
		logfields.RunID(run.ID),
		logfields.EventKind(string(ev.Kind)),
		logfields.Ref(ev.Ref),
		logfields.GroupKey(run.GroupKey))
	d.governor.Submit(run)
	return run.ID, true
}

// executeRun is the governor's start function.
func (d *Daemon) executeRun(run *engine.Run) {
	ctx := d.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	exec := d.executor
	d.mu.RUnlock()

	exec.Execute(ctx, run)
}

// ReloadConfig swaps in a newly validated workflow definition. In-flight
// runs keep the definition they were admitted with; schedule-rule, poller,
// and HTTP-port changes need a restart and are flagged in the log.
func (d *Daemon) ReloadConfig(newW *config.Workflow) error {
	matcher, err := trigger.NewMatcher(newW.On)
	if err != nil {
		return derrors.ConfigInvalid("on", err.Error())
	}

	d.mu.Lock()
	old := d.workflow
	d.workflow = newW
	d.matcher = matcher
	d.executor = buildExecutor(newW, d.invoker, d.recorder, d.emitter)
	d.mu.Unlock()

	if fmt.Sprintf("%v", old.On.Schedule) != fmt.Sprintf("%v", newW.On.Schedule) {
		slog.Warn("Schedule rule changes require a daemon restart to take effect")
	}
	if old.Daemon != newW.Daemon {
		slog.Warn("Daemon section changes require a daemon restart to take effect")
	}
	slog.Info("Workflow definition reloaded", slog.String("workflow", newW.Name))
	return nil
}

// Workflow returns the current workflow definition.
func (d *Daemon) Workflow() *config.Workflow {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.workflow
}
