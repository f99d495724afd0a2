package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
	"git.home.luguber.info/inful/docsflow/internal/guard"
	"git.home.luguber.info/inful/docsflow/internal/invoker"
	"git.home.luguber.info/inful/docsflow/internal/logfields"
	"git.home.luguber.info/inful/docsflow/internal/metrics"
	"git.home.luguber.info/inful/docsflow/internal/retry"
)

// Executor walks a run's job graph: jobs whose dependencies are all terminal
// are dispatched concurrently to the external invoker, while all state
// bookkeeping stays on a single goroutine. Output visibility happens-before
// dependent dispatch because completions are applied on that same goroutine
// before the next dispatch sweep.
type Executor struct {
	invoker  invoker.Invoker
	timeout  time.Duration
	retry    retry.Policy
	recorder metrics.Recorder
	listener Listener
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithListener injects a lifecycle listener.
func WithListener(l Listener) Option {
	return func(e *Executor) { e.listener = l }
}

// WithRetryPolicy overrides the invocation retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Executor) { e.retry = p }
}

// NewExecutor creates an executor. timeout is the per-invocation ceiling.
func NewExecutor(inv invoker.Invoker, timeout time.Duration, opts ...Option) *Executor {
	if inv == nil {
		panic("NewExecutor: invoker is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	e := &Executor{
		invoker:  inv,
		timeout:  timeout,
		retry:    retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
		listener: NoopListener{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// completion carries one finished invocation back to the bookkeeping loop.
type completion struct {
	idx    int
	result invoker.Result
	err    error
}

// Execute runs the job graph to completion and returns the run's terminal
// state. The passed context bounds the whole run; cancellation is
// cooperative and running invocations receive the signal via their contexts.
func (e *Executor) Execute(ctx context.Context, run *Run) RunState {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run.bindCancel(cancel)

	run.State = RunRunning
	e.listener.RunStarted(run)
	slog.Info("Run started",
		logfields.RunID(run.ID),
		logfields.EventKind(string(run.Event.Kind)),
		logfields.Ref(run.Event.Ref),
		logfields.GroupKey(run.GroupKey))

	completions := make(chan completion)
	running := 0

	for {
		if cancelled, reason := run.CancelStatus(); cancelled {
			e.cancelRemaining(run, reason)
		} else {
			running += e.dispatchReady(runCtx, run, completions)
		}

		if running == 0 {
			if run.allTerminal() {
				break
			}
			// No invocation in flight and nothing dispatchable: the next
			// sweep resolves remaining jobs to skipped/cancelled.
			continue
		}

		if cancelled, _ := run.CancelStatus(); cancelled {
			c := <-completions
			running--
			e.applyCompletion(run, c)
			continue
		}

		select {
		case c := <-completions:
			running--
			e.applyCompletion(run, c)
		case <-runCtx.Done():
			run.Cancel("run context cancelled")
		}
	}

	return e.finalize(run)
}

// dispatchReady resolves every pending job whose dependencies are all
// terminal: short-circuit, guard-skip, or dispatch. Returns the number of
// invocations started.
func (e *Executor) dispatchReady(ctx context.Context, run *Run, completions chan<- completion) int {
	started := 0
	for idx, job := range run.Jobs {
		if job.State != JobPending || !e.depsTerminal(run, job) {
			continue
		}

		if name, state, short := e.shortCircuit(run, job); short {
			// Dependency-failure short-circuit passes through blocked so the
			// transition is observable before the job settles as skipped.
			e.transition(run, job, JobBlocked, "")
			e.transition(run, job, JobSkipped, fmt.Sprintf("dependency %s %s", name, state))
			continue
		}

		if job.Guard != nil {
			ok, err := job.Guard.Eval(e.guardContext(run))
			if err != nil {
				e.transition(run, job, JobFailed, derrors.GuardEvaluationError(job.Name, err).Error())
				continue
			}
			if !ok {
				e.transition(run, job, JobSkipped, "guard evaluated false")
				continue
			}
		}

		req := e.buildRequest(run, job)
		job.StartedAt = time.Now()
		e.transition(run, job, JobRunning, "")
		go e.invokeJob(ctx, idx, req, completions)
		started++
	}
	return started
}

// depsTerminal reports whether every dependency reached a terminal state.
func (e *Executor) depsTerminal(run *Run, job *Job) bool {
	for _, di := range job.deps {
		if !run.Jobs[di].State.Terminal() {
			return false
		}
	}
	return true
}

// shortCircuit decides whether a ready job must be skipped because of its
// dependencies' terminal states. Skipped dependencies satisfy dependents
// unless the job requires strict success; failed or cancelled dependencies
// short-circuit unless the job is marked always_run.
func (e *Executor) shortCircuit(run *Run, job *Job) (depName string, depState JobState, short bool) {
	if job.Config.AlwaysRun {
		return "", "", false
	}
	for _, di := range job.deps {
		dep := run.Jobs[di]
		switch dep.State {
		case JobFailed, JobCancelled:
			return dep.Name, dep.State, true
		case JobSkipped:
			if job.Config.RequireSuccess {
				return dep.Name, dep.State, true
			}
		}
	}
	return "", "", false
}

// guardContext snapshots the read-only context guards evaluate against.
func (e *Executor) guardContext(run *Run) guard.Context {
	return guard.Context{
		Repository: run.repository(),
		Ref:        run.Event.Ref,
		Actor:      run.Event.Actor,
		EventKind:  string(run.Event.Kind),
		Vars:       run.Workflow.Context,
		Outputs:    run.outputsSnapshot(),
	}
}

// buildRequest resolves input templates and secret handles for dispatch.
// Upstream outputs are already visible here: dependencies are terminal and
// their completions were applied on this goroutine.
func (e *Executor) buildRequest(run *Run, job *Job) invoker.Request {
	var inputs map[string]string
	if len(job.Config.Inputs) > 0 {
		inputs = make(map[string]string, len(job.Config.Inputs))
		for name, tmpl := range job.Config.Inputs {
			inputs[name] = run.expand(tmpl)
		}
	}
	secrets := make([]invoker.SecretHandle, 0, len(job.Config.Secrets))
	for _, name := range job.Config.Secrets {
		secrets = append(secrets, invoker.NewSecretHandle(name))
	}
	return invoker.Request{
		RunID:       run.ID,
		Job:         job.Name,
		Target:      job.Config.Uses,
		Inputs:      inputs,
		Params:      job.Config.Params,
		Permissions: job.Config.Permissions,
		Secrets:     secrets,
	}
}

// invokeJob drives one invocation, retrying transient failures per policy.
// Timeouts are not retried: the ceiling already bounded one full attempt.
func (e *Executor) invokeJob(ctx context.Context, idx int, req invoker.Request, completions chan<- completion) {
	attempts := 0
	for {
		res, err := e.invokeOnce(ctx, req)
		if err == nil || !derrors.IsRetryable(err) || attempts >= e.retry.MaxRetries || ctx.Err() != nil {
			completions <- completion{idx: idx, result: res, err: err}
			return
		}
		attempts++
		e.recorder.IncInvocationRetry(req.Job)
		slog.Warn("Retrying invocation after transient failure",
			logfields.RunID(req.RunID),
			logfields.JobName(req.Job),
			slog.Int("attempt", attempts),
			logfields.Error(err))
		select {
		case <-time.After(e.retry.Delay(attempts)):
		case <-ctx.Done():
			completions <- completion{idx: idx, err: ctx.Err()}
			return
		}
	}
}

func (e *Executor) invokeOnce(ctx context.Context, req invoker.Request) (invoker.Result, error) {
	ictx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.invoker.Invoke(ictx, req)
}

// applyCompletion settles one finished invocation into job state.
func (e *Executor) applyCompletion(run *Run, c completion) {
	job := run.Jobs[c.idx]
	job.CompletedAt = time.Now()
	e.recorder.ObserveJobDuration(job.Name, job.Duration())

	if c.err != nil {
		switch {
		case errors.Is(c.err, context.DeadlineExceeded):
			e.transition(run, job, JobFailed, derrors.TimeoutError(job.Name, e.timeout.String()).Error())
		case errors.Is(c.err, context.Canceled):
			_, reason := run.CancelStatus()
			if reason == "" {
				reason = "run cancelled"
			}
			e.transition(run, job, JobCancelled, reason)
		default:
			e.transition(run, job, JobFailed, derrors.InvocationFailure(job.Name, c.err).Error())
		}
		return
	}

	switch c.result.Status {
	case invoker.StatusSucceeded:
		job.Outputs = c.result.Outputs
		e.transition(run, job, JobSucceeded, "")
	case invoker.StatusCancelled:
		e.transition(run, job, JobCancelled, c.result.Message)
	default:
		reason := c.result.Message
		if reason == "" {
			reason = "external invoker reported failure"
		}
		e.transition(run, job, JobFailed, reason)
	}
}

// cancelRemaining moves every pending/blocked job straight to cancelled.
// Running invocations are left to drain; their contexts already carry the
// cancellation signal.
func (e *Executor) cancelRemaining(run *Run, reason string) {
	if reason == "" {
		reason = "run cancelled"
	}
	for _, job := range run.Jobs {
		if job.State == JobPending || job.State == JobBlocked {
			e.transition(run, job, JobCancelled, reason)
		}
	}
}

// transition applies one job state change with logging, metrics, and
// listener notification. Only ever called from the bookkeeping goroutine.
func (e *Executor) transition(run *Run, job *Job, state JobState, reason string) {
	job.State = state
	job.Reason = reason
	if state.Terminal() && job.CompletedAt.IsZero() {
		job.CompletedAt = time.Now()
	}
	if state.Terminal() {
		e.recorder.IncJobResult(job.Name, string(state))
	}

	attrs := []slog.Attr{
		logfields.RunID(run.ID),
		logfields.JobName(job.Name),
		logfields.JobState(string(state)),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	level := slog.LevelInfo
	if state == JobFailed {
		level = slog.LevelWarn
	}
	slog.LogAttrs(context.Background(), level, "Job state changed", attrs...)

	e.listener.JobTransition(run, job)
}

// finalize aggregates job outcomes into the run's terminal state: any failed
// job fails the run; a run cancel or every job cancelled yields cancelled;
// otherwise succeeded. A single worker-reported cancellation among healthy
// siblings does not demote the run.
func (e *Executor) finalize(run *Run) RunState {
	anyFailed := false
	cancelledJobs := 0
	for _, job := range run.Jobs {
		switch job.State {
		case JobFailed:
			anyFailed = true
		case JobCancelled:
			cancelledJobs++
		}
	}
	cancelled, _ := run.CancelStatus()
	allCancelled := len(run.Jobs) > 0 && cancelledJobs == len(run.Jobs)

	switch {
	case anyFailed:
		run.State = RunFailed
	case cancelled || allCancelled:
		run.State = RunCancelled
	default:
		run.State = RunSucceeded
	}
	run.CompletedAt = time.Now()

	duration := run.CompletedAt.Sub(run.CreatedAt)
	e.recorder.ObserveRunDuration(duration)
	e.recorder.IncRunOutcome(string(run.State))
	e.listener.RunFinished(run)

	slog.Info("Run finished",
		logfields.RunID(run.ID),
		logfields.RunState(string(run.State)),
		logfields.DurationMS(float64(duration.Milliseconds())))
	return run.State
}
