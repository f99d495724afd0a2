package engine

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docsflow/internal/config"
	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
	"git.home.luguber.info/inful/docsflow/internal/guard"
	"git.home.luguber.info/inful/docsflow/internal/trigger"
)

// RunState is the aggregate state of a run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunCancelled:
		return true
	default:
		return false
	}
}

// Run is one complete execution instance triggered by a single matched event.
// It owns its job arena exclusively; jobs reference dependencies by index
// within the same run only.
type Run struct {
	ID       string
	Workflow *config.Workflow
	Event    trigger.Event
	GroupKey string

	State       RunState
	Jobs        []*Job
	CreatedAt   time.Time
	CompletedAt time.Time

	index map[string]int

	mu           sync.Mutex
	cancelled    bool
	cancelReason string
	cancelFn     context.CancelFunc
}

// NewRun admits a run for the given workflow and event. Guard expressions
// are compiled and the dependency graph is cycle-checked here; a run that
// fails admission never dispatches any job.
func NewRun(w *config.Workflow, ev trigger.Event) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Workflow:  w,
		Event:     ev,
		State:     RunPending,
		CreatedAt: time.Now(),
		index:     make(map[string]int, len(w.Jobs)),
	}

	// Deterministic arena order keeps dispatch and reporting stable.
	names := make([]string, 0, len(w.Jobs))
	for name := range w.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		jc := w.Jobs[name]
		job := &Job{Name: name, Config: jc, State: JobPending}
		if jc.Guard != "" {
			g, err := guard.Compile(jc.Guard)
			if err != nil {
				return nil, derrors.ConfigInvalid("jobs."+name+".guard", err.Error())
			}
			job.Guard = g
		}
		run.Jobs = append(run.Jobs, job)
		run.index[name] = i
	}

	for i, job := range run.Jobs {
		for _, dep := range job.Config.Needs {
			di, ok := run.index[dep]
			if !ok {
				return nil, derrors.ConfigInvalid("jobs."+job.Name+".needs", "unknown dependency").
					WithContext("dependency", dep)
			}
			job.deps = append(job.deps, di)
			run.Jobs[di].dependents = append(run.Jobs[di].dependents, i)
		}
	}

	if cyclic := run.findCycle(); len(cyclic) > 0 {
		return nil, derrors.CycleError(cyclic)
	}

	run.GroupKey = run.expand(w.Concurrency.Group)
	return run, nil
}

// findCycle runs Kahn's algorithm over the arena and returns the names of
// jobs stuck on a cycle, empty when the graph is a valid DAG.
func (r *Run) findCycle() []string {
	inDegree := make([]int, len(r.Jobs))
	for _, job := range r.Jobs {
		for range job.deps {
			inDegree[r.index[job.Name]]++
		}
	}

	var queue []int
	for i, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}

	processed := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed++
		for _, di := range r.Jobs[current].dependents {
			inDegree[di]--
			if inDegree[di] == 0 {
				queue = append(queue, di)
			}
		}
	}

	if processed == len(r.Jobs) {
		return nil
	}
	var cyclic []string
	for i, deg := range inDegree {
		if deg > 0 {
			cyclic = append(cyclic, r.Jobs[i].Name)
		}
	}
	sort.Strings(cyclic)
	return cyclic
}

// Job returns the job with the given name, nil if unknown.
func (r *Run) Job(name string) *Job {
	i, ok := r.index[name]
	if !ok {
		return nil
	}
	return r.Jobs[i]
}

// CancelInProgress reports the workflow's supersede policy for this run's group.
func (r *Run) CancelInProgress() bool {
	return r.Workflow.Concurrency.CancelInProgress
}

// Cancel marks the run cancelled and signals its executing context, if bound.
// Safe to call before, during, and after execution; the first reason wins.
func (r *Run) Cancel(reason string) {
	r.mu.Lock()
	if !r.cancelled {
		r.cancelled = true
		r.cancelReason = reason
	}
	fn := r.cancelFn
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// CancelStatus returns whether the run was cancelled, and why.
func (r *Run) CancelStatus() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled, r.cancelReason
}

// bindCancel attaches the executor's cancel function. If the run was already
// cancelled while queued, the signal fires immediately.
func (r *Run) bindCancel(fn context.CancelFunc) {
	r.mu.Lock()
	r.cancelFn = fn
	fireNow := r.cancelled
	r.mu.Unlock()
	if fireNow {
		fn()
	}
}

// allTerminal reports whether every job reached a terminal state.
func (r *Run) allTerminal() bool {
	for _, job := range r.Jobs {
		if !job.State.Terminal() {
			return false
		}
	}
	return true
}

// repository returns the repository identity for guard contexts: the event's
// repository when present, otherwise the workflow's static context entry.
func (r *Run) repository() string {
	if r.Event.Repository != "" {
		return r.Event.Repository
	}
	return r.Workflow.Context["repository"]
}

// outputsSnapshot collects outputs of all succeeded jobs, keyed by job name.
// Only called from the bookkeeping goroutine, so no locking is needed.
func (r *Run) outputsSnapshot() map[string]map[string]string {
	snap := make(map[string]map[string]string)
	for _, job := range r.Jobs {
		if job.State == JobSucceeded {
			snap[job.Name] = job.Outputs
		}
	}
	return snap
}

// tokenPattern matches ${...} substitution tokens in key templates and
// input templates.
var tokenPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

// expand substitutes run tokens into a template. Unknown tokens resolve to
// the empty string, mirroring how shell-style expansion behaves in CI
// configuration.
func (r *Run) expand(tmpl string) string {
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		return r.resolveToken(m[2 : len(m)-1])
	})
}

func (r *Run) resolveToken(token string) string {
	parts := strings.SplitN(token, ".", 3)
	switch parts[0] {
	case "workflow":
		return r.Workflow.Name
	case "repository":
		return r.repository()
	case "run":
		if len(parts) == 2 && parts[1] == "id" {
			return r.ID
		}
	case "event":
		if len(parts) < 2 {
			return ""
		}
		switch parts[1] {
		case "ref":
			return r.Event.Ref
		case "kind":
			return string(r.Event.Kind)
		case "repository":
			return r.Event.Repository
		case "actor":
			return r.Event.Actor
		}
	case "context":
		if len(parts) == 2 {
			return r.Workflow.Context[parts[1]]
		}
	case "needs":
		if len(parts) == 3 {
			if job := r.Job(parts[1]); job != nil && job.State == JobSucceeded {
				return job.Outputs[parts[2]]
			}
		}
	}
	return ""
}
