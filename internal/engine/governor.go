package engine

import (
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/docsflow/internal/logfields"
	"git.home.luguber.info/inful/docsflow/internal/metrics"
)

// StartFunc executes an admitted run to completion. The governor calls it on
// a dedicated goroutine and releases the run's group when it returns.
type StartFunc func(run *Run)

// Governor enforces at most one non-terminal run per concurrency group key.
// Deferred runs wait FIFO per key; with cancel_in_progress a new run
// supersedes both the active run and anything already queued for the key.
// The registry is the only cross-run shared state, and every mutation
// happens under one mutex.
type Governor struct {
	mu       sync.Mutex
	active   map[string]*Run
	waiting  map[string][]*Run
	start    StartFunc
	recorder metrics.Recorder

	wg sync.WaitGroup
}

// NewGovernor creates a governor dispatching admitted runs to start.
func NewGovernor(start StartFunc, recorder metrics.Recorder) *Governor {
	if start == nil {
		panic("NewGovernor: start function is required")
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Governor{
		active:   make(map[string]*Run),
		waiting:  make(map[string][]*Run),
		start:    start,
		recorder: recorder,
	}
}

// Submit admits a run or defers it behind the active run of its group.
// Superseded runs are cancelled before the new run can ever dispatch a job:
// the new run stays queued until the active one reaches a terminal state.
func (g *Governor) Submit(run *Run) {
	g.mu.Lock()
	key := run.GroupKey

	current, busy := g.active[key]
	if !busy {
		g.active[key] = run
		g.updateGaugesLocked()
		g.mu.Unlock()
		g.launch(run)
		return
	}

	if run.CancelInProgress() {
		for _, queued := range g.waiting[key] {
			queued.Cancel("superseded by run " + run.ID)
			g.recorder.IncRunsSuperseded()
		}
		current.Cancel("superseded by run " + run.ID)
		g.recorder.IncRunsSuperseded()
		slog.Info("Superseding in-flight run",
			logfields.GroupKey(key),
			logfields.RunID(current.ID),
			slog.String("superseded_by", run.ID))
	} else {
		slog.Info("Deferring run behind active group",
			logfields.GroupKey(key),
			logfields.RunID(run.ID))
	}

	g.waiting[key] = append(g.waiting[key], run)
	g.recorder.IncRunsDeferred()
	g.updateGaugesLocked()
	g.mu.Unlock()
}

// launch executes a run on its own goroutine and releases its group slot
// when the run reaches a terminal state.
func (g *Governor) launch(run *Run) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.start(run)
		g.release(run)
	}()
}

// release frees the group slot and promotes the next deferred run, FIFO.
// Cancelled queued runs are still launched so their jobs settle as cancelled
// with full bookkeeping rather than vanishing.
func (g *Governor) release(run *Run) {
	g.mu.Lock()
	key := run.GroupKey
	if g.active[key] == run {
		delete(g.active, key)
	}

	var next *Run
	if queue := g.waiting[key]; len(queue) > 0 {
		next = queue[0]
		g.waiting[key] = queue[1:]
		if len(g.waiting[key]) == 0 {
			delete(g.waiting, key)
		}
		g.active[key] = next
	}
	g.updateGaugesLocked()
	g.mu.Unlock()

	if next != nil {
		g.launch(next)
	}
}

// ActiveCount returns the number of groups with a non-terminal run.
func (g *Governor) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// QueuedCount returns the number of deferred runs across all groups.
func (g *Governor) QueuedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, queue := range g.waiting {
		total += len(queue)
	}
	return total
}

// Wait blocks until all launched runs have finished. Used on shutdown.
func (g *Governor) Wait() {
	g.wg.Wait()
}

func (g *Governor) updateGaugesLocked() {
	g.recorder.SetActiveRuns(len(g.active))
	queued := 0
	for _, queue := range g.waiting {
		queued += len(queue)
	}
	g.recorder.SetQueuedRuns(queued)
}
