package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsflow/internal/config"
	"git.home.luguber.info/inful/docsflow/internal/invoker"
)

// recordingStart records run start order and lets the test hold runs open.
type recordingStart struct {
	mu      sync.Mutex
	started []string
	release map[string]chan struct{}
}

func newRecordingStart() *recordingStart {
	return &recordingStart{release: make(map[string]chan struct{})}
}

func (s *recordingStart) hold(runID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.release[runID] = ch
	return ch
}

func (s *recordingStart) start(run *Run) {
	s.mu.Lock()
	s.started = append(s.started, run.ID)
	ch := s.release[run.ID]
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
	run.State = RunSucceeded
}

func (s *recordingStart) order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

func governorRun(t *testing.T, group string, cancelInProgress bool) *Run {
	t.Helper()
	w := &config.Workflow{
		Name:        "docs",
		Concurrency: config.ConcurrencyConfig{Group: group, CancelInProgress: cancelInProgress},
		Jobs:        map[string]config.JobConfig{"build": {Uses: "x"}},
	}
	run, err := NewRun(w, pushEvent("main"))
	require.NoError(t, err)
	return run
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestGovernorSingleActivePerGroup(t *testing.T) {
	starts := newRecordingStart()
	g := NewGovernor(starts.start, nil)

	a := governorRun(t, "docs", false)
	b := governorRun(t, "docs", false)
	gate := starts.hold(a.ID)

	g.Submit(a)
	waitFor(t, func() bool { return len(starts.order()) == 1 })
	g.Submit(b)

	require.Equal(t, 1, g.ActiveCount())
	require.Equal(t, 1, g.QueuedCount())
	require.Equal(t, []string{a.ID}, starts.order(), "b must not start while a is active")

	close(gate)
	g.Wait()
	require.Equal(t, []string{a.ID, b.ID}, starts.order())
	require.Equal(t, 0, g.QueuedCount())
}

func TestGovernorDistinctGroupsRunConcurrently(t *testing.T) {
	starts := newRecordingStart()
	g := NewGovernor(starts.start, nil)

	a := governorRun(t, "docs-main", false)
	b := governorRun(t, "docs-stable", false)
	gateA := starts.hold(a.ID)
	gateB := starts.hold(b.ID)

	g.Submit(a)
	g.Submit(b)
	waitFor(t, func() bool { return len(starts.order()) == 2 })
	require.Equal(t, 2, g.ActiveCount())

	close(gateA)
	close(gateB)
	g.Wait()
}

func TestGovernorFIFOPromotion(t *testing.T) {
	starts := newRecordingStart()
	g := NewGovernor(starts.start, nil)

	a := governorRun(t, "docs", false)
	b := governorRun(t, "docs", false)
	c := governorRun(t, "docs", false)
	gate := starts.hold(a.ID)

	g.Submit(a)
	waitFor(t, func() bool { return len(starts.order()) == 1 })
	g.Submit(b)
	g.Submit(c)
	require.Equal(t, 2, g.QueuedCount())

	close(gate)
	g.Wait()
	require.Equal(t, []string{a.ID, b.ID, c.ID}, starts.order())
}

func TestGovernorCancelInProgressSupersedesActive(t *testing.T) {
	// A is running a hanging job; B arrives on the same key with
	// cancel_in_progress. A's jobs must settle as cancelled before B's
	// first dispatch.
	a := governorRun(t, "docs", true)
	b := governorRun(t, "docs", true)

	inv := newRunAwareInvoker(a.ID)
	exec := NewExecutor(inv, time.Minute)
	g := NewGovernor(func(run *Run) {
		exec.Execute(context.Background(), run)
	}, nil)

	g.Submit(a)
	waitFor(t, func() bool {
		return contains(inv.dispatchedRuns(), a.ID)
	})

	g.Submit(b)
	g.Wait()

	require.Equal(t, RunCancelled, a.State)
	require.Equal(t, JobCancelled, a.Job("build").State)
	cancelled, reason := a.CancelStatus()
	require.True(t, cancelled)
	require.Contains(t, reason, "superseded by run "+b.ID)

	require.Equal(t, RunSucceeded, b.State)
	require.Equal(t, JobSucceeded, b.Job("build").State)
}

func TestGovernorCancelInProgressSupersedesQueued(t *testing.T) {
	// A holds the key; B is queued; C arrives with cancel_in_progress.
	// Both A and B are superseded, and B still settles with its jobs
	// marked cancelled rather than vanishing from the queue.
	a := governorRun(t, "docs", false)
	b := governorRun(t, "docs", false)
	c := governorRun(t, "docs", true)

	inv := newRunAwareInvoker(a.ID)
	exec := NewExecutor(inv, time.Minute)
	g := NewGovernor(func(run *Run) {
		exec.Execute(context.Background(), run)
	}, nil)

	g.Submit(a)
	waitFor(t, func() bool { return contains(inv.dispatchedRuns(), a.ID) })
	g.Submit(b)
	g.Submit(c)
	g.Wait()

	require.Equal(t, RunCancelled, a.State)
	require.Equal(t, RunCancelled, b.State)
	require.Equal(t, JobCancelled, b.Job("build").State)
	require.Equal(t, RunSucceeded, c.State)
}

func TestGovernorWithoutCancelInProgressWaits(t *testing.T) {
	starts := newRecordingStart()
	g := NewGovernor(starts.start, nil)

	a := governorRun(t, "docs", false)
	b := governorRun(t, "docs", false)
	gate := starts.hold(a.ID)

	g.Submit(a)
	waitFor(t, func() bool { return len(starts.order()) == 1 })
	g.Submit(b)

	cancelled, _ := a.CancelStatus()
	require.False(t, cancelled, "without cancel_in_progress the active run keeps going")

	close(gate)
	g.Wait()
	require.Equal(t, []string{a.ID, b.ID}, starts.order())
}

// runAwareInvoker hangs invocations belonging to selected runs until their
// context is cancelled, and succeeds everything else immediately.
type runAwareInvoker struct {
	mu    sync.Mutex
	runs  []string
	hangs map[string]bool
}

func newRunAwareInvoker(hangRunIDs ...string) *runAwareInvoker {
	hangs := make(map[string]bool, len(hangRunIDs))
	for _, id := range hangRunIDs {
		hangs[id] = true
	}
	return &runAwareInvoker{hangs: hangs}
}

func (i *runAwareInvoker) Invoke(ctx context.Context, req invoker.Request) (invoker.Result, error) {
	i.mu.Lock()
	i.runs = append(i.runs, req.RunID)
	hang := i.hangs[req.RunID]
	i.mu.Unlock()
	if hang {
		<-ctx.Done()
		return invoker.Result{}, ctx.Err()
	}
	return invoker.Result{Status: invoker.StatusSucceeded}, nil
}

func (i *runAwareInvoker) dispatchedRuns() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.runs...)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
