package engine

// Listener observes run and job lifecycle transitions. The executor calls it
// from the bookkeeping goroutine, so implementations see transitions in
// order and must not block for long.
type Listener interface {
	RunStarted(run *Run)
	JobTransition(run *Run, job *Job)
	RunFinished(run *Run)
}

// NoopListener discards all notifications.
type NoopListener struct{}

func (NoopListener) RunStarted(*Run)          {}
func (NoopListener) JobTransition(*Run, *Job) {}
func (NoopListener) RunFinished(*Run)         {}
