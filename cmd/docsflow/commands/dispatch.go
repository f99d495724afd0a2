package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docsflow/internal/config"
	"git.home.luguber.info/inful/docsflow/internal/engine"
	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
	"git.home.luguber.info/inful/docsflow/internal/invoker"
	"git.home.luguber.info/inful/docsflow/internal/retry"
	"git.home.luguber.info/inful/docsflow/internal/trigger"
)

// DispatchCmd implements the 'dispatch' command: one-shot execution of a
// single synthetic event through the matcher and the job graph.
type DispatchCmd struct {
	Kind       string `short:"k" help:"Event kind: push, tag, or schedule" default:"push"`
	Ref        string `short:"r" help:"Branch or tag short name" default:"main"`
	Repository string `help:"Repository identity (owner/name); defaults to the workflow context"`
	Actor      string `help:"Actor attached to the event"`
	WorkDir    string `short:"w" help:"Working directory for local invocations" default:"."`
	Force      bool   `short:"f" help:"Skip trigger matching and run unconditionally"`
}

func (d *DispatchCmd) Run(_ *Global, root *CLI) error {
	w, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	ev := trigger.Event{
		Kind:       trigger.EventKind(d.Kind),
		Ref:        d.Ref,
		Repository: d.Repository,
		Actor:      d.Actor,
		Time:       time.Now(),
	}
	switch ev.Kind {
	case trigger.EventPush, trigger.EventTag, trigger.EventSchedule:
	default:
		return derrors.ValidationFailed("kind", "event kind must be push, tag, or schedule")
	}

	if !d.Force {
		matcher, err := trigger.NewMatcher(w.On)
		if err != nil {
			return derrors.ConfigInvalid("on", err.Error())
		}
		if !matcher.Matches(ev) {
			return derrors.ValidationFailed("event", "event matched no trigger rule (use --force to bypass)")
		}
	}

	run, err := engine.NewRun(w, ev)
	if err != nil {
		return err
	}

	inv, closeInv, err := dispatchInvoker(w, d.WorkDir)
	if err != nil {
		return err
	}
	defer closeInv()

	timeout, err := time.ParseDuration(w.Invoker.Timeout)
	if err != nil {
		timeout = 30 * time.Minute
	}
	exec := engine.NewExecutor(inv, timeout,
		engine.WithRetryPolicy(retry.FromConfig(w.Invoker.Retry)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	state := exec.Execute(ctx, run)
	printRunReport(run)

	switch state {
	case engine.RunSucceeded:
		return nil
	case engine.RunCancelled:
		_, reason := run.CancelStatus()
		return derrors.CancellationError(reason)
	default:
		return derrors.InvocationFailure(run.Workflow.Name, fmt.Errorf("run %s failed", run.ID))
	}
}

// dispatchInvoker builds the configured invoker for a one-shot run.
func dispatchInvoker(w *config.Workflow, workDir string) (invoker.Invoker, func(), error) {
	if w.Invoker.Kind == config.InvokerKindNATS {
		inv, err := invoker.NewNATS(w.Invoker.URL, w.Invoker.Subject)
		if err != nil {
			return nil, nil, derrors.ConfigInvalid("invoker", err.Error())
		}
		return inv, inv.Close, nil
	}
	return invoker.NewLocal(workDir), func() {}, nil
}

// printRunReport prints the per-job outcome table.
func printRunReport(run *engine.Run) {
	fmt.Printf("run %s: %s\n", run.ID, run.State)
	for _, job := range run.Jobs {
		line := fmt.Sprintf("  %-20s %s", job.Name, job.State)
		if job.Reason != "" {
			line += "  (" + job.Reason + ")"
		}
		if d := job.Duration(); d > 0 {
			line += fmt.Sprintf("  %s", d.Round(time.Millisecond))
		}
		fmt.Println(line)
	}
}
