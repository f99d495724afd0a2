package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docsflow/internal/config"
	"git.home.luguber.info/inful/docsflow/internal/logfields"
	"git.home.luguber.info/inful/docsflow/internal/trigger"
)

// Scheduler wraps gocron for the daemon's periodic work: configured schedule
// rules synthesize schedule events at their cron firing times, and the git
// poller sweeps at a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	emit      trigger.EmitFunc
}

// NewScheduler creates a scheduler delivering synthesized events to emit.
func NewScheduler(emit trigger.EmitFunc) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, emit: emit}, nil
}

// AddScheduleRules registers one cron job per schedule rule. Each firing
// synthesizes a schedule event stamped with the firing time, which the
// matcher then checks against the full rule set.
func (s *Scheduler) AddScheduleRules(rules []config.ScheduleRule, repository string) error {
	for _, rule := range rules {
		expr := rule.Cron
		_, err := s.scheduler.NewJob(
			gocron.CronJob(expr, false),
			gocron.NewTask(func() {
				slog.Info("Schedule rule fired", slog.String("cron", expr))
				s.emit(trigger.Event{
					Kind:       trigger.EventSchedule,
					Repository: repository,
					Time:       time.Now(),
				})
			}),
			gocron.WithName(fmt.Sprintf("schedule %s", expr)),
		)
		if err != nil {
			return fmt.Errorf("register schedule rule %q: %w", expr, err)
		}
	}
	return nil
}

// AddPoller registers a periodic sweep of the git ref poller.
func (s *Scheduler) AddPoller(poller *trigger.GitPoller, interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := poller.Poll(ctx); err != nil {
				slog.Warn("Git poll sweep failed", logfields.Error(err))
			}
		}),
		gocron.WithName("git-poll"),
	)
	if err != nil {
		return fmt.Errorf("register git poll job: %w", err)
	}
	return nil
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
