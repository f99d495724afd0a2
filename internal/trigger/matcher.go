package trigger

import (
	"fmt"
	"path"
	"time"

	"github.com/robfig/cron/v3"

	"git.home.luguber.info/inful/docsflow/internal/config"
)

// Matcher evaluates incoming events against the configured trigger rules.
// It is pure: matching has no side effects, and an unrecognized event kind
// never matches.
type Matcher struct {
	push      []string
	tags      []string
	schedules []cron.Schedule
}

// NewMatcher compiles the trigger rules. Cron expressions are parsed once
// here; Load has already validated them, so errors indicate a programming
// mistake upstream.
func NewMatcher(tc config.TriggerConfig) (*Matcher, error) {
	m := &Matcher{}
	if tc.Push != nil {
		m.push = append(m.push, tc.Push.Branches...)
	}
	if tc.Tag != nil {
		m.tags = append(m.tags, tc.Tag.Tags...)
	}
	for _, s := range tc.Schedule {
		sched, err := cron.ParseStandard(s.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse cron %q: %w", s.Cron, err)
		}
		m.schedules = append(m.schedules, sched)
	}
	return m, nil
}

// Matches reports whether the event satisfies at least one configured rule
// for its kind.
func (m *Matcher) Matches(ev Event) bool {
	switch ev.Kind {
	case EventPush:
		return matchRef(m.push, ev.Ref)
	case EventTag:
		return matchRef(m.tags, ev.Ref)
	case EventSchedule:
		return m.matchSchedule(ev.Time)
	default:
		return false
	}
}

// matchRef glob-matches a ref short name against the configured patterns.
// Malformed patterns never match; they are rejected at config load.
func matchRef(patterns []string, ref string) bool {
	if ref == "" {
		return false
	}
	for _, p := range patterns {
		if ok, err := path.Match(p, ref); err == nil && ok {
			return true
		}
	}
	return false
}

// matchSchedule reports whether the event minute is a firing time for any
// configured cron expression. Cron resolution is one minute, so the event
// timestamp is truncated before matching.
func (m *Matcher) matchSchedule(t time.Time) bool {
	minute := t.Truncate(time.Minute)
	for _, sched := range m.schedules {
		if sched.Next(minute.Add(-time.Second)).Equal(minute) {
			return true
		}
	}
	return false
}
