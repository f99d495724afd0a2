package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsflow/internal/config"
)

func newTestMatcher(t *testing.T, tc config.TriggerConfig) *Matcher {
	t.Helper()
	m, err := NewMatcher(tc)
	require.NoError(t, err)
	return m
}

func TestMatchesPushGlob(t *testing.T) {
	m := newTestMatcher(t, config.TriggerConfig{
		Push: &config.PushRule{Branches: []string{"main", "stable-*"}},
	})

	tests := []struct {
		ref  string
		want bool
	}{
		{"main", true},
		{"stable-2.5", true},
		{"stable-1.0.0", true},
		{"feature-x", false},
		{"mainline", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got := m.Matches(Event{Kind: EventPush, Ref: tt.ref, Time: time.Now()})
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMatchesTagGlob(t *testing.T) {
	m := newTestMatcher(t, config.TriggerConfig{
		Tag: &config.TagRule{Tags: []string{"v*"}},
	})

	require.True(t, m.Matches(Event{Kind: EventTag, Ref: "v2.5.0"}))
	require.False(t, m.Matches(Event{Kind: EventTag, Ref: "release-1"}))
	// Tag patterns never apply to pushes.
	require.False(t, m.Matches(Event{Kind: EventPush, Ref: "v2.5.0"}))
}

func TestMatchesSchedule(t *testing.T) {
	m := newTestMatcher(t, config.TriggerConfig{
		Schedule: []config.ScheduleRule{{Cron: "0 13 * * *"}},
	})

	at := func(hour, minute int) time.Time {
		return time.Date(2026, 8, 25, hour, minute, 30, 0, time.UTC)
	}

	require.True(t, m.Matches(Event{Kind: EventSchedule, Time: at(13, 0)}))
	require.False(t, m.Matches(Event{Kind: EventSchedule, Time: at(13, 1)}))
	require.False(t, m.Matches(Event{Kind: EventSchedule, Time: at(12, 0)}))
}

func TestUnknownKindFailsClosed(t *testing.T) {
	m := newTestMatcher(t, config.TriggerConfig{
		Push: &config.PushRule{Branches: []string{"*"}},
	})

	require.False(t, m.Matches(Event{Kind: "deployment", Ref: "main"}))
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	m := newTestMatcher(t, config.TriggerConfig{
		Push: &config.PushRule{Branches: []string{"main"}},
	})

	require.False(t, m.Matches(Event{Kind: EventTag, Ref: "main"}))
	require.False(t, m.Matches(Event{Kind: EventSchedule, Time: time.Now()}))
}
