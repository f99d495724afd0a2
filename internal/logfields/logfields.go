package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyJobName    = "job_name"
	KeyJobState   = "job_state"
	KeyRunState   = "run_state"
	KeyGroupKey   = "group_key"
	KeyEventKind  = "event_kind"
	KeyRef        = "ref"
	KeyRepo       = "repository"
	KeyDurationMS = "duration_ms"
	KeyTriggerID  = "trigger_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func JobName(n string) slog.Attr      { return slog.String(KeyJobName, n) }
func JobState(s string) slog.Attr     { return slog.String(KeyJobState, s) }
func RunState(s string) slog.Attr     { return slog.String(KeyRunState, s) }
func GroupKey(k string) slog.Attr     { return slog.String(KeyGroupKey, k) }
func EventKind(k string) slog.Attr    { return slog.String(KeyEventKind, k) }
func Ref(r string) slog.Attr          { return slog.String(KeyRef, r) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func TriggerID(id string) slog.Attr   { return slog.String(KeyTriggerID, id) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
