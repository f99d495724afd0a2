package config

import (
	"time"

	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
)

// DaemonConfig configures the long-running service. All fields have defaults
// and the whole section may be omitted for one-shot dispatch use.
type DaemonConfig struct {
	HTTPPort    int        `yaml:"http_port,omitempty"`
	Database    string     `yaml:"database,omitempty"` // sqlite path, ":memory:" allowed
	HistorySize int        `yaml:"history_size,omitempty"`
	Poll        PollConfig `yaml:"poll,omitempty"`
}

// PollConfig configures the git ref poller event source. When Remote is
// empty the daemon relies on webhook ingestion and schedule rules alone.
type PollConfig struct {
	Remote   string `yaml:"remote,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

func (d *DaemonConfig) applyDefaults() {
	if d.HTTPPort == 0 {
		d.HTTPPort = 8477
	}
	if d.Database == "" {
		d.Database = "docsflow.db"
	}
	if d.HistorySize == 0 {
		d.HistorySize = 100
	}
	if d.Poll.Interval == "" {
		d.Poll.Interval = "1m"
	}
}

func (d *DaemonConfig) validate() error {
	if d.HTTPPort < 0 || d.HTTPPort > 65535 {
		return derrors.ConfigInvalid("daemon.http_port", "port out of range")
	}
	if dur, err := time.ParseDuration(d.Poll.Interval); err != nil || dur <= 0 {
		return derrors.ConfigInvalid("daemon.poll.interval", "interval must be a positive duration").
			WithContext("interval", d.Poll.Interval)
	}
	return nil
}

// PollInterval returns the parsed poll interval. Call after Validate.
func (d *DaemonConfig) PollInterval() time.Duration {
	dur, err := time.ParseDuration(d.Poll.Interval)
	if err != nil {
		return time.Minute
	}
	return dur
}
