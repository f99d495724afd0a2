// Package config loads and validates the declarative workflow definition:
// trigger rules, concurrency group, job graph, and invoker settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
)

// Workflow is the root of the workflow definition. It is immutable after Load.
type Workflow struct {
	Name        string               `yaml:"name"`
	On          TriggerConfig        `yaml:"on"`
	Concurrency ConcurrencyConfig    `yaml:"concurrency"`
	Context     map[string]string    `yaml:"context,omitempty"`
	Invoker     InvokerConfig        `yaml:"invoker"`
	Daemon      DaemonConfig         `yaml:"daemon,omitempty"`
	Jobs        map[string]JobConfig `yaml:"jobs"`
}

// TriggerConfig declares which repository events start a run.
type TriggerConfig struct {
	Push     *PushRule      `yaml:"push,omitempty"`
	Tag      *TagRule       `yaml:"tag,omitempty"`
	Schedule []ScheduleRule `yaml:"schedule,omitempty"`
}

// PushRule matches branch pushes by glob pattern (e.g. "stable-*").
type PushRule struct {
	Branches []string `yaml:"branches"`
}

// TagRule matches tag creation by glob pattern.
type TagRule struct {
	Tags []string `yaml:"tags"`
}

// ScheduleRule matches on a standard five-field cron expression.
type ScheduleRule struct {
	Cron string `yaml:"cron"`
}

// ConcurrencyConfig limits non-terminal runs to one per group key.
// The group template may embed run tokens such as ${event.ref}.
type ConcurrencyConfig struct {
	Group            string `yaml:"group"`
	CancelInProgress bool   `yaml:"cancel_in_progress"`
}

// InvokerConfig selects and configures the external job invoker.
type InvokerConfig struct {
	Kind    string      `yaml:"kind"`              // "local" or "nats"
	URL     string      `yaml:"url,omitempty"`     // NATS server URL
	Subject string      `yaml:"subject,omitempty"` // NATS request subject
	Timeout string      `yaml:"timeout"`           // per-invocation ceiling
	Retry   RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig holds backoff settings for retryable invocation failures.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// JobConfig declares a single job within the workflow graph.
type JobConfig struct {
	Uses           string            `yaml:"uses"`                      // external invoker target reference
	Needs          []string          `yaml:"needs,omitempty"`           // dependency job names
	Guard          string            `yaml:"guard,omitempty"`           // boolean expression over run context
	RequireSuccess bool              `yaml:"require_success,omitempty"` // dependencies must be succeeded, skip does not satisfy
	AlwaysRun      bool              `yaml:"always_run,omitempty"`      // dispatch even when a dependency failed or was cancelled
	Inputs         map[string]string `yaml:"inputs,omitempty"`          // input parameter templates
	Outputs        []string          `yaml:"outputs,omitempty"`         // declared output names
	Permissions    map[string]string `yaml:"permissions,omitempty"`     // permission scope forwarded to the invoker
	Secrets        []string          `yaml:"secrets,omitempty"`         // secret names resolved to opaque handles
	Params         []string          `yaml:"params,omitempty"`          // opaque auxiliary parameters, forwarded untouched
}

// Load loads and validates a workflow definition from the specified file.
func Load(path string) (*Workflow, error) {
	// Load .env file if it exists; existing env always wins.
	loadEnvFile()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, derrors.ConfigNotFound(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	return Parse(data)
}

// Parse parses a workflow definition from raw YAML. Environment variables in
// the document are expanded before unmarshalling; run-time tokens such as
// ${event.ref} and ${needs.build.artifact} are preserved for the engine to
// substitute at dispatch time.
func Parse(data []byte) (*Workflow, error) {
	expanded := os.Expand(string(data), func(name string) string {
		if isRuntimeToken(name) {
			return "${" + name + "}"
		}
		return os.Getenv(name)
	})

	var w Workflow
	if err := yaml.Unmarshal([]byte(expanded), &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}

	w.applyDefaults()

	if err := w.Validate(); err != nil {
		return nil, err
	}

	return &w, nil
}

// isRuntimeToken reports whether a ${...} token belongs to the engine's
// run-time substitution namespace rather than the load-time environment.
func isRuntimeToken(name string) bool {
	for _, prefix := range []string{"event.", "needs.", "context.", "run."} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return name == "workflow" || name == "repository"
}

// Init creates a new workflow file with example content.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("workflow file already exists: %s (use --force to overwrite)", path)
	}
	return os.WriteFile(path, []byte(exampleWorkflow), 0o644)
}
