package config

import (
	"path"
	"regexp"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
	"git.home.luguber.info/inful/docsflow/internal/guard"
)

// needsRefPattern extracts "${needs.<job>.<key>}" references from input templates.
var needsRefPattern = regexp.MustCompile(`\$\{needs\.([A-Za-z0-9_-]+)\.[A-Za-z0-9_-]+\}`)

// Validate checks the workflow definition for problems that must surface
// before any run is admitted. All findings are ConfigErrors.
func (w *Workflow) Validate() error {
	if !w.On.hasAnyRule() {
		return derrors.ConfigInvalid("on", "at least one trigger rule is required")
	}
	if err := w.On.validate(); err != nil {
		return err
	}
	if len(w.Jobs) == 0 {
		return derrors.ConfigInvalid("jobs", "at least one job is required")
	}
	if err := w.validateInvoker(); err != nil {
		return err
	}
	if err := w.Daemon.validate(); err != nil {
		return err
	}
	if err := w.validateJobs(); err != nil {
		return err
	}
	return w.detectCycles()
}

func (tc *TriggerConfig) hasAnyRule() bool {
	return tc.Push != nil || tc.Tag != nil || len(tc.Schedule) > 0
}

func (tc *TriggerConfig) validate() error {
	if tc.Push != nil {
		if len(tc.Push.Branches) == 0 {
			return derrors.ConfigInvalid("on.push.branches", "push rule requires at least one branch pattern")
		}
		for _, p := range tc.Push.Branches {
			if err := validateGlob(p); err != nil {
				return derrors.ConfigInvalid("on.push.branches", "malformed glob pattern").WithContext("pattern", p)
			}
		}
	}
	if tc.Tag != nil {
		if len(tc.Tag.Tags) == 0 {
			return derrors.ConfigInvalid("on.tag.tags", "tag rule requires at least one tag pattern")
		}
		for _, p := range tc.Tag.Tags {
			if err := validateGlob(p); err != nil {
				return derrors.ConfigInvalid("on.tag.tags", "malformed glob pattern").WithContext("pattern", p)
			}
		}
	}
	for _, s := range tc.Schedule {
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return derrors.ConfigInvalid("on.schedule", "malformed cron expression").
				WithContext("cron", s.Cron).
				WithContext("reason", err.Error())
		}
	}
	return nil
}

// validateGlob checks that a pattern is well-formed path.Match syntax.
func validateGlob(pattern string) error {
	_, err := path.Match(pattern, "probe")
	return err
}

func (w *Workflow) validateInvoker() error {
	switch w.Invoker.Kind {
	case InvokerKindLocal, InvokerKindNATS:
	default:
		return derrors.ConfigInvalid("invoker.kind", "unknown invoker kind").WithContext("kind", w.Invoker.Kind)
	}
	if d, err := time.ParseDuration(w.Invoker.Timeout); err != nil || d <= 0 {
		return derrors.ConfigInvalid("invoker.timeout", "timeout must be a positive duration").
			WithContext("timeout", w.Invoker.Timeout)
	}
	if b := w.Invoker.Retry.Backoff; b != "" && NormalizeRetryBackoff(string(b)) == "" {
		return derrors.ConfigInvalid("invoker.retry.backoff", "unknown backoff mode").
			WithContext("backoff", string(b))
	}
	return nil
}

func (w *Workflow) validateJobs() error {
	for name, job := range w.Jobs {
		if job.Uses == "" {
			return derrors.ConfigInvalid("jobs."+name+".uses", "job must reference an invoker target")
		}
		if job.RequireSuccess && job.AlwaysRun {
			return derrors.ConfigInvalid("jobs."+name, "require_success and always_run are mutually exclusive")
		}
		seen := make(map[string]bool, len(job.Needs))
		for _, dep := range job.Needs {
			if dep == name {
				return derrors.ConfigInvalid("jobs."+name+".needs", "job cannot depend on itself")
			}
			if _, ok := w.Jobs[dep]; !ok {
				return derrors.ConfigInvalid("jobs."+name+".needs", "unknown dependency").WithContext("dependency", dep)
			}
			if seen[dep] {
				return derrors.ConfigInvalid("jobs."+name+".needs", "duplicate dependency").WithContext("dependency", dep)
			}
			seen[dep] = true
		}
		if job.Guard != "" {
			if _, err := guard.Compile(job.Guard); err != nil {
				return derrors.ConfigInvalid("jobs."+name+".guard", "unparsable guard expression").
					WithContext("reason", err.Error())
			}
		}
		if err := w.validateInputRefs(name, job, seen); err != nil {
			return err
		}
	}
	return nil
}

// validateInputRefs ensures ${needs.X.key} templates only reference declared
// dependencies, so output visibility is guaranteed at dispatch time.
func (w *Workflow) validateInputRefs(name string, job JobConfig, needs map[string]bool) error {
	for input, tmpl := range job.Inputs {
		for _, m := range needsRefPattern.FindAllStringSubmatch(tmpl, -1) {
			if !needs[m[1]] {
				return derrors.ConfigInvalid("jobs."+name+".inputs."+input, "input references a job that is not a declared dependency").
					WithContext("referenced", m[1])
			}
		}
	}
	return nil
}

// detectCycles runs Kahn's algorithm over the job graph; any leftover node
// indicates a cycle.
func (w *Workflow) detectCycles() error {
	inDegree := make(map[string]int, len(w.Jobs))
	dependents := make(map[string][]string, len(w.Jobs))

	for name := range w.Jobs {
		inDegree[name] = 0
	}
	for name, job := range w.Jobs {
		for _, dep := range job.Needs {
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	queue := make([]string, 0, len(w.Jobs))
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	processed := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processed++
		for _, dep := range dependents[current] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if processed != len(w.Jobs) {
		var cyclic []string
		for name, deg := range inDegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return derrors.CycleError(cyclic)
	}
	return nil
}
