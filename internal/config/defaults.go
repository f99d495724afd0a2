package config

// Invoker kinds.
const (
	InvokerKindLocal = "local"
	InvokerKindNATS  = "nats"
)

// applyDefaults fills in defaults for omitted fields.
func (w *Workflow) applyDefaults() {
	if w.Name == "" {
		w.Name = "docsflow"
	}
	if w.Concurrency.Group == "" {
		// One group per workflow unless the user scopes it further.
		w.Concurrency.Group = "${workflow}"
	}
	if w.Invoker.Kind == "" {
		w.Invoker.Kind = InvokerKindLocal
	}
	if w.Invoker.Timeout == "" {
		w.Invoker.Timeout = "30m"
	}
	if w.Invoker.Retry.Backoff != "" {
		// normalize any user-provided raw string; unknown modes are left
		// as-is for Validate to reject
		if mode := NormalizeRetryBackoff(string(w.Invoker.Retry.Backoff)); mode != "" {
			w.Invoker.Retry.Backoff = mode
		}
	}
	if w.Invoker.Kind == InvokerKindNATS {
		if w.Invoker.URL == "" {
			w.Invoker.URL = "nats://127.0.0.1:4222"
		}
		if w.Invoker.Subject == "" {
			w.Invoker.Subject = "docsflow.jobs"
		}
	}
	w.Daemon.applyDefaults()
}

const exampleWorkflow = `# docsflow workflow definition
name: collection-docs

# Events that trigger a run. Branch and tag rules are glob patterns;
# schedule rules are standard five-field cron expressions.
on:
  push:
    branches: ["main", "stable-*"]
  tag:
    tags: ["v*"]
  schedule:
    - cron: "0 13 * * *"

# At most one non-terminal run per group key. ${event.ref} scopes the
# group per branch/tag so builds for different refs never queue behind
# each other.
concurrency:
  group: "docs-${event.ref}"
  cancel_in_progress: true

# Static run context available to guard expressions.
context:
  repository: ansible-collections/community.aws

# External invoker performing the actual job work.
invoker:
  kind: local
  timeout: 30m
  retry:
    backoff: exponential
    initial_delay: 2s
    max_delay: 1m
    max_retries: 2

jobs:
  build:
    uses: docs-build
    inputs:
      ref: "${event.ref}"
    outputs: [artifact]
    permissions:
      contents: read
    params: ["--lenient"]

  publish:
    uses: docs-publish
    needs: [build]
    require_success: true
    guard: repository == "ansible-collections/community.aws"
    inputs:
      artifact: "${needs.build.artifact}"
    permissions:
      pages: write
    secrets: [PAGES_TOKEN]
`
