package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *FlowError {
	return New(CategoryConfig, SeverityFatal, "workflow file not found").
		WithContext("path", path)
}

func ConfigInvalid(field, reason string) *FlowError {
	return New(CategoryConfig, SeverityFatal, "invalid workflow configuration").
		WithContext("field", field).
		WithContext("reason", reason)
}

func ValidationFailed(field, reason string) *FlowError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// CycleError reports a dependency cycle detected at run admission. The run
// never starts.
func CycleError(jobs []string) *FlowError {
	return New(CategoryCycle, SeverityFatal, "job dependencies contain a cycle").
		WithContext("jobs", jobs)
}

// Guard errors

// GuardEvaluationError reports a guard expression that could not be evaluated
// against the run context. The job is treated as failed, not silently skipped.
func GuardEvaluationError(job string, cause error) *FlowError {
	return Wrap(cause, CategoryGuard, SeverityError, "guard expression evaluation failed").
		WithContext("job", job)
}

// Invocation errors

// InvocationFailure reports that the external invoker failed a job.
func InvocationFailure(job string, cause error) *FlowError {
	return Wrap(cause, CategoryInvocation, SeverityError, "external invocation failed").
		WithContext("job", job)
}

// InvocationRetryable reports a transient invoker failure worth retrying.
func InvocationRetryable(job string, cause error) *FlowError {
	return WrapRetryable(cause, CategoryInvocation, SeverityWarning, "external invocation failed (transient)").
		WithContext("job", job)
}

// TimeoutError reports an invocation that exceeded the configured ceiling.
// It is treated as an InvocationFailure for run aggregation.
func TimeoutError(job string, ceiling string) *FlowError {
	return New(CategoryTimeout, SeverityError, "external invocation timed out").
		WithContext("job", job).
		WithContext("ceiling", ceiling)
}

// CancellationError reports a run- or governor-triggered cancellation.
// Distinct from failed for reporting purposes.
func CancellationError(reason string) *FlowError {
	return New(CategoryCancelled, SeverityWarning, "run cancelled").
		WithContext("reason", reason)
}

// Infrastructure errors

func StorageError(operation string, cause error) *FlowError {
	return Wrap(cause, CategoryStorage, SeverityError, "event store operation failed").
		WithContext("operation", operation)
}

func InternalError(message string, cause error) *FlowError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
