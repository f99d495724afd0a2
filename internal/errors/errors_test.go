package errors

import (
	"fmt"
	"testing"
)

func TestFlowError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FlowError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "workflow invalid"),
			expected: "config (fatal): workflow invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), CategoryConfig, SeverityFatal, "failed to load workflow"),
			expected: "config (fatal): failed to load workflow: file not found",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.err.Error()
			if result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestFlowError_WithContext(t *testing.T) {
	err := New(CategoryInvocation, SeverityWarning, "invocation failed").
		WithContext("job", "build-docs").
		WithContext("run_id", "r-1")

	if err.Context == nil {
		t.Fatal("Context should not be nil")
	}

	if err.Context["job"] != "build-docs" {
		t.Errorf("Context[job] = %v, want build-docs", err.Context["job"])
	}

	if err.Context["run_id"] != "r-1" {
		t.Errorf("Context[run_id] = %v, want r-1", err.Context["run_id"])
	}
}

func TestIsCategory(t *testing.T) {
	configErr := New(CategoryConfig, SeverityFatal, "config error")
	timeoutErr := TimeoutError("publish", "30m")
	standardErr := fmt.Errorf("standard error")

	if !IsCategory(configErr, CategoryConfig) {
		t.Error("expected config category match")
	}
	if IsCategory(configErr, CategoryTimeout) {
		t.Error("unexpected timeout category match")
	}
	if !IsTimeout(timeoutErr) {
		t.Error("expected IsTimeout for TimeoutError")
	}
	if IsCategory(standardErr, CategoryConfig) {
		t.Error("standard error should not match any category")
	}
}

func TestIsCategory_Wrapped(t *testing.T) {
	inner := CancellationError("superseded by newer run")
	wrapped := fmt.Errorf("run aborted: %w", inner)

	if !IsCancelled(wrapped) {
		t.Error("expected IsCancelled to see through wrapping")
	}
	if GetCategory(wrapped) != CategoryCancelled {
		t.Errorf("GetCategory = %v, want cancelled", GetCategory(wrapped))
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := InvocationRetryable("build", fmt.Errorf("connection reset"))
	fatal := InvocationFailure("build", fmt.Errorf("exit status 1"))

	if !IsRetryable(retryable) {
		t.Error("expected retryable error")
	}
	if IsRetryable(fatal) {
		t.Error("invocation failure should not be retryable by default")
	}
}
