package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	var fe *FlowError
	if errors.As(err, &fe) {
		return a.exitCodeFromFlow(fe)
	}

	return 1
}

// exitCodeFromFlow maps FlowError to exit codes.
func (a *CLIErrorAdapter) exitCodeFromFlow(err *FlowError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig, CategoryCycle:
		return 7 // Configuration error
	case CategoryGuard, CategoryInvocation, CategoryTimeout:
		return 8 // Job execution error
	case CategoryCancelled:
		return 9 // Cancelled
	case CategoryStorage, CategoryRuntime:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	var fe *FlowError
	if errors.As(err, &fe) {
		return a.formatFlow(fe)
	}

	return fmt.Sprintf("Error: %v", err)
}

// formatFlow formats a FlowError for display.
func (a *CLIErrorAdapter) formatFlow(err *FlowError) string {
	if a.verbose {
		return err.Error()
	}

	switch err.Category {
	case CategoryConfig, CategoryValidation:
		return err.Message
	default:
		return fmt.Sprintf("%s: %s", err.Category, err.Message)
	}
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(exitCode)
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Category == CategoryInternal ||
			fe.Category == CategoryRuntime ||
			fe.Severity == SeverityFatal
	}

	return true
}

// logError logs an error with category and context attached.
func (a *CLIErrorAdapter) logError(err error) {
	var fe *FlowError
	if !errors.As(err, &fe) {
		a.logger.Error("command failed", "error", err)
		return
	}

	attrs := []any{
		"category", string(fe.Category),
		"severity", string(fe.Severity),
	}
	for k, v := range fe.Context {
		attrs = append(attrs, k, v)
	}
	if fe.Cause != nil {
		attrs = append(attrs, "cause", fe.Cause.Error())
	}
	a.logger.Error(fe.Message, attrs...)
}
