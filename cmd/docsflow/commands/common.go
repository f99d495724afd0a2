// Package commands holds the CLI command implementations.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Workflow definition file path" default:"docsflow.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon   DaemonCmd   `cmd:"" help:"Run the dispatch daemon: watch for events and execute matched runs"`
	Dispatch DispatchCmd `cmd:"" help:"Execute one run for a synthetic event and exit"`
	Validate ValidateCmd `cmd:"" help:"Validate the workflow definition and exit"`
	Init     InitCmd     `cmd:"" help:"Write an example workflow definition"`
}

// AfterApply runs after flag parsing; sets up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}
