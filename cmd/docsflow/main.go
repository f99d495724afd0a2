package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsflow/cmd/docsflow/commands"
	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
	"git.home.luguber.info/inful/docsflow/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("docsflow"),
		kong.Description("Workflow-dispatch engine for documentation builds."),
		kong.Vars{"version": version.Version},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default()})
	if err != nil {
		adapter := derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		adapter.HandleError(err)
	}
}
