package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docsflow/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite an existing workflow definition"`
	Output string `short:"o" name:"output" help:"Output directory for the generated file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	path := root.Config
	if i.Output != "" {
		path = filepath.Join(i.Output, "docsflow.yaml")
	}

	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	fmt.Printf("Wrote example workflow definition to %s\n", path)
	return nil
}
