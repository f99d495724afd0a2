package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docsflow/internal/config"
)

// ValidateCmd implements the 'validate' command. Loading already runs the
// full validation pass: trigger rules, glob and cron syntax, guard
// expressions, dependency references, and graph acyclicity.
type ValidateCmd struct{}

func (v *ValidateCmd) Run(_ *Global, root *CLI) error {
	w, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	fmt.Printf("%s: workflow %q is valid (%d jobs)\n", root.Config, w.Name, len(w.Jobs))
	return nil
}
