// Package config implements the "ankisyncd config" subcommand group.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect and validate the ankisyncd configuration.

Use 'ankisyncd init' to create a new configuration file.

Subcommands:
  show      Display the active configuration
  validate  Validate a configuration file`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
}
