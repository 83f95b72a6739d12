package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankisyncd/ankisyncd-go/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate the ankisyncd configuration file without starting the server.

Examples:
  ankisyncd config validate
  ankisyncd config validate --config /etc/ankisyncd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	if _, err := config.MustLoad(configPath); err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	return nil
}
