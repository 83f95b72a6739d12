package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ankisyncd/ankisyncd-go/internal/cli/output"
	"github.com/ankisyncd/ankisyncd-go/internal/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the active configuration",
	Long: `Display the active ankisyncd configuration.

By default outputs YAML. Use --output to change format.

Examples:
  ankisyncd config show
  ankisyncd config show --output json
  ankisyncd config show --config /etc/ankisyncd/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
