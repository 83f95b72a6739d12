package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankisyncd/ankisyncd-go/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample ankisyncd configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/ankisyncd/config.yaml. Use --config to specify a custom path.

Examples:
  ankisyncd init
  ankisyncd init --config /etc/ankisyncd/config.yaml
  ankisyncd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error
	if configFile != "" {
		configPath = configFile
		err = config.InitConfigToPath(configFile, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Create a user: ankisyncd user add <username>")
	fmt.Println("  3. Start the server with: ankisyncd serve")
	return nil
}
