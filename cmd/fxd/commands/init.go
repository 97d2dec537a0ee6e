package commands

import (
	"fmt"

	"github.com/marmos91/fxd/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample fxd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/fxd/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  fxd init

  # Initialize with custom path
  fxd init --config /etc/fxd/config.yaml

  # Force overwrite existing config
  fxd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Review storage.path and server.port")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: fxd start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: fxd start --config %s\n", configPath)
	return nil
}
