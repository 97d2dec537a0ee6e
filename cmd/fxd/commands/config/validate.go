package config

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate an fxd configuration file and print a summary.

Every problem found is reported, one per line.

Examples:
  # Validate default config
  fxd config validate

  # Validate specific file
  fxd config validate --config /etc/fxd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, source, err := load(cmd)
	if err != nil {
		return fmt.Errorf("configuration is invalid:\n%w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration is valid (%s)\n\n", source)
	for _, kv := range summary(cfg) {
		_, _ = fmt.Fprintf(out, "  %-26s %s\n", kv[0]+":", kv[1])
	}
	return nil
}
