package config

import (
	"github.com/marmos91/fxd/internal/cli/output"
	"github.com/spf13/cobra"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective fxd configuration, defaults applied.

The table format lists the key settings; yaml and json print everything.

Examples:
  # Show key settings
  fxd config show

  # Show the full configuration as YAML
  fxd config show --output yaml

  # Show specific config file as JSON
  fxd config show --config /etc/fxd/config.yaml -o json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	cfg, _, err := load(cmd)
	if err != nil {
		return err
	}

	table := output.NewTableData("SETTING", "VALUE")
	for _, kv := range summary(cfg) {
		table.AddRow(kv[0], kv[1])
	}
	return output.Print(cmd.OutOrStdout(), format, table, cfg)
}
