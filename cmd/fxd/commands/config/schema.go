package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/fxd/internal/bytesize"
	"github.com/marmos91/fxd/pkg/config"
	"github.com/spf13/cobra"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate JSON schema for configuration",
	Long: `Generate a JSON schema for the fxd configuration file.

Point an editor's YAML language server at the schema for completion and
inline validation of config.yaml.

Examples:
  # Print schema to stdout
  fxd config schema

  # Save schema to file
  fxd config schema --output config.schema.json`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Output file (default: stdout)")
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	byteSizeType = reflect.TypeOf(bytesize.ByteSize(0))
)

// schemaMapper describes the types the config decoder accepts as strings.
func schemaMapper(t reflect.Type) *jsonschema.Schema {
	switch t {
	case durationType:
		return &jsonschema.Schema{
			Type:        "string",
			Description: `Go duration, e.g. "200ms" or "10s"`,
		}
	case byteSizeType:
		return &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "string", Description: `Size with binary suffix, e.g. "1Ki" or "256Mi"`},
				{Type: "integer", Description: "Size in bytes"},
			},
		}
	}
	return nil
}

func configSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
		Mapper:                    schemaMapper,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "fxd Configuration"
	schema.Description = "Configuration schema for the fxd file exchange server"
	return schema
}

func runSchema(cmd *cobra.Command, args []string) error {
	schemaJSON, err := json.MarshalIndent(configSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if schemaOutput != "" {
		if err := os.WriteFile(schemaOutput, schemaJSON, 0644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
		return nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
	return nil
}
