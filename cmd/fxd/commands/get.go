package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/fxd/internal/bytesize"
	"github.com/spf13/cobra"
)

var (
	getFlags  transferFlags
	getOutput string
)

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Download a file from an fxd server",
	Long: `Download a file from an fxd server.

The file is written to --output, or to standard output when --output is "-".
Without --output the file is saved under its own name in the current
directory.

Examples:
  # Save report.txt in the current directory
  fxd get report.txt

  # Print to stdout
  fxd get notes.md -o -

  # Use a remote server
  fxd get data.bin --address files.example.com:9000 -o /tmp/data.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getFlags.register(getCmd)
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "Destination file, or - for stdout")
}

func runGet(cmd *cobra.Command, args []string) error {
	name := args[0]
	c := getFlags.client(nil)

	dest := getOutput
	if dest == "" {
		dest = filepath.Base(name)
	}

	if dest == "-" {
		_, err := c.Read(cmd.Context(), name, cmd.OutOrStdout())
		return err
	}

	// Write to a sibling temp file so a failed download leaves no partial
	// destination behind.
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := c.Read(cmd.Context(), name, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to save %s: %w", dest, err)
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Downloaded %s (%s) to %s\n", name, bytesize.ByteSize(n).HumanReadable(), dest)
	return nil
}
