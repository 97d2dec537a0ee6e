package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/fxd/internal/bytesize"
	"github.com/spf13/cobra"
)

var putFlags transferFlags

var putCmd = &cobra.Command{
	Use:   "put <file> [name]",
	Short: "Upload a file to an fxd server",
	Long: `Upload a file to an fxd server, replacing any file of the same name.

The remote name defaults to the base name of <file>. Use "-" as <file> to
upload standard input, in which case [name] is required.

While other clients are reading or writing the file the server answers
NOTIFY BUSY; the upload waits and reports each notification.

Examples:
  # Upload report.txt as report.txt
  fxd put ./out/report.txt

  # Upload under another name
  fxd put ./out/report.txt report-2026.txt

  # Upload from a pipe
  tar c dir | fxd put - dir.tar`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPut,
}

func init() {
	putFlags.register(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	src := args[0]
	var name string
	if len(args) == 2 {
		name = args[1]
	} else if src == "-" {
		return fmt.Errorf("a remote name is required when uploading stdin")
	} else {
		name = filepath.Base(src)
	}

	var r io.Reader
	if src == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", src, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	stderr := cmd.ErrOrStderr()
	c := putFlags.client(func(busy string, attempt int) {
		_, _ = fmt.Fprintf(stderr, "%s is busy, waiting (attempt %d)\n", busy, attempt)
	})

	n, err := c.Write(cmd.Context(), name, r)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stderr, "Uploaded %s (%s)\n", name, bytesize.ByteSize(n).HumanReadable())
	return nil
}
