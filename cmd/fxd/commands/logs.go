package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/fxd/pkg/config"
	"github.com/spf13/cobra"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the fxd server logs.

This command reads the file named by logging.output and prints the most
recent entries. It fails when the server logs to stdout or stderr.

Examples:
  # Show last 100 lines (default)
  fxd logs

  # Follow logs in real-time
  fxd logs -f -n 20

  # Show logs since a specific time
  fxd logs --since "2026-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logOutput := cfg.Logging.Output
	if logOutput == "stdout" || logOutput == "stderr" {
		return fmt.Errorf("server is configured to log to %s, not a file\nSet 'logging.output' to a file path to use this command", logOutput)
	}
	if _, err := os.Stat(logOutput); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet", logOutput)
	}

	var since time.Time
	if logsSince != "" {
		since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if !logsFollow {
		return showLogs(out, logOutput, logsLines, since)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return followLogs(ctx, out, logOutput, logsLines, since)
}

// showLogs prints the last lines entries of logFile not older than since.
func showLogs(out io.Writer, logFile string, lines int, since time.Time) error {
	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Ring of the most recent matching lines.
	ring := make([]string, 0, max(lines, 0))
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !since.IsZero() {
			if ts := extractTimestamp(line); !ts.IsZero() && ts.Before(since) {
				continue
			}
		}
		if lines <= 0 {
			continue
		}
		if len(ring) == lines {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	for _, line := range ring {
		_, _ = fmt.Fprintln(out, line)
	}
	return nil
}

// followLogs prints the tail of logFile, then every line appended to it
// until ctx is done.
func followLogs(ctx context.Context, out io.Writer, logFile string, initialLines int, since time.Time) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logFile); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of log file: %w", err)
	}
	if err := showLogs(out, logFile, initialLines, since); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	_, _ = fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)...\n", logFile)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					// Keep a partial line for the next event.
					if len(line) > 0 {
						_, _ = file.Seek(-int64(len(line)), io.SeekCurrent)
						reader.Reset(file)
					}
					break
				}
				_, _ = fmt.Fprint(out, line)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// textTimeLayout matches the timestamp prefix of the text log format.
const textTimeLayout = "2006-01-02 15:04:05"

// extractTimestamp finds the time of a log line in either the text format
// ("[2006-01-02 15:04:05] ...") or the JSON format ("time":"...").
func extractTimestamp(line string) time.Time {
	if strings.HasPrefix(line, "[") && len(line) > len(textTimeLayout)+1 {
		if t, err := time.ParseInLocation(textTimeLayout, line[1:1+len(textTimeLayout)], time.Local); err == nil {
			return t
		}
	}

	const timeKey = `"time":"`
	if idx := strings.Index(line, timeKey); idx >= 0 {
		rest := line[idx+len(timeKey):]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:end]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
