package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fxd.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func TestShowLogs(t *testing.T) {
	path := writeLog(t,
		"[2026-01-15 09:00:00] [INFO] one",
		"[2026-01-15 10:00:00] [INFO] two",
		"[2026-01-15 11:00:00] [INFO] three",
	)

	var out bytes.Buffer
	require.NoError(t, showLogs(&out, path, 2, time.Time{}))
	assert.Equal(t, "[2026-01-15 10:00:00] [INFO] two\n[2026-01-15 11:00:00] [INFO] three\n", out.String())

	out.Reset()
	since := time.Date(2026, 1, 15, 9, 30, 0, 0, time.Local)
	require.NoError(t, showLogs(&out, path, 100, since))
	assert.NotContains(t, out.String(), "one")
	assert.Contains(t, out.String(), "two")

	out.Reset()
	require.NoError(t, showLogs(&out, path, 0, time.Time{}))
	assert.Empty(t, out.String())
}

func TestExtractTimestamp(t *testing.T) {
	text := extractTimestamp("[2026-01-15 10:30:45] [WARN] slow client")
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 45, 0, time.Local), text)

	js := extractTimestamp(`{"time":"2026-01-15T10:30:45.123Z","level":"INFO","msg":"x"}`)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 45, 123000000, time.UTC), js.UTC())

	assert.True(t, extractTimestamp("no timestamp here").IsZero())
}

func TestFollowLogs(t *testing.T) {
	path := writeLog(t, "[2026-01-15 09:00:00] [INFO] existing")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- followLogs(ctx, &out, path, 10, time.Time{}) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "existing")
	}, 5*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("[2026-01-15 09:00:01] [INFO] appended\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "appended")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("followLogs did not return")
	}
}

func TestLogsToStdout(t *testing.T) {
	isolate(t)
	res := execute(t, "", "logs")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not a file")
}

func TestLogsFromConfiguredFile(t *testing.T) {
	dir := isolate(t)
	logPath := writeLog(t, "[2026-01-15 09:00:00] [INFO] hello")
	cfgPath := filepath.Join(dir, "fxd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  output: '"+logPath+"'\n"), 0600))

	res := execute(t, "", "logs", "--config", cfgPath, "-n", "5")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "hello")

	res = execute(t, "", "logs", "--config", cfgPath, "--since", "yesterday")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "RFC3339")
}
