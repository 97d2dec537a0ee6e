package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default so
// that package-level flag variables do not leak between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// setContext replaces the context cobra cached on every command during an
// earlier execution.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	root := GetRootCmd()
	resetFlags(root)
	t.Cleanup(func() { resetFlags(root) })

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	setContext(root, ctx)
	err := root.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// isolate points the XDG directories at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestVersion(t *testing.T) {
	res := execute(t, "", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "fxd "+Version)
	assert.Contains(t, res.stdout, "commit:")
}

func TestInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "fxd.yaml")

	res := execute(t, "", "init", "--config", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Configuration file created at: "+path)
	assert.FileExists(t, path)

	res = execute(t, "", "init", "--config", path)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already exists")

	res = execute(t, "", "init", "--config", path, "--force")
	require.NoError(t, res.err)
}

func TestInitDefaultLocation(t *testing.T) {
	dir := isolate(t)

	res := execute(t, "", "init")
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(dir, "config", "fxd", "config.yaml"))
}

func TestConfigValidate(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "fxd.yaml")
	require.NoError(t, execute(t, "", "init", "--config", path).err)

	res := execute(t, "", "config", "validate", "--config", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Configuration is valid ("+path+")")
	assert.Contains(t, res.stdout, "storage.type:")

	res = execute(t, "", "config", "validate")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "(defaults)")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("storage:\n  type: tape\n"), 0600))
	res = execute(t, "", "config", "validate", "--config", bad)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Type")

	res = execute(t, "", "config", "validate", "--config", filepath.Join(dir, "missing.yaml"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not found")
}

func TestConfigShow(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "fxd.yaml")
	cfg := "server:\n  port: 9100\nstorage:\n  type: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0600))

	t.Run("Table", func(t *testing.T) {
		res := execute(t, "", "config", "show", "--config", path)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "SETTING")
		assert.Contains(t, res.stdout, "0.0.0.0:9100")
		assert.Contains(t, res.stdout, "memory")
	})

	t.Run("YAML", func(t *testing.T) {
		res := execute(t, "", "config", "show", "--config", path, "-o", "yaml")
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "port: 9100")
	})

	t.Run("JSON", func(t *testing.T) {
		res := execute(t, "", "config", "show", "--config", path, "-o", "json")
		require.NoError(t, res.err)
		assert.True(t, strings.HasPrefix(res.stdout, "{"))
	})

	t.Run("BadFormat", func(t *testing.T) {
		res := execute(t, "", "config", "show", "--config", path, "-o", "xml")
		assert.Error(t, res.err)
	})
}

func TestConfigSchema(t *testing.T) {
	isolate(t)

	// property walks nested "properties" objects of a JSON schema.
	property := func(t *testing.T, schema map[string]any, path ...string) map[string]any {
		t.Helper()
		node := schema
		for _, key := range path {
			props, ok := node["properties"].(map[string]any)
			require.True(t, ok, "no properties above %q", key)
			node, ok = props[key].(map[string]any)
			require.True(t, ok, "missing property %q", key)
		}
		return node
	}

	t.Run("Stdout", func(t *testing.T) {
		res := execute(t, "", "config", "schema")
		require.NoError(t, res.err)

		var schema map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &schema))
		assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", schema["$schema"])

		assert.Equal(t, "string", property(t, schema, "lock", "busy_retry_interval")["type"])
		assert.Equal(t, "string", property(t, schema, "shutdown_timeout")["type"])
		assert.Equal(t, "integer", property(t, schema, "server", "port")["type"])
		assert.Equal(t, "integer", property(t, schema, "server", "max_connections")["type"])
		assert.Contains(t, property(t, schema, "server", "max_line_length"), "oneOf")
		assert.Equal(t, "string", property(t, schema, "storage", "type")["type"])

		server := property(t, schema, "server")["properties"].(map[string]any)
		assert.NotContains(t, server, "busy_retry_interval")
		assert.NotContains(t, server, "UseEphemeralPort")
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.schema.json")
		res := execute(t, "", "config", "schema", "-o", path)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "JSON schema written to "+path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(data, &schema))
		property(t, schema, "lock", "busy_retry_interval")
	})
}

func TestLoadStartConfig(t *testing.T) {
	isolate(t)
	root := GetRootCmd()
	resetFlags(root)
	t.Cleanup(func() { resetFlags(root) })

	require.NoError(t, startCmd.Flags().Parse([]string{
		"--port", "9100",
		"--bind-address", "127.0.0.1",
		"--storage", "memory",
		"--log-level", "debug",
	}))

	cfg, err := loadStartConfig(startCmd)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Empty(t, cfg.Storage.Path)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadStartConfigStorageSwitch(t *testing.T) {
	dir := isolate(t)
	root := GetRootCmd()
	resetFlags(root)
	t.Cleanup(func() { resetFlags(root) })

	require.NoError(t, startCmd.Flags().Parse([]string{"--storage", "badger"}))
	cfg, err := loadStartConfig(startCmd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "fxd", "badger"), cfg.Storage.Path)
}

func TestLoadStartConfigInvalidOverride(t *testing.T) {
	isolate(t)
	root := GetRootCmd()
	resetFlags(root)
	t.Cleanup(func() { resetFlags(root) })

	require.NoError(t, startCmd.Flags().Parse([]string{"--port", "70000"}))
	_, err := loadStartConfig(startCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestStartMissingExplicitConfig(t *testing.T) {
	dir := isolate(t)
	res := execute(t, "", "start", "--config", filepath.Join(dir, "nope.yaml"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "fxd init --config")
}
