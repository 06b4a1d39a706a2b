package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the CLI against an isolated temp store and returns
// captured stdout.
func runCLI(t *testing.T, storePath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOGSEEK_STORE_PATH", storePath)

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "records.db")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"import", "search", "stats", "clear", "watch", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd_Short(t *testing.T) {
	out, err := runCLI(t, tempStorePath(t), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := runCLI(t, tempStorePath(t), "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
	assert.Contains(t, out, `"go_version"`)
}
