package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLogFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.log")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestImportCmd_EndToEnd(t *testing.T) {
	// Given: a log file and an empty store
	storePath := tempStorePath(t)
	logPath := writeLogFile(t, "db connection refused\nretrying connection\nstartup complete\n")

	// When: importing then searching via the CLI
	out, err := runCLI(t, storePath, "import", "--quiet", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 3 records")

	out, err = runCLI(t, storePath, "search", "connection")
	require.NoError(t, err)
	assert.Contains(t, out, "2 results")
	assert.Contains(t, out, "db connection refused")
}

func TestImportCmd_SecondRunSkipsDuplicates(t *testing.T) {
	storePath := tempStorePath(t)
	logPath := writeLogFile(t, "only line\n")

	_, err := runCLI(t, storePath, "import", "--quiet", logPath)
	require.NoError(t, err)

	out, err := runCLI(t, storePath, "import", "--quiet", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 0 records")
	assert.Contains(t, out, "1 duplicates skipped")
}

func TestImportCmd_MissingFile(t *testing.T) {
	_, err := runCLI(t, tempStorePath(t), "import", "--quiet", "/does/not/exist.log")
	require.Error(t, err)
}

func TestSearchCmd_JSONFormat(t *testing.T) {
	storePath := tempStorePath(t)
	logPath := writeLogFile(t, "json formatted line\n")

	_, err := runCLI(t, storePath, "import", "--quiet", logPath)
	require.NoError(t, err)

	out, err := runCLI(t, storePath, "search", "formatted", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 1`)
	assert.Contains(t, out, `"content": "json formatted line"`)
}

func TestSearchCmd_ReportsOverflow(t *testing.T) {
	// Given: more matches than the requested limit
	storePath := tempStorePath(t)
	logPath := writeLogFile(t,
		"worker alpha failed\nworker beta failed\nworker gamma failed\nworker delta failed\nworker epsilon failed\n")

	_, err := runCLI(t, storePath, "import", "--quiet", logPath)
	require.NoError(t, err)

	// When: searching with a small limit
	out, err := runCLI(t, storePath, "search", "worker", "--limit", "2")
	require.NoError(t, err)

	// Then: the summary names the hidden remainder
	assert.Contains(t, out, "2 results")
	assert.Contains(t, out, "+3 more")

	// And: the JSON shape carries the full total
	out, err = runCLI(t, storePath, "search", "worker", "--limit", "2", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 2`)
	assert.Contains(t, out, `"total": 5`)
}

func TestSearchCmd_EmptyQueryFails(t *testing.T) {
	_, err := runCLI(t, tempStorePath(t), "search", "   ")
	require.Error(t, err)
}

func TestStatsCmd_ReportsCount(t *testing.T) {
	storePath := tempStorePath(t)
	logPath := writeLogFile(t, "a\nb\nc\n")

	_, err := runCLI(t, storePath, "import", "--quiet", logPath)
	require.NoError(t, err)

	out, err := runCLI(t, storePath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:  3")
}

func TestClearCmd_RequiresForce(t *testing.T) {
	storePath := tempStorePath(t)
	logPath := writeLogFile(t, "to be kept\n")

	_, err := runCLI(t, storePath, "import", "--quiet", logPath)
	require.NoError(t, err)

	// Without --force nothing is deleted.
	_, err = runCLI(t, storePath, "clear")
	require.Error(t, err)

	out, err := runCLI(t, storePath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:  1")

	// With --force everything goes.
	out, err = runCLI(t, storePath, "clear", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared 1 records")

	out, err = runCLI(t, storePath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Records:  0")
}
