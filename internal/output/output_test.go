package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Status("🔍", "searching")
	assert.Equal(t, "🔍 searching\n", buf.String())
}

func TestWriter_StatusNoIcon(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Status("", "plain line")
	assert.Equal(t, "   plain line\n", buf.String())
}

func TestWriter_SuccessWarningError(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Successf("imported %d records", 42)
	w.Warning("index lagging")
	w.Errorf("failed: %s", "boom")

	out := buf.String()
	assert.Contains(t, out, "✅ imported 42 records")
	assert.Contains(t, out, "index lagging")
	assert.Contains(t, out, "❌ failed: boom")
}

func TestWriter_ProgressNonTTY(t *testing.T) {
	// A buffer is not a terminal, so updates are line-oriented.
	var buf bytes.Buffer
	w := New(&buf)

	w.Progress(5, 10, "halfway")
	out := buf.String()
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "halfway")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.NotContains(t, out, "\r")
}

func TestWriter_ProgressUnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Progress(100, 0, "100 lines")
	assert.Equal(t, "100 lines\n", buf.String())
}

func TestRenderProgressBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("█", 15)+strings.Repeat("░", 15), renderProgressBar(50, 100, 30))
	assert.Equal(t, strings.Repeat("█", 30), renderProgressBar(100, 100, 30))
	assert.Equal(t, strings.Repeat("░", 30), renderProgressBar(0, 100, 30))
}
