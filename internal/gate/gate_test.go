package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seekerr "github.com/logseek/logseek/internal/errors"
)

func newTestGate(t *testing.T, interval time.Duration) (*Gate, *time.Time) {
	t.Helper()
	g, err := New(Config{MinInterval: interval, MaxCallers: 100})
	require.NoError(t, err)

	clock := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }
	return g, &clock
}

func TestGate_FirstCallAdmitted(t *testing.T) {
	g, _ := newTestGate(t, time.Second)
	assert.NoError(t, g.Allow("caller-1"))
}

func TestGate_RapidRepeatRejected(t *testing.T) {
	g, _ := newTestGate(t, time.Second)

	require.NoError(t, g.Allow("caller-1"))
	err := g.Allow("caller-1")
	require.Error(t, err)
	assert.Equal(t, seekerr.ErrCodeRateLimited, seekerr.GetCode(err))
}

func TestGate_AdmittedAfterInterval(t *testing.T) {
	g, clock := newTestGate(t, time.Second)

	require.NoError(t, g.Allow("caller-1"))
	*clock = clock.Add(1500 * time.Millisecond)
	assert.NoError(t, g.Allow("caller-1"))
}

func TestGate_CallersAreIndependent(t *testing.T) {
	g, _ := newTestGate(t, time.Second)

	require.NoError(t, g.Allow("caller-1"))
	assert.NoError(t, g.Allow("caller-2"))
	assert.Error(t, g.Allow("caller-1"))
}

func TestGate_AnonymousAlwaysAdmitted(t *testing.T) {
	g, _ := newTestGate(t, time.Second)

	for i := 0; i < 5; i++ {
		assert.NoError(t, g.Allow(""))
	}
}

func TestGate_RepeatedViolationsEscalateSuggestion(t *testing.T) {
	g, _ := newTestGate(t, time.Second)

	require.NoError(t, g.Allow("noisy"))
	var last error
	for i := 0; i < 4; i++ {
		last = g.Allow("noisy")
		require.Error(t, last)
	}
	var se *seekerr.SeekError
	require.ErrorAs(t, last, &se)
	assert.NotEmpty(t, se.Suggestion)
}

func TestGate_TableIsBounded(t *testing.T) {
	g, err := New(Config{MinInterval: time.Second, MaxCallers: 2})
	require.NoError(t, err)

	require.NoError(t, g.Allow("a"))
	require.NoError(t, g.Allow("b"))
	require.NoError(t, g.Allow("c")) // evicts a

	// Evicted callers look fresh again; boundedness trades accuracy
	// for a hard memory cap.
	assert.NoError(t, g.Allow("a"))
}

func TestGate_Reset(t *testing.T) {
	g, _ := newTestGate(t, time.Second)

	require.NoError(t, g.Allow("caller-1"))
	require.Error(t, g.Allow("caller-1"))
	g.Reset()
	assert.NoError(t, g.Allow("caller-1"))
}
