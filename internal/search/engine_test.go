package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seekerr "github.com/logseek/logseek/internal/errors"
	"github.com/logseek/logseek/internal/store"
)

func newTestEngine(t *testing.T, gate AdmissionGate) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, gate, DefaultConfig()), s
}

func seedLines(t *testing.T, s *store.Store, lines ...string) {
	t.Helper()
	_, err := s.InsertBatch(context.Background(), lines, true)
	require.NoError(t, err)
}

func TestEngine_Search(t *testing.T) {
	// Given: an engine over a seeded store
	e, s := newTestEngine(t, nil)
	seedLines(t, s,
		"connection refused by upstream",
		"connection established",
		"disk almost full")

	// When: searching with messy user input
	page, err := e.Search(context.Background(), "Connection!", Options{})

	// Then: sanitized matching finds both connection lines
	require.NoError(t, err)
	assert.Len(t, page.Hits, 2)
	assert.Equal(t, int64(2), page.Total)
}

func TestEngine_DefaultAndMaxLimit(t *testing.T) {
	e, s := newTestEngine(t, nil)
	lines := make([]string, 150)
	for i := range lines {
		lines[i] = "repeated entry number " + string(rune('a'+i%26)) + " idx " + string(rune('a'+i/26))
	}
	seedLines(t, s, lines...)

	// Default limit applies when the caller passes none; the total
	// still reports every match.
	page, err := e.Search(context.Background(), "repeated", Options{})
	require.NoError(t, err)
	assert.Len(t, page.Hits, DefaultConfig().DefaultLimit)
	assert.Equal(t, int64(150), page.Total)

	// Requested limits above the cap are clamped.
	page, err = e.Search(context.Background(), "repeated", Options{Limit: 10000})
	require.NoError(t, err)
	assert.Len(t, page.Hits, DefaultConfig().MaxLimit)
	assert.Equal(t, int64(150), page.Total)
}

func TestEngine_EmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.Search(context.Background(), "   ", Options{})
	require.Error(t, err)
	assert.Equal(t, seekerr.ErrCodeQueryEmpty, seekerr.GetCode(err))
	assert.True(t, IsInvalidQuery(err))
}

type denyGate struct{ denied []string }

func (g *denyGate) Allow(caller string) error {
	g.denied = append(g.denied, caller)
	return seekerr.New(seekerr.ErrCodeRateLimited, "slow down", nil)
}

func TestEngine_GateDenial(t *testing.T) {
	gate := &denyGate{}
	e, _ := newTestEngine(t, gate)

	_, err := e.Search(context.Background(), "anything", Options{Caller: "user-7"})
	require.Error(t, err)
	assert.Equal(t, seekerr.ErrCodeRateLimited, seekerr.GetCode(err))
	assert.Equal(t, []string{"user-7"}, gate.denied)
	assert.False(t, IsInvalidQuery(err))
}

func TestEngine_StructuredSyntaxError(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedLines(t, s, "some content")

	_, err := e.Search(context.Background(), `AND (`, Options{Structured: true})
	require.Error(t, err)
	assert.Equal(t, seekerr.ErrCodeInvalidQuery, seekerr.GetCode(err))
	assert.True(t, IsInvalidQuery(err))
}

func TestEngine_StructuredValid(t *testing.T) {
	e, s := newTestEngine(t, nil)
	seedLines(t, s, "alpha beta", "beta gamma", "alpha gamma")

	page, err := e.Search(context.Background(), `alpha AND gamma`, Options{Structured: true})
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, "alpha gamma", page.Hits[0].Record.Content)
}
