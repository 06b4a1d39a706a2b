// Package gate provides per-caller admission control for search
// traffic. Callers are throttled to a minimum interval between calls;
// the caller table is LRU-bounded so hostile traffic cannot grow it
// without limit.
package gate

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	seekerr "github.com/logseek/logseek/internal/errors"
)

// Config configures a Gate.
type Config struct {
	// MinInterval is the minimum gap between calls from one caller.
	MinInterval time.Duration

	// MaxCallers bounds the tracked caller table.
	MaxCallers int
}

// DefaultConfig returns gate defaults.
func DefaultConfig() Config {
	return Config{
		MinInterval: 3 * time.Second,
		MaxCallers:  10000,
	}
}

type callerState struct {
	last    time.Time
	strikes int
}

// Gate enforces a minimum interval between calls per caller. Repeat
// violations within the window escalate the wait suggestion.
type Gate struct {
	mu       sync.Mutex
	callers  *lru.Cache[string, *callerState]
	interval time.Duration
	now      func() time.Time
}

// New creates a gate. Panics only on impossible cache sizes, which
// Config validation upstream prevents.
func New(cfg Config) (*Gate, error) {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultConfig().MinInterval
	}
	if cfg.MaxCallers <= 0 {
		cfg.MaxCallers = DefaultConfig().MaxCallers
	}
	cache, err := lru.New[string, *callerState](cfg.MaxCallers)
	if err != nil {
		return nil, seekerr.New(seekerr.ErrCodeInternal,
			"failed to create caller table", err)
	}
	return &Gate{
		callers:  cache,
		interval: cfg.MinInterval,
		now:      time.Now,
	}, nil
}

// Allow admits or rejects one call from caller. An empty caller id is
// always admitted; anonymous traffic is the CLI's own.
func (g *Gate) Allow(caller string) error {
	if caller == "" {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	state, ok := g.callers.Get(caller)
	if !ok {
		g.callers.Add(caller, &callerState{last: now})
		return nil
	}

	elapsed := now.Sub(state.last)
	if elapsed >= g.interval {
		state.last = now
		state.strikes = 0
		return nil
	}

	// Strikes escalate the suggested wait but never block harder than
	// the configured interval; this is pacing, not banning.
	state.strikes++
	wait := g.interval - elapsed
	err := seekerr.New(seekerr.ErrCodeRateLimited,
		fmt.Sprintf("too many requests, retry in %s", wait.Round(time.Millisecond)), nil)
	if state.strikes > 2 {
		err = err.WithSuggestion("repeated rapid requests; slow down to one search per " +
			g.interval.String())
	}
	return err
}

// Reset forgets all tracked callers.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callers.Purge()
}
