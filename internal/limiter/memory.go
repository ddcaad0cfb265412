package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryControl is the in-process SessionControl used for local
// development and tests. Blocks and cooldowns are deadlines in a map;
// message budgets are per-session token buckets.
type MemoryControl struct {
	mu       sync.Mutex
	blocked  map[string]time.Time
	limiters map[string]*rate.Limiter

	ratePerMinute float64
	burst         int

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryControl creates an in-memory session controller allowing
// ratePerMinute messages per session with the given burst.
func NewMemoryControl(ratePerMinute float64, burst int) *MemoryControl {
	return &MemoryControl{
		blocked:       make(map[string]time.Time),
		limiters:      make(map[string]*rate.Limiter),
		ratePerMinute: ratePerMinute,
		burst:         burst,
		now:           time.Now,
	}
}

func (c *MemoryControl) BlockSession(_ context.Context, sessionKey string, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	until := c.now().Add(d)
	if existing, ok := c.blocked[sessionKey]; !ok || until.After(existing) {
		c.blocked[sessionKey] = until
	}
	return nil
}

func (c *MemoryControl) IsBlocked(_ context.Context, sessionKey string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.blocked[sessionKey]
	if !ok {
		return false, nil
	}
	if c.now().After(until) {
		delete(c.blocked, sessionKey)
		return false, nil
	}
	return true, nil
}

// Cooldown is a short block; both share the deadline map.
func (c *MemoryControl) Cooldown(ctx context.Context, sessionKey string, d time.Duration) error {
	return c.BlockSession(ctx, sessionKey, d)
}

func (c *MemoryControl) AllowMessage(_ context.Context, sessionKey string) (bool, error) {
	c.mu.Lock()
	lim, ok := c.limiters[sessionKey]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.ratePerMinute/60.0), c.burst)
		c.limiters[sessionKey] = lim
	}
	c.mu.Unlock()
	return lim.Allow(), nil
}
