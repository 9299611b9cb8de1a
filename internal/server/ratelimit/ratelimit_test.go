package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(cfg *Config) (*Limiter, *fakeClock) {
	cfg.CleanupInterval = 0
	l := NewLimiter(cfg)
	clock := newFakeClock()
	l.now = clock.Now
	return l, clock
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter(PricingConfig(60, 3, ""))
	defer l.Stop()

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("10.0.0.1", "/price", "POST")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 60, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/price", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, time.Second, info.RetryAfter)
}

func TestLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(PricingConfig(60, 1, ""))
	defer l.Stop()

	allowed, _ := l.Allow("10.0.0.1", "/price", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/price", "POST")
	require.False(t, allowed)

	clock.Advance(500 * time.Millisecond)
	allowed, info := l.Allow("10.0.0.1", "/price", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 500*time.Millisecond, info.RetryAfter)

	clock.Advance(500 * time.Millisecond)
	allowed, _ = l.Allow("10.0.0.1", "/price", "POST")
	assert.True(t, allowed)
}

func TestLimiter_PerClient(t *testing.T) {
	l, _ := newTestLimiter(PricingConfig(60, 1, ""))
	defer l.Stop()

	allowed, _ := l.Allow("10.0.0.1", "/price", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/price", "POST")
	require.False(t, allowed)

	allowed, _ = l.Allow("10.0.0.2", "/price", "POST")
	assert.True(t, allowed, "other clients keep their own bucket")
}

func TestLimiter_Unlimited(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		clientID string
		path     string
		method   string
	}{
		{name: "reads", cfg: PricingConfig(1, 1, ""), clientID: "10.0.0.1", path: "/runs", method: "GET"},
		{name: "health", cfg: PricingConfig(1, 1, ""), clientID: "10.0.0.1", path: "/health", method: "GET"},
		{name: "metrics", cfg: PricingConfig(1, 1, ""), clientID: "10.0.0.1", path: "/metrics", method: "GET"},
		{name: "whitelisted", cfg: PricingConfig(1, 1, "10.0.0.9, 10.0.0.1"), clientID: "10.0.0.1", path: "/price", method: "POST"},
		{name: "disabled", cfg: PricingConfig(0, 0, ""), clientID: "10.0.0.1", path: "/price", method: "POST"},
		{name: "nil config", cfg: nil, clientID: "10.0.0.1", path: "/price", method: "POST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l *Limiter
			if tt.cfg == nil {
				l = NewLimiter(nil)
			} else {
				l, _ = newTestLimiter(tt.cfg)
			}
			defer l.Stop()

			for i := 0; i < 5; i++ {
				allowed, info := l.Allow(tt.clientID, tt.path, tt.method)
				require.True(t, allowed)
				assert.Zero(t, info.Limit)
			}
		})
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	cfg := PricingConfig(60, 10, "")
	cfg.Blacklist["10.6.6.6"] = true
	l, _ := newTestLimiter(cfg)
	defer l.Stop()

	allowed, _ := l.Allow("10.6.6.6", "/runs", "GET")
	assert.False(t, allowed)
}

func TestLimiter_BatchHasSmallerBudget(t *testing.T) {
	l, _ := newTestLimiter(PricingConfig(20, 10, ""))
	defer l.Stop()

	allowed, info := l.Allow("10.0.0.1", "/price/batch", "POST")
	require.True(t, allowed)
	assert.Equal(t, 2, info.Limit)

	allowed, _ = l.Allow("10.0.0.1", "/price/batch", "POST")
	assert.False(t, allowed, "batch burst is a tenth of the single-call burst")

	allowed, _ = l.Allow("10.0.0.1", "/price", "POST")
	assert.True(t, allowed, "batch and single calls have separate buckets")
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 2, DefaultWindow: time.Minute})
	defer l.Stop()

	allowed, _ := l.Allow("10.0.0.1", "/runs/a", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/runs/b", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/runs/c", "GET")
	assert.False(t, allowed, "unmatched routes share the default bucket")
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(PricingConfig(60, 50, ""))
	defer l.Stop()

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("10.0.0.1", "/price", "POST"); ok {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), allowed)
}

func TestLimiter_Cleanup(t *testing.T) {
	l, clock := newTestLimiter(PricingConfig(60, 5, ""))
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), "/price", "POST")
	}
	require.Equal(t, 3, l.Len())

	clock.Advance(30 * time.Minute)
	l.Allow("10.0.0.0", "/price", "POST")

	clock.Advance(45 * time.Minute)
	l.cleanup()

	assert.Equal(t, 1, l.Len(), "only the recently used bucket survives")
}

func TestLimiter_StopTwice(t *testing.T) {
	l := NewLimiter(PricingConfig(60, 5, ""))
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/price", Method: "POST", Limit: 10},
		{Path: "/runs/", Method: "DELETE", Limit: 5},
	}

	tests := []struct {
		name      string
		path      string
		method    string
		wantLimit int
		wantNil   bool
	}{
		{name: "exact", path: "/price", method: "POST", wantLimit: 10},
		{name: "prefix", path: "/runs/123", method: "DELETE", wantLimit: 5},
		{name: "method mismatch", path: "/price", method: "GET", wantNil: true},
		{name: "no prefix without slash", path: "/price/extra", method: "POST", wantNil: true},
		{name: "health", path: "/health", method: "GET", wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}
