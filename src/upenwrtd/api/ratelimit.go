package api

import (
	"sync"
	"time"
)

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool `mapstructure:"enabled"`
	// BuildRequestsPerMin is the max requests per minute and client for the /api image endpoints.
	BuildRequestsPerMin int `mapstructure:"build_requests_per_min"`
	// APIRequestsPerMin is the max requests per minute and client for the /v1 endpoints.
	APIRequestsPerMin int `mapstructure:"api_requests_per_min"`
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:             true,
		BuildRequestsPerMin: 10,
		APIRequestsPerMin:   120,
	}
}

// RateScope selects which budget a request is counted against
type RateScope string

const (
	ScopeBuild RateScope = "build"
	ScopeAPI   RateScope = "api"
)

const rateWindow = time.Minute

type rateKey struct {
	scope  RateScope
	client string
}

type rateWindowState struct {
	count   int
	resetAt time.Time
}

// RateLimiter counts requests per scope and client in fixed one-minute windows.
type RateLimiter struct {
	limits map[RateScope]int
	now    func() time.Time

	mu      sync.Mutex
	windows map[rateKey]*rateWindowState

	stopCh chan struct{}
	stop   sync.Once
}

// NewRateLimiter creates a rate limiter and starts its background cleanup.
// A scope with a limit <= 0 is not limited.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		limits: map[RateScope]int{
			ScopeBuild: cfg.BuildRequestsPerMin,
			ScopeAPI:   cfg.APIRequestsPerMin,
		},
		now:     time.Now,
		windows: make(map[rateKey]*rateWindowState),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow counts a request from client against scope. When the budget is spent
// it returns false and how long until the window resets.
func (rl *RateLimiter) Allow(scope RateScope, client string) (bool, time.Duration) {
	limit := rl.limits[scope]
	if limit <= 0 {
		return true, 0
	}

	now := rl.now()
	key := rateKey{scope: scope, client: client}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[key] = &rateWindowState{count: 1, resetAt: now.Add(rateWindow)}
		return true, 0
	}
	if w.count >= limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * rateWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.prune(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

// prune drops windows that reset before now
func (rl *RateLimiter) prune(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
			n++
		}
	}
	return n
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() { close(rl.stopCh) })
}
