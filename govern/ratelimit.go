package govern

import (
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Window is the fixed window length.
	// Default: 1 minute
	Window time.Duration

	// MaxRequests is the number of requests allowed per identity per
	// window. Default: 60
	MaxRequests int

	// SweepInterval is how often expired windows are removed for
	// identities that stopped sending requests. Zero disables the sweep
	// goroutine.
	SweepInterval time.Duration

	// Disabled makes Check always allow with a full remaining budget.
	Disabled bool
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type rateWindow struct {
	count int
	start time.Time
	end   time.Time
}

// RateLimiter counts requests per identity within fixed, non-overlapping
// windows. A window resets the instant its end is observed, on read or
// write.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	windows  map[string]*rateWindow
	allowed  int64
	rejected int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its sweep goroutine
// when a sweep interval is configured. Call Close to stop the sweep.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 60
	}

	rl := &RateLimiter{
		config:  config,
		windows: make(map[string]*rateWindow),
		done:    make(chan struct{}),
	}

	if !config.Disabled && config.SweepInterval > 0 {
		go rl.sweepLoop()
	}

	return rl
}

// Check records a request for identity and decides whether it is allowed.
// The request that would exceed MaxRequests is rejected and leaves the
// stored count unchanged.
func (rl *RateLimiter) Check(identity string) Decision {
	if rl.config.Disabled {
		return Decision{Allowed: true, Remaining: rl.config.MaxRequests}
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[identity]
	if !ok || !now.Before(w.end) {
		// First request, or the previous window elapsed: reset
		// atomically with count=1.
		w = &rateWindow{count: 1, start: now, end: now.Add(rl.config.Window)}
		rl.windows[identity] = w
		rl.allowed++
		return Decision{
			Allowed:   true,
			Remaining: rl.config.MaxRequests - 1,
			ResetAt:   w.end,
		}
	}

	if w.count < rl.config.MaxRequests {
		w.count++
		rl.allowed++
		return Decision{
			Allowed:   true,
			Remaining: rl.config.MaxRequests - w.count,
			ResetAt:   w.end,
		}
	}

	rl.rejected++
	return Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    w.end,
		RetryAfter: w.end.Sub(now),
	}
}

// Status reports the current window state for identity without recording
// a request. It applies the same expiry logic as Check but never mutates
// stored state.
func (rl *RateLimiter) Status(identity string) Decision {
	if rl.config.Disabled {
		return Decision{Allowed: true, Remaining: rl.config.MaxRequests}
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[identity]
	if !ok || !now.Before(w.end) {
		return Decision{
			Allowed:   true,
			Remaining: rl.config.MaxRequests,
			ResetAt:   now.Add(rl.config.Window),
		}
	}

	remaining := rl.config.MaxRequests - w.count
	d := Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetAt:   w.end,
	}
	if !d.Allowed {
		d.RetryAfter = w.end.Sub(now)
	}
	return d
}

// Sweep removes windows that already elapsed, bounding memory for
// identities no longer sending requests. Returns the number removed.
func (rl *RateLimiter) Sweep() int {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for identity, w := range rl.windows {
		if !now.Before(w.end) {
			delete(rl.windows, identity)
			removed++
		}
	}
	return removed
}

// RateLimiterMetrics contains rate limiter counters.
type RateLimiterMetrics struct {
	Identities int
	Allowed    int64
	Rejected   int64
}

// Metrics returns current rate limiter metrics.
func (rl *RateLimiter) Metrics() RateLimiterMetrics {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return RateLimiterMetrics{
		Identities: len(rl.windows),
		Allowed:    rl.allowed,
		Rejected:   rl.rejected,
	}
}

// Close stops the background sweep. Idempotent.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Sweep()
		case <-rl.done:
			return
		}
	}
}
