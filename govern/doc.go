// Package govern provides the resource governance primitives every
// operation handler runs through before touching the OS or the network.
//
// # Primitives
//
//   - RateLimiter: Fixed-window request counting per caller identity.
//     The request that would exceed the window's budget is rejected with
//     a retry-after hint; nothing waits.
//
//   - Bulkhead: Per-category admission control. Each named category
//     (fileOps, searches, commands, ...) has a concurrency ceiling and a
//     strict-FIFO wait queue for operations that must wait for a slot.
//
//   - Timeout: Races an operation against a deadline and discards the
//     late result once the deadline fires.
//
//   - Gate: The composition point. It validates inputs, checks the rate
//     limit, acquires a bulkhead slot, and optionally bounds execution
//     time, in that order, releasing the slot exactly once no matter how
//     the operation ends.
//
// # Usage
//
//	limiter := govern.NewRateLimiter(govern.RateLimiterConfig{
//	    Window:      time.Minute,
//	    MaxRequests: 60,
//	})
//	bulkhead, _ := govern.NewBulkhead(govern.BulkheadConfig{
//	    Categories: map[string]int{"fileOps": 8, "searches": 4},
//	})
//	gate := govern.NewGate(validator, limiter, bulkhead)
//
//	err := gate.Do(ctx, govern.Request{
//	    Category: "fileOps",
//	    Identity: session.Key(),
//	    Paths:    []string{input.Path},
//	    Timeout:  10 * time.Second,
//	}, func(ctx context.Context, grant govern.Grant) error {
//	    return readFile(ctx, grant.Paths[0])
//	})
//
// Governance state is process-local and in-memory; nothing is shared
// across processes or persisted across restarts.
package govern
