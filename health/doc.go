// Package health provides health checking for the governance runtime.
//
// A Checker reports the health of one component: the cache, the concurrency
// limiter, the rate limiter, host memory, or the disk holding the workspace.
// The Aggregator combines registered checkers into a composite status that
// the operational HTTP listener exposes.
//
// # Basic Usage
//
//	agg := health.NewAggregator()
//	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
//	agg.Register("bulkhead", health.NewBulkheadChecker(bulkhead))
//	agg.Register("cache", health.NewCacheChecker("cache", store, 0.2))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// registers /healthz (liveness), /readyz (readiness), and /health (detailed
// JSON) on the mux.
package health
