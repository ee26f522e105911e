package govern

import (
	"context"
	"time"

	"github.com/jonwraymond/localops/validate"
)

// Request describes one governed operation.
type Request struct {
	// Category is the bulkhead category the operation runs under.
	Category string

	// Identity is the caller identity the rate limit is keyed by.
	Identity string

	// Paths are filesystem inputs to validate. The normalized results
	// are handed to the operation via Grant in the same order.
	Paths []string

	// Command and Args, when Command is non-empty, are validated as a
	// command invocation.
	Command string
	Args    []string

	// Timeout bounds the operation. Zero means no timeout.
	Timeout time.Duration
}

// Grant carries the validated, normalized inputs an admitted operation
// must use instead of the raw request values.
type Grant struct {
	// Paths are the normalized absolute paths, one per Request.Paths.
	Paths []string
}

// Gate composes validation, rate limiting, concurrency admission, and an
// optional timeout around an operation. It is the only entry point
// operation handlers use.
//
// Any nil component is skipped, so tests can exercise stages in
// isolation; production wiring supplies all of them.
type Gate struct {
	validator *validate.Validator
	limiter   *RateLimiter
	bulkhead  *Bulkhead
}

// NewGate creates a Gate over the given primitives.
func NewGate(validator *validate.Validator, limiter *RateLimiter, bulkhead *Bulkhead) *Gate {
	return &Gate{
		validator: validator,
		limiter:   limiter,
		bulkhead:  bulkhead,
	}
}

// Do runs op under governance: validate inputs, check the rate limit
// (immediate rejection, no waiting), acquire a bulkhead slot (may wait),
// then execute with the optional timeout. The slot is released exactly
// once regardless of the outcome. Cache consultation stays inside op;
// cache keys are operation-specific.
func (g *Gate) Do(ctx context.Context, req Request, op func(ctx context.Context, grant Grant) error) error {
	grant := Grant{}

	if g.validator != nil {
		for _, p := range req.Paths {
			safe, err := g.validator.Path(p)
			if err != nil {
				return err
			}
			grant.Paths = append(grant.Paths, safe)
		}
		if req.Command != "" {
			if err := g.validator.Command(req.Command, req.Args); err != nil {
				return err
			}
		}
	} else {
		grant.Paths = req.Paths
	}

	if g.limiter != nil {
		d := g.limiter.Check(req.Identity)
		if !d.Allowed {
			return &RateLimitError{
				Identity:   req.Identity,
				RetryAfter: d.RetryAfter,
				ResetAt:    d.ResetAt,
			}
		}
	}

	run := func(ctx context.Context) error {
		return WithTimeout(ctx, req.Timeout, func(ctx context.Context) error {
			return op(ctx, grant)
		})
	}

	if g.bulkhead != nil {
		return g.bulkhead.Do(ctx, req.Category, run)
	}
	return run(ctx)
}
