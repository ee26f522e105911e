package govern

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for governance operations.
var (
	// ErrRateLimited is returned when an identity exhausted its window.
	// Concrete errors carry a retry-after hint; match with errors.Is.
	ErrRateLimited = errors.New("govern: rate limit exceeded")

	// ErrTimeout is returned when an operation misses its deadline.
	ErrTimeout = errors.New("govern: operation timed out")

	// ErrUnknownCategory is returned for a category the bulkhead was not
	// configured with. This is a programming error at the call site, not
	// something external input can trigger.
	ErrUnknownCategory = errors.New("govern: unknown category")
)

// RateLimitError reports a rejected request together with when the
// caller may retry.
type RateLimitError struct {
	Identity   string
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("govern: rate limit exceeded for %q, retry after %ds", e.Identity, e.RetryAfterSeconds())
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds returns the retry delay rounded up to whole seconds,
// never less than 1 for a positive delay.
func (e *RateLimitError) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
