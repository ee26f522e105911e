package govern

import (
	"context"
	"time"
)

// WithTimeout races op against d. When the deadline fires first the
// operation is treated as failed with ErrTimeout; its eventual result is
// drained and discarded so the goroutine never blocks or surfaces after
// the caller has moved on.
//
// Cancellation is advisory: the derived context is cancelled, but an
// operation that ignores it simply runs to completion unobserved. There
// is no other cancellation signal sent into a running operation.
func WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Buffered so the late send never blocks the abandoned goroutine.
	done := make(chan error, 1)

	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
