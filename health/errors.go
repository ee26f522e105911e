package health

import "errors"

var (
	// ErrCheckTimeout is set on results for checks that missed the
	// aggregator deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned by Check for an unknown name.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
