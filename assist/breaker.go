package assist

import (
	"context"
	"sync"
	"time"
)

// State represents the breaker state guarding the remote backend.
type State int

const (
	// StateClosed means requests flow to the backend normally.
	StateClosed State = iota
	// StateOpen means the backend is presumed down and requests short-circuit.
	StateOpen
	// StateHalfOpen means a probe request is allowed to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the backend circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long to wait before probing recovery.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// OnStateChange is called when the breaker state changes.
	OnStateChange func(from, to State)

	// IsFailure decides whether an error counts against the breaker.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// Breaker implements the circuit breaker pattern for the assist backend.
type Breaker struct {
	config BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreaker creates a circuit breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs op through the breaker. When the breaker is open it
// returns ErrBackendUnavailable without invoking op.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	b.afterRequest(err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.state
	b.state = StateClosed
	b.failures = 0
	b.probing = false

	if old != StateClosed && b.config.OnStateChange != nil {
		b.config.OnStateChange(old, StateClosed)
	}
}

func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateOpen:
		return ErrBackendUnavailable
	case StateHalfOpen:
		if b.probing {
			return ErrBackendUnavailable
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) afterRequest(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	isFailure := b.config.IsFailure(err)
	old := b.state

	switch b.state {
	case StateClosed:
		if isFailure {
			b.failures++
			b.lastFailure = time.Now()
			if b.failures >= b.config.MaxFailures {
				b.state = StateOpen
			}
		} else {
			b.failures = 0
		}

	case StateHalfOpen:
		b.probing = false
		if isFailure {
			b.lastFailure = time.Now()
			b.state = StateOpen
		} else {
			b.state = StateClosed
			b.failures = 0
		}
	}

	if old != b.state && b.config.OnStateChange != nil {
		b.config.OnStateChange(old, b.state)
	}
}

func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.config.ResetTimeout {
		b.state = StateHalfOpen
		b.probing = false
		if b.config.OnStateChange != nil {
			b.config.OnStateChange(StateOpen, StateHalfOpen)
		}
	}
	return b.state
}
