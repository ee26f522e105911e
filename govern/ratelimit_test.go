package govern

import (
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	defer rl.Close()

	if rl.config.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", rl.config.Window)
	}
	if rl.config.MaxRequests != 60 {
		t.Errorf("MaxRequests = %d, want 60", rl.config.MaxRequests)
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:      time.Second,
		MaxRequests: 3,
	})
	defer rl.Close()

	want := []bool{true, true, true, false}
	for i, wantAllowed := range want {
		d := rl.Check("u")
		if d.Allowed != wantAllowed {
			t.Errorf("Check() call %d allowed = %v, want %v", i+1, d.Allowed, wantAllowed)
		}
	}

	// The rejected call carries a positive retry-after
	d := rl.Check("u")
	if d.Allowed {
		t.Fatal("Check() = allowed after budget exhausted")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", d.RetryAfter)
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
}

func TestRateLimiter_RejectionLeavesCountUnchanged(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:      time.Second,
		MaxRequests: 2,
	})
	defer rl.Close()

	rl.Check("u")
	rl.Check("u")

	// Rejections must not consume anything: status stays identical
	for i := 0; i < 5; i++ {
		rl.Check("u")
	}
	st := rl.Status("u")
	if st.Remaining != 0 {
		t.Errorf("Status().Remaining = %d, want 0", st.Remaining)
	}

	m := rl.Metrics()
	if m.Allowed != 2 {
		t.Errorf("Metrics().Allowed = %d, want 2", m.Allowed)
	}
	if m.Rejected != 5 {
		t.Errorf("Metrics().Rejected = %d, want 5", m.Rejected)
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:      50 * time.Millisecond,
		MaxRequests: 1,
	})
	defer rl.Close()

	if d := rl.Check("u"); !d.Allowed {
		t.Fatal("first Check() not allowed")
	}
	if d := rl.Check("u"); d.Allowed {
		t.Fatal("second Check() allowed, want rejection")
	}

	time.Sleep(70 * time.Millisecond)

	d := rl.Check("u")
	if !d.Allowed {
		t.Error("Check() after window elapsed = rejected, want allowed")
	}
	if d.Remaining != 0 {
		// MaxRequests=1, fresh window with count=1
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
}

func TestRateLimiter_IdentitiesAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:      time.Second,
		MaxRequests: 1,
	})
	defer rl.Close()

	if d := rl.Check("alice"); !d.Allowed {
		t.Error("Check(alice) rejected")
	}
	if d := rl.Check("bob"); !d.Allowed {
		t.Error("Check(bob) rejected, identities must not share windows")
	}
	if d := rl.Check("alice"); d.Allowed {
		t.Error("Check(alice) allowed over budget")
	}
}

func TestRateLimiter_StatusIsPure(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:      time.Second,
		MaxRequests: 3,
	})
	defer rl.Close()

	rl.Check("u")

	for i := 0; i < 10; i++ {
		st := rl.Status("u")
		if st.Remaining != 2 {
			t.Fatalf("Status().Remaining = %d on read %d, want 2", st.Remaining, i)
		}
	}

	// Status for an unseen identity reports a full budget without
	// creating a window.
	st := rl.Status("ghost")
	if !st.Allowed || st.Remaining != 3 {
		t.Errorf("Status(ghost) = %+v, want full budget", st)
	}
	if rl.Metrics().Identities != 1 {
		t.Errorf("Identities = %d, Status must not create windows", rl.Metrics().Identities)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:      time.Second,
		MaxRequests: 1,
		Disabled:    true,
	})
	defer rl.Close()

	for i := 0; i < 10; i++ {
		d := rl.Check("u")
		if !d.Allowed {
			t.Fatalf("Check() rejected on call %d with limiter disabled", i)
		}
		if d.Remaining != 1 {
			t.Errorf("Remaining = %d, want MaxRequests", d.Remaining)
		}
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Window:      30 * time.Millisecond,
		MaxRequests: 5,
	})
	defer rl.Close()

	rl.Check("a")
	rl.Check("b")
	rl.Check("c")

	time.Sleep(50 * time.Millisecond)
	rl.Check("fresh")

	removed := rl.Sweep()
	if removed != 3 {
		t.Errorf("Sweep() = %d, want 3", removed)
	}
	if rl.Metrics().Identities != 1 {
		t.Errorf("Identities = %d after sweep, want 1", rl.Metrics().Identities)
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{
		Identity:   "u",
		RetryAfter: 1500 * time.Millisecond,
	}

	if !errors.Is(err, ErrRateLimited) {
		t.Error("errors.Is(err, ErrRateLimited) = false, want true")
	}
	if got := err.RetryAfterSeconds(); got != 2 {
		t.Errorf("RetryAfterSeconds() = %d, want 2 (rounded up)", got)
	}

	sub := &RateLimitError{RetryAfter: 10 * time.Millisecond}
	if got := sub.RetryAfterSeconds(); got != 1 {
		t.Errorf("RetryAfterSeconds() = %d, want 1 for sub-second delay", got)
	}
}
