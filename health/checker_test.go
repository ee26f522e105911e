package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(""), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	h := Healthy("cache warm")
	if h.Status != StatusHealthy || h.Message != "cache warm" {
		t.Errorf("Healthy() = %+v", h)
	}
	if h.CheckedAt.IsZero() {
		t.Error("Healthy() did not stamp CheckedAt")
	}

	d := Degraded("queue building")
	if d.Status != StatusDegraded {
		t.Errorf("Degraded().Status = %v", d.Status)
	}

	boom := errors.New("disk gone")
	u := Unhealthy("disk stats unavailable", boom)
	if u.Status != StatusUnhealthy || !errors.Is(u.Err, boom) {
		t.Errorf("Unhealthy() = %+v", u)
	}
}

func TestResultWithDetails(t *testing.T) {
	r := Healthy("ok").WithDetails(map[string]any{"hit_rate": 0.9})
	if r.Details["hit_rate"] != 0.9 {
		t.Errorf("Details = %v", r.Details)
	}
	if r.Status != StatusHealthy {
		t.Error("WithDetails changed status")
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("probe", func(ctx context.Context) Result {
		return Healthy("fine")
	})
	if c.Name() != "probe" {
		t.Errorf("Name() = %q", c.Name())
	}
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Check().Status = %v", got.Status)
	}
}
