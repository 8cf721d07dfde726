package conn

import (
	"testing"
	"time"

	"github.com/justapithecus/sounder/types"
)

func noJitter() float64 { return 0 }

func TestBackoffDelay_ExponentialGrowth(t *testing.T) {
	p := types.ReconnectPolicy{
		MaxAttempts:       10,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, w := range want {
		got := BackoffDelay(p, i+1, noJitter)
		if got != w {
			t.Errorf("attempt %d delay = %s, want %s", i+1, got, w)
		}
	}
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	p := types.ReconnectPolicy{
		MaxAttempts:       20,
		BaseDelay:         time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}

	if got := BackoffDelay(p, 10, noJitter); got != 5*time.Second {
		t.Errorf("attempt 10 delay = %s, want cap %s", got, 5*time.Second)
	}
}

func TestBackoffDelay_JitterIsAdditiveAndBounded(t *testing.T) {
	p := types.ReconnectPolicy{
		MaxAttempts:       5,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}

	base := BackoffDelay(p, 3, noJitter)
	full := BackoffDelay(p, 3, func() float64 { return 0.999 })

	if full < base {
		t.Errorf("jittered delay %s below base %s; jitter must never subtract", full, base)
	}
	limit := time.Duration(float64(base) * (1 + types.MaxJitterFraction))
	if full > limit {
		t.Errorf("jittered delay %s exceeds bound %s", full, limit)
	}
}

func TestBackoffDelay_NonDecreasingUpToCap(t *testing.T) {
	p := types.DefaultReconnectPolicy()

	var prev time.Duration
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		d := BackoffDelay(p, attempt, noJitter)
		if d < prev {
			t.Errorf("delay decreased at attempt %d: %s < %s", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoffDelay_ClampsAttemptFloor(t *testing.T) {
	p := types.DefaultReconnectPolicy()
	if got := BackoffDelay(p, 0, noJitter); got != p.BaseDelay {
		t.Errorf("attempt 0 delay = %s, want base %s", got, p.BaseDelay)
	}
}
