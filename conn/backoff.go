package conn

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/justapithecus/sounder/types"
)

// BackoffDelay computes the delay before reconnect attempt n (1-based):
// min(base * multiplier^(n-1), max) plus a random jitter of up to
// MaxJitterFraction of that delay. Jitter is strictly additive so a
// fleet of clients dropped by the same partition never converges on a
// shared retry schedule.
//
// jitter must return a value in [0,1); pass rand.Float64 in production.
func BackoffDelay(p types.ReconnectPolicy, attempt int, jitter func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	delay += jitter() * types.MaxJitterFraction * delay
	return time.Duration(delay)
}

// defaultJitter is the production jitter source.
func defaultJitter() float64 {
	return rand.Float64()
}
