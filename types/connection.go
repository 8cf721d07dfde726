package types

import (
	"fmt"
	"time"
)

// ConnectionState represents the socket lifecycle state.
// Mutated only by the connection manager; never persisted, always
// reconstructed as idle on process start.
type ConnectionState string

// Connection state constants.
const (
	ConnIdle         ConnectionState = "idle"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnDisconnected ConnectionState = "disconnected"
	ConnError        ConnectionState = "error"
)

// MaxJitterFraction bounds the random additive jitter applied to a
// computed backoff delay. Jitter is always added, never subtracted,
// to avoid synchronized retry storms across clients.
const MaxJitterFraction = 0.3

// ReconnectPolicy is the immutable reconnection configuration.
// Supplied at construction and never mutated.
type ReconnectPolicy struct {
	// MaxAttempts is the number of scheduled reconnects before
	// giving up. Exhaustion leaves the manager disconnected.
	MaxAttempts int
	// BaseDelay is the delay before the first reconnect attempt.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff delay (before jitter).
	MaxDelay time.Duration
	// BackoffMultiplier grows the delay per attempt.
	BackoffMultiplier float64
}

// DefaultReconnectPolicy returns the stock reconnection policy.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:       5,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Validate checks policy invariants.
func (p ReconnectPolicy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be >= 0, got %d", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %s", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay %s below base delay %s", p.MaxDelay, p.BaseDelay)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %g", p.BackoffMultiplier)
	}
	return nil
}
