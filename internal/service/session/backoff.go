package session

import (
	"math/rand"
	"time"
)

// Reconnect configures the automatic reconnect policy. The zero value
// disables it, keeping the default behavior where a retry is an explicit
// Open call after the session surfaces as disconnected.
type Reconnect struct {
	Enabled bool
	// BaseDelay is the delay before the first retry; defaults to 500ms.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth; defaults to 30s.
	MaxDelay time.Duration
	// MaxAttempts bounds consecutive failed attempts; 0 means unbounded.
	MaxAttempts int
}

// delay computes the backoff for a 1-based attempt number: exponential
// growth capped at MaxDelay, with the result jittered into [d/2, d].
func (r Reconnect) delay(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := r.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	d := base
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}

	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
