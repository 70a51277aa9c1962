package retry

import (
	"time"
)

// ExpPolicy retries with exponentially growing delays
type ExpPolicy struct {
	// Min is the delay before the second attempt (the first attempt runs
	// immediately). Each subsequent delay is Scale times longer than the
	// previous one, capped at Max.
	Min   time.Duration
	Max   time.Duration
	Scale float64

	// MaxAttempts is the maximum number of attempts taken; 0 = unlimited
	MaxAttempts int
}

// DefaultExpPolicy is a suggested configuration
var DefaultExpPolicy = ExpPolicy{
	Min:   10 * time.Millisecond,
	Max:   1 * time.Minute,
	Scale: 2.0,
}

// Delays implements interface Policy
func (p ExpPolicy) Delays() DelayFn {
	backoff := NewExpBackoff(p)
	attempts := 0
	return func() (time.Duration, bool) {
		attempts++
		switch {
		case attempts == 1:
			return 0, true
		case p.MaxAttempts != 0 && attempts > p.MaxAttempts:
			return 0, false
		default:
			return backoff.Backoff(), true
		}
	}
}

// Exponential contains the current state of the backoff logic.
//
// Unlike the policy form, it is meant for long-running loops that alternate
// between failing and working: call Backoff before each reconnection attempt
// and Reset once the connection proves healthy again.
type Exponential struct {
	policy  ExpPolicy
	current time.Duration
}

// NewExpBackoff creates a backoff starting at the policy minimum
func NewExpBackoff(policy ExpPolicy) *Exponential {
	return &Exponential{
		policy:  policy,
		current: policy.Min,
	}
}

// Backoff returns the duration to wait and updates the inner state
func (b *Exponential) Backoff() time.Duration {
	beforeScale := b.current
	b.current = time.Duration(float64(b.current) * b.policy.Scale)
	if b.current > b.policy.Max {
		b.current = b.policy.Max
	}
	return beforeScale
}

// Reset resets the backoff state
func (b *Exponential) Reset() {
	b.current = b.policy.Min
}
