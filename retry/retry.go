// Package retry runs operations repeatedly until they succeed, fail
// permanently or run out of attempts.
//
// An operation signals that its failure is worth another attempt by wrapping
// the error with Transient. Any other error is permanent and is returned to
// the caller as is.
package retry

import (
	"context"
	"errors"

	"github.com/ridge/alluvium/tlog"
	"go.uber.org/zap"
	"time"
)

// DelayFn produces the sequence of delays between attempts. Each call returns
// the delay before the next attempt, and whether another attempt is allowed
// at all. Once it returns false, the caller must not call it again.
//
// The first delay is taken before the very first attempt, so policies
// normally return (0, true) from the first call.
type DelayFn func() (delay time.Duration, ok bool)

// Policy produces independent delay sequences, one per Do call.
//
// Implementations are normally stateless.
type Policy interface {
	Delays() DelayFn
}

// FixedPolicy retries at fixed intervals
type FixedPolicy struct {
	// TryAfter is the delay before the first attempt
	TryAfter time.Duration

	// RetryAfter is the delay before each subsequent attempt
	RetryAfter time.Duration

	// MaxAttempts is the maximum number of attempts taken; 0 = unlimited
	MaxAttempts int
}

// Delays implements interface Policy
func (p FixedPolicy) Delays() DelayFn {
	attempts := 0
	return func() (time.Duration, bool) {
		attempts++
		switch {
		case attempts == 1:
			return p.TryAfter, true
		case p.MaxAttempts != 0 && attempts > p.MaxAttempts:
			return 0, false
		default:
			return p.RetryAfter, true
		}
	}
}

// ErrTransient marks an error as worth retrying
type ErrTransient struct {
	err error
}

func (e ErrTransient) Error() string {
	return e.err.Error()
}

// Unwrap returns the next error in the error chain
func (e ErrTransient) Unwrap() error {
	return e.err
}

// Transient wraps an error to tell Do that the operation should be tried
// again. Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return ErrTransient{err: err}
}

// Do executes the given function, retrying transient failures.
//
// The given Policy determines the delays before each attempt. When the policy
// runs out of attempts, the last transient error is returned unwrapped.
//
// If the function returns success, or an error not wrapped with Transient,
// Do returns that value immediately without trying more.
//
// A transient error is logged unless its message is exactly the same as the
// previous one.
func Do(ctx context.Context, p Policy, f func() error) error {
	startedAt := time.Now()
	delays := p.Delays()
	var lastMessage string
	var t ErrTransient
	for i := 0; ; i++ {
		logger := tlog.Get(ctx).With(zap.Int("attempts", i+1))

		delay, ok := delays()
		if !ok {
			if i == 0 {
				panic("policy denies the first attempt")
			}
			logger.Debug("Giving up after maximum number of attempts", zap.Error(t.err), zap.Duration("duration", time.Since(startedAt)))
			return t.err
		}

		if err := Sleep(ctx, delay); err != nil {
			if i > 0 {
				logger.Debug("Retry canceled", zap.Error(err), zap.Duration("duration", time.Since(startedAt)))
			}
			return err
		}

		if err := f(); !errors.As(err, &t) {
			if i > 0 {
				if err != nil {
					logger.Debug("Retry finished with permanent error", zap.Error(err), zap.Duration("duration", time.Since(startedAt)))
				} else {
					logger.Debug("Retry succeeded", zap.Duration("duration", time.Since(startedAt)))
				}
			}
			return err
		}
		if errors.Is(t.err, ctx.Err()) {
			if i > 0 {
				logger.Debug("Retry canceled", zap.Error(t.err), zap.Duration("duration", time.Since(startedAt)))
			}
			return t.err // f wants to retry but the context is closing
		}

		newMessage := t.err.Error()
		if lastMessage != newMessage {
			logger.Debug("Will retry", zap.Error(t.err))
			lastMessage = newMessage
		}
	}
}

// Do1 is a single return value version of Do
func Do1[T any](ctx context.Context, p Policy, f func() (T, error)) (T, error) {
	var t T
	err := Do(ctx, p, func() error {
		var err error
		t, err = f()
		return err
	})
	return t, err
}

// Sleep waits for the sooner of two events: the context closing (its error is
// returned) or the duration elapsing (nil is returned). A zero or negative
// duration returns immediately.
func Sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(duration):
		return nil
	}
}
