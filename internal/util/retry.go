package util

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a retry loop. Delay doubles after each failed attempt
// up to MaxDelay; a zero BaseDelay retries immediately.
type RetryPolicy struct {
	MaxTries  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p RetryPolicy) tries() int {
	if p.MaxTries <= 0 {
		return 1
	}
	return p.MaxTries
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << attempt
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		return p.MaxDelay
	}
	return d
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Do calls fn until it succeeds, the policy is exhausted or ctx is done.
// Context errors returned by fn stop the loop immediately. Returns the last
// error if all attempts fail.
func Do[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := range p.tries() {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if isContextErr(err) {
			return zero, err
		}
		lastErr = err

		if d := p.delay(attempt); d > 0 && attempt < p.tries()-1 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return zero, lastErr
}

// RetryWithContext calls fn up to maxTries times without delay between
// attempts. If maxTries <= 0, it defaults to 1.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	return Do(ctx, RetryPolicy{MaxTries: maxTries}, fn)
}

// RetryErrWithContext is RetryWithContext for functions without a result.
func RetryErrWithContext(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
