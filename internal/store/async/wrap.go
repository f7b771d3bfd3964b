package async

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type timeoutAction[St, O any] struct {
	action  AsyncAction[St, O]
	timeout time.Duration
}

// WithTimeout bounds each execution of action by d. Expiry surfaces as
// ACTION_TIMEOUT; a cancellation coming from the caller passes through.
func WithTimeout[St, O any](action AsyncAction[St, O], d time.Duration) AsyncAction[St, O] {
	return timeoutAction[St, O]{action: action, timeout: d}
}

func (a timeoutAction[St, O]) Name() string { return NameOf(a.action) }

func (a timeoutAction[St, O]) Execute(ctx context.Context, task *Task, st St) (O, error) {
	if a.timeout <= 0 {
		return a.action.Execute(ctx, task, st)
	}
	tctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	out, err := a.action.Execute(tctx, task, st)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return out, Timeout(err)
	}
	return out, err
}

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy matches the refresh loop defaults: three attempts
// starting at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.Reset()
	return b
}

type retryAction[St, O any] struct {
	action AsyncAction[St, O]
	policy RetryPolicy
}

// WithRetry re-runs action on retryable errors with exponential backoff.
// Waits between attempts go through Sleep, so other tasks run meanwhile.
// Wrap an error with backoff.Permanent to stop immediately.
func WithRetry[St, O any](action AsyncAction[St, O], policy RetryPolicy) AsyncAction[St, O] {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	return retryAction[St, O]{action: action, policy: policy}
}

func (a retryAction[St, O]) Name() string { return NameOf(a.action) }

func (a retryAction[St, O]) Execute(ctx context.Context, task *Task, st St) (O, error) {
	b := a.policy.backOff()
	for attempt := uint(1); ; attempt++ {
		out, err := a.action.Execute(ctx, task, st)
		if err == nil {
			return out, nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return out, permanent.Unwrap()
		}
		if !Retryable(err) || attempt >= a.policy.MaxTries {
			return out, err
		}
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return out, err
		}
		if serr := Sleep(ctx, task, delay); serr != nil {
			return out, err
		}
	}
}
