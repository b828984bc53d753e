package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the wait for an order row that may not be committed yet
// when a webhook arrives.
type RetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Deadline     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	InitialDelay: 250 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Deadline:     10 * time.Second,
}

// BackOff returns an exponential backoff that gives up after Deadline or when
// ctx ends. Zero fields fall back to DefaultRetryPolicy.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = orDefault(p.InitialDelay, DefaultRetryPolicy.InitialDelay)
	b.MaxInterval = orDefault(p.MaxDelay, DefaultRetryPolicy.MaxDelay)
	b.MaxElapsedTime = orDefault(p.Deadline, DefaultRetryPolicy.Deadline)
	b.Reset()
	return backoff.WithContext(b, ctx)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
