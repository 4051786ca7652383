package feed

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrRetriesExhausted is returned once every attempt for a feed has failed.
var ErrRetriesExhausted = errors.New("feed retries exhausted")

// ErrUnparseable is returned without retrying when the response body is not a feed.
var ErrUnparseable = errors.New("parse feed")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// NewRetryPolicy returns a doubling back-off starting at base that allows
// maxRetries waits before giving up.
func NewRetryPolicy(base time.Duration, maxRetries int) backoff.BackOff {
	if maxRetries < 0 {
		maxRetries = 0
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.MaxInterval = base << maxRetries
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(maxRetries))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
