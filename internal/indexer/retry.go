package indexer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs fn until it succeeds, maxRetries retries are spent or ctx
// ends. Delays grow exponentially from baseDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 64 * baseDelay
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return fn(ctx)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx))
}
