package orchestrator

import (
	"context"
	"math/rand"
	"time"
)

// backoffDelay computes the exponential backoff for a zero-based retry
// attempt: base * 2^attempt plus up to one second of jitter, capped.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}

	delay += time.Duration(rand.Int63n(int64(time.Second)))
	if delay > cap {
		return cap
	}
	return delay
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
