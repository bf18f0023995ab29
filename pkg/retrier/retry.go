package retrier

import (
	"context"
	"time"

	retry "github.com/avast/retry-go"
)

// Retry default retrier, retries 10 times, with exponential back off
func Retry(retryFn retry.RetryableFunc) error {
	return retry.Do(retryFn)
}

// RetryAttempts retries up to attempts times with a fixed delay between
// tries, stopping early when ctx is canceled or retryFn returns an error
// wrapped with retry.Unrecoverable. Only the last error is returned.
func RetryAttempts(ctx context.Context, retryFn retry.RetryableFunc, attempts uint, delay time.Duration) error {
	return retry.Do(retryFn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// RetryUntil simple retrier until time runs out, checks every tick, does not do exponential back off
func RetryUntil(retryFn retry.RetryableFunc, until time.Duration, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	timer := time.NewTimer(until)
	defer ticker.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ticker.C:
			if err := retryFn(); err == nil {
				return nil
			}
		case <-timer.C:
			return retryFn()
		}
	}
}
