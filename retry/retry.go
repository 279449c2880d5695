// Package retry runs operations again after transient failures, with exponential backoff
// and jitter between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/joeychilson/textfilter/config"
)

const (
	// jitterPercent is the percentage of jitter to add to retry delays (+/- 25%).
	jitterPercent = 0.25
)

// Retrier runs operations with retry logic and exponential backoff.
type Retrier struct {
	config config.RetryConfig
}

// New creates a new Retrier with the given retry configuration.
func New(cfg config.RetryConfig) *Retrier {
	return &Retrier{config: cfg}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls op until it succeeds, returns a Permanent error, ctx is done, or the configured
// retries are used up.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxRetries := r.config.GetMaxRetries()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if maxRetries == 0 || ctx.Err() != nil {
			return err
		}

		lastErr = fmt.Errorf("attempt %d failed: %w", attempt, err)

		if attempt < maxRetries {
			backoff := r.calculateBackoff(attempt)
			if sleepErr := r.sleep(ctx, backoff); sleepErr != nil {
				return sleepErr
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

// calculateBackoff computes the backoff duration for a given attempt using exponential backoff.
func (r *Retrier) calculateBackoff(attempt int) time.Duration {
	initialDelay := r.config.GetInitialDelay()
	maxDelay := r.config.GetMaxDelay()
	multiplier := r.config.GetMultiplier()

	delay := float64(initialDelay) * math.Pow(multiplier, float64(attempt))

	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	return r.addJitter(time.Duration(delay))
}

// addJitter adds random jitter of +/- 25% of the duration.
func (r *Retrier) addJitter(duration time.Duration) time.Duration {
	if duration == 0 {
		return 0
	}

	jitterRange := float64(duration) * jitterPercent
	jitter := (rand.Float64()*2.0 - 1.0) * jitterRange

	result := float64(duration) + jitter
	if result < 0 {
		return 0
	}

	return time.Duration(result)
}

// sleep waits for the specified duration or until context is cancelled.
func (r *Retrier) sleep(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
