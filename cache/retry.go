package cache

import (
	"context"

	"github.com/joeychilson/textfilter/retry"
)

// RetryingCache retries failed operations of the wrapped cache.
type RetryingCache struct {
	cache   Cache
	retrier *retry.Retrier
}

var _ Cache = (*RetryingCache)(nil)

// WithRetry wraps c so that failed operations are retried by r. Misses are not failures.
func WithRetry(c Cache, r *retry.Retrier) *RetryingCache {
	return &RetryingCache{cache: c, retrier: r}
}

// Get retrieves an entry, retrying backend errors.
func (rc *RetryingCache) Get(ctx context.Context, key string) (*Entry, error) {
	var entry *Entry
	err := rc.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		entry, err = rc.cache.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Set stores an entry, retrying backend errors.
func (rc *RetryingCache) Set(ctx context.Context, entry *Entry) error {
	return rc.retrier.Do(ctx, func(ctx context.Context) error {
		return rc.cache.Set(ctx, entry)
	})
}

// Delete removes an entry, retrying backend errors.
func (rc *RetryingCache) Delete(ctx context.Context, key string) error {
	return rc.retrier.Do(ctx, func(ctx context.Context) error {
		return rc.cache.Delete(ctx, key)
	})
}

// Clear removes all entries, retrying backend errors.
func (rc *RetryingCache) Clear(ctx context.Context) error {
	return rc.retrier.Do(ctx, func(ctx context.Context) error {
		return rc.cache.Clear(ctx)
	})
}

// Close closes the wrapped cache.
func (rc *RetryingCache) Close() error {
	return rc.cache.Close()
}
