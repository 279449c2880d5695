package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Entry represents a cached normalization result.
type Entry struct {
	Key      string
	Pipeline string
	Output   string
	StoredAt time.Time
	TTL      time.Duration
}

// IsFresh returns true if the entry is still within its TTL.
func (e *Entry) IsFresh() bool {
	return time.Since(e.StoredAt) < e.TTL
}

// IsExpired returns true if the entry is past its TTL.
func (e *Entry) IsExpired() bool {
	return !e.IsFresh()
}

// Cache stores normalized output by key.
// Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Config holds cache configuration.
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns a cache config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:             time.Hour,
		CleanupInterval: time.Minute,
	}
}

// applyDefaults returns a new Config with default values applied for any zero-valued fields.
func applyDefaults(config Config) Config {
	defaults := DefaultConfig()

	if config.TTL == 0 {
		config.TTL = defaults.TTL
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	return config
}

// Key derives the cache key for text run through the named pipeline.
func Key(pipeline, text string) string {
	d := xxhash.New()
	_, _ = d.WriteString(pipeline)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(text)
	return pipeline + ":" + strconv.FormatUint(d.Sum64(), 16)
}
