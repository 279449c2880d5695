package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory cache implementation.
type MemoryCache struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	config  Config
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a new in-memory cache with automatic cleanup.
func NewMemoryCache(config Config) *MemoryCache {
	mc := &MemoryCache{
		entries: make(map[string]*Entry),
		config:  applyDefaults(config),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go mc.cleanup()

	return mc
}

// Get retrieves an entry from the cache.
// Returns nil if the entry doesn't exist or has expired.
func (mc *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	mc.mu.RLock()
	entry, exists := mc.entries[key]
	mc.mu.RUnlock()

	if !exists {
		return nil, nil
	}

	if entry.IsExpired() {
		mc.mu.Lock()
		if current, ok := mc.entries[key]; ok && current == entry {
			delete(mc.entries, key)
		}
		mc.mu.Unlock()
		return nil, nil
	}

	entryCopy := *entry
	return &entryCopy, nil
}

// Set stores a copy of the entry in the cache.
func (mc *MemoryCache) Set(ctx context.Context, entry *Entry) error {
	entryCopy := *entry
	if entryCopy.TTL == 0 {
		entryCopy.TTL = mc.config.TTL
	}
	if entryCopy.StoredAt.IsZero() {
		entryCopy.StoredAt = time.Now()
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries[entry.Key] = &entryCopy
	return nil
}

// Delete removes an entry from the cache.
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.entries, key)
	return nil
}

// Clear removes all entries from the cache.
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*Entry)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		close(mc.stopCh)
	})
	<-mc.doneCh
	return nil
}

// cleanup periodically removes expired entries.
func (mc *MemoryCache) cleanup() {
	ticker := time.NewTicker(mc.config.CleanupInterval)
	defer ticker.Stop()
	defer close(mc.doneCh)

	for {
		select {
		case <-ticker.C:
			mc.removeExpired()
		case <-mc.stopCh:
			return
		}
	}
}

// removeExpired removes all entries past their TTL.
func (mc *MemoryCache) removeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for key, entry := range mc.entries {
		if entry.IsExpired() {
			delete(mc.entries, key)
		}
	}
}
