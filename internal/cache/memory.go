package cache

import (
	"context"
	"sync"
	"time"
)

// cacheEntry represents a cached value with expiration.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// DefaultMaxEntries bounds a MemoryCache. Grouped-list keys include the client's
// filter text, so the key space is open ended.
const DefaultMaxEntries = 1024

// MemoryCache is an in-memory implementation of Cache.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	generation uint64 // bumped by Clear
	maxEntries int
	now        func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

var _ Cache = (*MemoryCache)(nil)

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMaxEntries caps the number of stored entries. n <= 0 means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(c *MemoryCache) { c.maxEntries = n }
}

// WithCleanupInterval sets how often expired entries are swept.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// NewMemoryCache creates a new in-memory cache with automatic cleanup.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries:         make(map[string]*cacheEntry),
		maxEntries:      DefaultMaxEntries,
		now:             time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanup()

	return c
}

// Get retrieves a value by key.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || entry.isExpired(c.now()) {
		return nil, ErrCacheMiss
	}

	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(key, value, ttl)
	return nil
}

func (c *MemoryCache) setLocked(key string, value []byte, ttl time.Duration) {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	if _, replacing := c.entries[key]; !replacing && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = &cacheEntry{
		value:     valueCopy,
		expiresAt: c.now().Add(ttl),
	}
}

// Delete removes a value by key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Exists checks if a key exists and is not expired.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || entry.isExpired(c.now()) {
		return false, nil
	}

	return true, nil
}

// GetOrSet retrieves a value or computes and stores it if missing. A value whose
// computation overlapped a Clear is returned but not stored.
func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}
	gen := c.Generation()

	value, err := fn()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.setLocked(key, value, ttl)
	}
	return value, nil
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.generation++
	return nil
}

// Generation counts Clear calls.
func (c *MemoryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Close stops the background cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := c.now()
	for _, entry := range c.entries {
		if !entry.isExpired(now) {
			n++
		}
	}
	return n
}

// cleanup periodically removes expired entries.
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

// evictLocked drops expired entries, or the entry closest to expiry when none
// have expired yet.
func (c *MemoryCache) evictLocked() {
	now := c.now()
	var (
		victim  string
		soonest time.Time
		found   bool
	)
	for key, entry := range c.entries {
		if entry.isExpired(now) {
			delete(c.entries, key)
			continue
		}
		if !found || entry.expiresAt.Before(soonest) {
			victim, soonest, found = key, entry.expiresAt, true
		}
	}
	if found && len(c.entries) >= c.maxEntries {
		delete(c.entries, victim)
	}
}

// removeExpired removes all expired entries.
func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.isExpired(now) {
			delete(c.entries, key)
		}
	}
}
