package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a string-keyed markdown cache. A zero ttl means the entry never
// expires.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// Key builds the cache key of a converted page: the URL, then each enabled
// flag after a space. Valid URLs never contain a space, so flagged keys
// cannot collide with another URL's plain key. Keys are not hashed so that
// entries stay human-readable.
func Key(url string, detailed, llmFilter bool) string {
	key := url
	if detailed {
		key += " detailed"
	}
	if llmFilter {
		key += " llm"
	}
	return key
}

// entry holds a cached value with its expiry. A zero expiresAt never expires.
type entry struct {
	value     string
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemory creates a Memory store with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries until
// Close is called.
func NewMemory(maxEntries int) *Memory {
	c := newMemory(maxEntries)
	go c.cleanupLoop(5 * time.Minute)
	return c
}

func newMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Memory{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
}

// Get returns the value stored under key if it exists and has not expired.
func (c *Memory) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || e.expired(c.now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Put stores value under key. If the store is at capacity, a random entry
// is evicted to make room.
func (c *Memory) Put(_ context.Context, key, value string, ttl time.Duration) error {
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = e
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Memory) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *Memory) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Memory) evictExpired() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.store {
		if e.expired(now) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}
