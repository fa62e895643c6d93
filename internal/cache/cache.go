// Package cache implements the semantic response cache: answers to recently
// asked questions, keyed by the normalized transcript plus a fingerprint of
// the game state the answer depended on. The cache is an optimization only;
// disabling it changes latency and API call volume, never answers.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a stored answer stays live unless configured
// otherwise.
const DefaultTTL = 5 * time.Minute

// Key identifies one cached answer.
type Key struct {
	// Query is the normalized transcript text.
	Query string

	// Fingerprint captures the game-state fields the answer's validity
	// depends on (see state.GameState.Fingerprint).
	Fingerprint string
}

// Entry is a stored answer.
type Entry struct {
	Answer   string
	StoredAt time.Time
}

// Option is a functional option for [Cache].
type Option func(*Cache)

// WithTTL sets the entry lifetime. A zero or negative TTL disables the
// cache: every lookup misses and stores are dropped.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache is a TTL-bounded in-memory response cache. Expired entries are
// treated as misses and evicted lazily on the lookup that finds them; Sweep
// exists for callers that want eager cleanup. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Entry
	ttl     time.Duration
	now     func() time.Time
}

// New constructs a Cache with [DefaultTTL] unless overridden.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup returns the live entry for key, or ok=false on a miss. An expired
// entry counts as a miss and is evicted.
func (c *Cache) Lookup(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return Entry{}, false
	}
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(e.StoredAt) >= c.ttl {
		delete(c.entries, key)
		return Entry{}, false
	}
	return e, true
}

// Store records answer under key, replacing any previous entry.
func (c *Cache) Store(key Key, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return
	}
	c.entries[key] = Entry{Answer: answer, StoredAt: c.now()}
}

// SetTTL changes the expiry horizon for subsequent lookups and stores.
// Entries already held keep their StoredAt; a shorter TTL can expire them
// retroactively on the next lookup.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Sweep removes every expired entry and returns how many were evicted.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.StoredAt) >= c.ttl {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of entries currently held, live or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
