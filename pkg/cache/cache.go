// Package cache memoizes resolved profile picture URLs for a fixed TTL.
//
// Entries are never evicted eagerly: a stale entry is reported as a miss and
// replaced by the next Put for the same key. Failures are never stored here;
// that is the caller's contract.
package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"igavatar/pkg/metrics"
)

// DefaultTTL is how long a resolved URL stays fresh
const DefaultTTL = 10 * time.Minute

// Clock returns the current time
type Clock func() time.Time

// Entry is a cached URL and the time it was resolved
type Entry struct {
	URL        string
	InsertedAt time.Time
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Cache maps normalized usernames to picture URLs. Safe for concurrent use.
type Cache struct {
	items   *gocache.Cache
	ttl     time.Duration
	clock   Clock
	metrics *metrics.Metrics

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source used to judge staleness
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithMetrics records hits and misses on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates a cache whose entries are fresh for ttl (DefaultTTL when ttl <= 0)
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache{
		// staleness is judged against clock, so go-cache never expires or sweeps
		items: gocache.New(gocache.NoExpiration, 0),
		ttl:   ttl,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the cache's notion of the current time
func (c *Cache) Now() time.Time {
	return c.clock()
}

// TTL returns the freshness window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the URL stored for key if it is still fresh
func (c *Cache) Get(key string) (string, bool) {
	entry, ok := c.lookup(key)
	if ok && c.clock().Sub(entry.InsertedAt) < c.ttl {
		c.hits.Add(1)
		c.metrics.RecordCacheLookup(true)
		return entry.URL, true
	}

	c.misses.Add(1)
	c.metrics.RecordCacheLookup(false)
	return "", false
}

// Put stores url for key, stamped with insertedAt. It overwrites any
// existing entry, stale or not.
func (c *Cache) Put(key, url string, insertedAt time.Time) {
	c.items.Set(key, Entry{URL: url, InsertedAt: insertedAt}, gocache.NoExpiration)
}

// Peek returns the raw entry for key, fresh or stale, without touching counters
func (c *Cache) Peek(key string) (Entry, bool) {
	return c.lookup(key)
}

// Len returns the number of stored entries, including stale ones
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
}

func (c *Cache) lookup(key string) (Entry, bool) {
	v, found := c.items.Get(key)
	if !found {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	return entry, ok
}
