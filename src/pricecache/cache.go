package pricecache

import (
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// TTL price cache.
//
// Entries are immutable once stored; a new fetch replaces the whole entry.
// Expiry is lazy: readers decide what to do with a stale entry (the price
// service keeps them around as a fallback for upstream outages), and the
// next successful fetch overwrites them.
// -----------------------------------------------------------------------------

type Entry struct {
	Prices    map[string]float64
	FetchedAt time.Time
	ExpiresAt time.Time
}

// -----------------------------------------------------------------------------

// Fresh reports whether the entry is still within its TTL at the given time.
func (e *Entry) Fresh(now time.Time) bool {
	return !now.After(e.ExpiresAt)
}

// -----------------------------------------------------------------------------

type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// -----------------------------------------------------------------------------

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// -----------------------------------------------------------------------------

// Get returns the entry for key, fresh or stale, or nil when absent.
// Never touches the network.
func (c *Cache) Get(key string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// -----------------------------------------------------------------------------

// Put stores a fresh entry for key with the given TTL. The price map is
// copied so later caller mutations cannot leak into the cache.
func (c *Cache) Put(key string, prices map[string]float64, ttl time.Duration) {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}

	now := time.Now()
	entry := &Entry{
		Prices:    cp,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// -----------------------------------------------------------------------------

// Key builds the canonical cache key for a fiat plus an already
// normalized symbol list: "USD|BTC,ETH".
func Key(fiat string, symbols []string) string {
	return strings.ToUpper(fiat) + "|" + strings.Join(symbols, ",")
}
