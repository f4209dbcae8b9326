package account

import (
	"sync"
	"time"
)

type cacheEntry struct {
	account  *Account
	storedAt time.Time
}

// Cache keeps recently loaded accounts for cheap route checks. Entries older
// than the TTL are treated as absent.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
	mu      sync.RWMutex
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(id string) (*Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		return nil, false
	}
	return clone(e.account), true
}

func (c *Cache) Put(a *Account) {
	if a == nil || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[a.ID] = cacheEntry{account: clone(a), storedAt: c.now()}
	c.pruneLocked()
}

func (c *Cache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *Cache) pruneLocked() {
	now := c.now()
	for id, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
}
