package token

import (
	"sync"
	"time"
)

// timeNow makes it possible to test expiry without sleeping.
var timeNow = time.Now

// CachedToken is one cached access token with its validity window.
type CachedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the token is still usable at now.
func (t CachedToken) Valid(now time.Time) bool {
	return t.Token != "" && now.Before(t.ExpiresAt)
}

// Cache maps a provider key to its cached token. Safe for concurrent use;
// the validity check runs at read time, never at store time.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CachedToken
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]CachedToken)}
}

// Get returns the cached token for key if one exists and has not expired.
func (c *Cache) Get(key string) (CachedToken, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !entry.Valid(timeNow()) {
		return CachedToken{}, false
	}
	return entry, true
}

// Put stores a token under key, replacing any previous entry wholesale.
func (c *Cache) Put(key string, entry CachedToken) {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Invalidate drops the entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Peek returns the raw entry for key without the validity check. Used by
// the ops API to report cache ages; never returns the token to callers that
// would present it downstream.
func (c *Cache) Peek(key string) (CachedToken, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	return entry, ok
}
