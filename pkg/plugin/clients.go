package plugin

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Clients caches lazily constructed external API clients across plugin
// invocations. Entries are keyed by the credential/config value used to
// build them, so a settings change (API key, base URL) builds a fresh
// client instead of silently reusing a stale one.
type Clients struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewClients creates a client cache. Idle clients expire after an hour.
func NewClients() *Clients {
	return &Clients{
		cache: gocache.New(time.Hour, 10*time.Minute),
	}
}

// GetOrCreate returns the cached client for key, building it on first use.
// Build errors are not cached; the next call retries.
func (c *Clients) GetOrCreate(key string, build func() (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.cache.Get(key); ok {
		return client, nil
	}
	client, err := build()
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, client, gocache.DefaultExpiration)
	return client, nil
}
