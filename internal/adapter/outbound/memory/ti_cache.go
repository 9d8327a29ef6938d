package memory

import (
	"sync"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/ti"
)

// TTL classes named in the spec: per-indicator lookups live 30 minutes;
// feed snapshots live 12 hours for one provider and 1 hour for another.
const (
	IndicatorLookupTTL = 30 * time.Minute
	FeedTTLLong        = 12 * time.Hour
	FeedTTLShort       = time.Hour
)

// TICache is the TI Lookup Cache keyed by (provider, indicator type, value).
type TICache struct {
	mu      sync.RWMutex
	entries map[string]ti.CacheEntry
}

// NewTICache creates an empty TI cache.
func NewTICache() *TICache {
	return &TICache{entries: make(map[string]ti.CacheEntry)}
}

func ticacheKey(provider string, ind ti.Indicator) string {
	return provider + "|" + ind.Type + "|" + ind.Value
}

// Get returns the cached result if present and not expired.
func (c *TICache) Get(provider string, ind ti.Indicator) (ti.LookupResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[ticacheKey(provider, ind)]
	if !ok || entry.Expired(time.Now()) {
		return ti.LookupResult{}, false
	}
	return entry.Result, true
}

// Put stores result with the given TTL.
func (c *TICache) Put(provider string, ind ti.Indicator, result ti.LookupResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ticacheKey(provider, ind)] = ti.CacheEntry{
		Result:    result,
		ExpiresAt: time.Now().Add(ttl),
	}
}
