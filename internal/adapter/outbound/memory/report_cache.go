package memory

import (
	"sync"

	"github.com/vigilwaf/vigil/internal/domain/analysis"
)

// ReportCache caches Analysis Service reports by sanitized-description hash
// key (analysis.HashKey), the same flush-entire-cache-on-overflow policy as
// ScoreCache: at the request volumes a WAF analysis endpoint actually sees,
// per-entry eviction buys little over one lock-guarded map reset.
type ReportCache struct {
	mu       sync.RWMutex
	entries  map[string]analysis.Report
	capacity int
}

// NewReportCache creates a report cache bounded at capacity entries.
func NewReportCache(capacity int) *ReportCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ReportCache{entries: make(map[string]analysis.Report), capacity: capacity}
}

// Get returns the cached report for hashKey, if present.
func (c *ReportCache) Get(hashKey string) (analysis.Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[hashKey]
	return r, ok
}

// Put stores report under hashKey, flushing the whole cache first if it is
// already at capacity.
func (c *ReportCache) Put(hashKey string, report analysis.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.capacity {
		c.entries = make(map[string]analysis.Report)
	}
	c.entries[hashKey] = report
}
