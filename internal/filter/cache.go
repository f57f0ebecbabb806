package filter

import "sync"

// cacheKey identifies a resolved subquery by its canonical SELECT text and
// target dataset. Canonical rendering makes the key stable across
// whitespace and keyword-case variations of the same filter.
type cacheKey struct {
	query   string
	dataset string
}

// SubqueryCache memoizes resolved subqueries for the life of the process.
// Entries never expire and are never evicted; uploaded datasets only change
// when replaced, and Clear is the documented reaction to a replacement.
// Safe for concurrent use.
type SubqueryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*SubqueryResult
	hits    uint64
	misses  uint64
}

// NewSubqueryCache returns an empty cache.
func NewSubqueryCache() *SubqueryCache {
	return &SubqueryCache{entries: make(map[cacheKey]*SubqueryResult)}
}

// Lookup returns the cached result for a subquery against a dataset and
// counts the hit or miss.
func (c *SubqueryCache) Lookup(query, dataset string) (*SubqueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[cacheKey{query: query, dataset: dataset}]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return res, ok
}

// Store saves a resolved subquery.
func (c *SubqueryCache) Store(query, dataset string, res *SubqueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{query: query, dataset: dataset}] = res
}

// Clear drops every entry. Hit and miss counters survive, so cache
// effectiveness remains observable across dataset refreshes.
func (c *SubqueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*SubqueryResult)
}

// Len returns the number of cached subqueries.
func (c *SubqueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns a snapshot of the counters.
func (c *SubqueryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
