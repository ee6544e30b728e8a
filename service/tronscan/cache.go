package tronscan

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes fetch outcomes per Query for its own lifetime.
// Failed outcomes are memoized as well, so a query that exhausted its
// retries is not retried by later callers. Context cancellation is the
// exception: it belongs to the caller, not the query.
type Cache struct {
	mu      sync.RWMutex
	entries map[Query]cacheEntry
	flights singleflight.Group
}

type cacheEntry struct {
	txns []Transaction
	err  error
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Query]cacheEntry)}
}

// Do returns the memoized outcome for q, calling fetch at most once per
// query. Concurrent callers asking for the same uncached query share a single
// fetch. hit is false only for the caller whose fetch actually ran.
func (c *Cache) Do(q Query, fetch func() ([]Transaction, error)) (txns []Transaction, hit bool, err error) {
	if e, ok := c.lookup(q); ok {
		return e.txns, true, e.err
	}

	fetched := false
	v, _, _ := c.flights.Do(q.key(), func() (any, error) {
		if e, ok := c.lookup(q); ok {
			return e, nil
		}
		fetched = true
		txns, err := fetch()
		e := cacheEntry{txns: txns, err: err}
		if !isContextErr(err) {
			c.mu.Lock()
			c.entries[q] = e
			c.mu.Unlock()
		}
		return e, nil
	})

	e := v.(cacheEntry)
	return e.txns, !fetched, e.err
}

// Len returns the number of memoized queries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every memoized outcome.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Query]cacheEntry)
}

func (c *Cache) lookup(q Query) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[q]
	return e, ok
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
