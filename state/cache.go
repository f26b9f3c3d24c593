// Package state loads the live configuration of every desired node and edge
// from its endpoint.
//
// Reads performed during one reconciliation run go through a Cache. The cache
// is created with the run and discarded with it; it is never persisted, so a
// later run always observes fresh state.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/metrics"
)

type cacheKey struct {
	kind  string
	point string
}

type cacheEntry struct {
	done  chan struct{}
	value any
	err   error
}

// Cache memoizes reads by (kind, point) for the lifetime of one run.
// Successful reads are written once; failed reads are handed to the callers
// waiting on them and then forgotten.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	metrics *metrics.Registry
}

// NewCache creates an empty cache. m may be nil.
func NewCache(m *metrics.Registry) *Cache {
	return &Cache{
		entries: make(map[cacheKey]*cacheEntry),
		metrics: m,
	}
}

// Len returns the number of cached or in-flight reads.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Kind builds a cache kind from a read name and its arguments, e.g.
// Kind("peer", eid) for the peer configured for eid.
func Kind(name string, args ...any) string {
	for _, arg := range args {
		name += fmt.Sprintf("/%v", arg)
	}
	return name
}

// Read returns the value of the read identified by (kind, point), calling fn
// on first use. A nil cache calls fn every time.
func Read[T any](ctx context.Context, c *Cache, kind string, point interfaces.Point, fn func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fn(ctx)
	}

	key := cacheKey{kind: kind, point: point.Key()}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{done: make(chan struct{})}
		c.entries[key] = e
	}
	c.mu.Unlock()

	if !ok {
		var v T
		v, e.err = fn(ctx)
		e.value = v
		c.metrics.RecordRead(kind, e.err)
		if e.err != nil {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		close(e.done)
		return v, e.err
	}
	c.metrics.RecordCachedRead(kind)

	var zero T
	select {
	case <-e.done:
		if e.err != nil {
			return zero, e.err
		}
		return e.value.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
