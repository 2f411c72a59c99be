package sources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is the last successful payload for a key and when its fetch started.
type Entry[T any] struct {
	Payload   T
	FetchedAt time.Time
}

// Cache is a get-or-fetch cache with a freshness window per call. At most one
// fetch per key is in flight; concurrent misses share its result.
type Cache[T any] struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry[T]

	group singleflight.Group
}

func NewCache[T any](now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{now: now, entries: map[string]Entry[T]{}}
}

// GetOrFetch returns the entry for key while now-FetchedAt <= ttl, otherwise
// runs fetch and installs its result. A failed fetch leaves the previous
// entry in place and returns the error.
//
// The fetch runs detached from ctx cancellation; ctx only bounds how long
// this caller waits for it.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (Entry[T], error) {
	if e, ok := c.fresh(key, ttl); ok {
		return e, nil
	}

	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// a flight that finished just before this one started may have
		// refreshed the entry already
		if e, ok := c.fresh(key, ttl); ok {
			return e, nil
		}
		started := c.now()
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		return c.install(key, Entry[T]{Payload: v, FetchedAt: started}), nil
	})

	select {
	case <-ctx.Done():
		return Entry[T]{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entry[T]{}, res.Err
		}
		return res.Val.(Entry[T]), nil
	}
}

// Peek returns the stored entry regardless of age.
func (c *Cache[T]) Peek(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache[T]) fresh(key string, ttl time.Duration) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.FetchedAt) > ttl {
		return Entry[T]{}, false
	}
	return e, true
}

// install keeps FetchedAt monotonic: an older result never replaces a newer
// one.
func (c *Cache[T]) install(key string, e Entry[T]) Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[key]; ok && !e.FetchedAt.After(cur.FetchedAt) {
		return cur
	}
	c.entries[key] = e
	return e
}
