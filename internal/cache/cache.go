package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const shardCount = 16

// Cache is a fingerprint-keyed TTL cache. Keys are locked per shard, not
// globally, so concurrent distinct requests never serialize on each other.
// Instances are injectable with a defined lifecycle — not ambient singletons
// — so tests can substitute isolated caches.
type Cache[T any] struct {
	shards [shardCount]*shard[T]

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

type shard[T any] struct {
	mu        sync.RWMutex
	entries   map[string]entry[T]
	bySubject map[string][]string
}

type entry[T any] struct {
	value     T
	subjectID string
	expiresAt time.Time
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	c := &Cache[T]{nowFunc: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard[T]{
			entries:   make(map[string]entry[T]),
			bySubject: make(map[string][]string),
		}
	}
	return c
}

// WithNow sets the clock, for tests.
func (c *Cache[T]) WithNow(now func() time.Time) *Cache[T] {
	c.nowFunc = now
	return c
}

func (c *Cache[T]) shardFor(key string) *shard[T] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns the cached value for the fingerprint if present and not past
// its TTL. Staleness is never silently served: an expired entry is a miss.
func (c *Cache[T]) Get(fingerprint string) (T, bool) {
	var zero T
	s := c.shardFor(fingerprint)
	s.mu.RLock()
	e, ok := s.entries[fingerprint]
	s.mu.RUnlock()
	if !ok || c.nowFunc().After(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Put stores the value under the fingerprint for the given TTL, associated
// with a subject so re-extraction can invalidate all of the subject's entries.
func (c *Cache[T]) Put(fingerprint, subjectID string, value T, ttl time.Duration) {
	s := c.shardFor(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[fingerprint]; !exists && subjectID != "" {
		s.bySubject[subjectID] = append(s.bySubject[subjectID], fingerprint)
	}
	s.entries[fingerprint] = entry[T]{
		value:     value,
		subjectID: subjectID,
		expiresAt: c.nowFunc().Add(ttl),
	}
}

// Invalidate removes a single fingerprint.
func (c *Cache[T]) Invalidate(fingerprint string) {
	s := c.shardFor(fingerprint)
	s.mu.Lock()
	delete(s.entries, fingerprint)
	s.mu.Unlock()
}

// InvalidateSubject removes every entry cached for the subject. Called when
// an upstream re-extraction occurs so stale synthesis inputs are dropped.
func (c *Cache[T]) InvalidateSubject(subjectID string) {
	for _, s := range c.shards {
		s.mu.Lock()
		for _, fp := range s.bySubject[subjectID] {
			delete(s.entries, fp)
		}
		delete(s.bySubject, subjectID)
		s.mu.Unlock()
	}
}

// SweepEvery runs Sweep on the given interval until the context is done.
// Expired entries are already invisible to Get; sweeping reclaims their memory.
func (c *Cache[T]) SweepEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Sweep(); removed > 0 {
					zap.L().Debug("cache: swept expired entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// Sweep deletes expired entries and returns how many were removed.
func (c *Cache[T]) Sweep() int {
	now := c.nowFunc()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for fp, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, fp)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
