package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU is a byte-budget cache for immutable blobs keyed by name.
// Safe for concurrent use.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[string]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   string
	value []byte
}

// NewLRU creates a cache holding at most capacity bytes of blob data.
func NewLRU(capacity int64) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get returns the cached bytes for key. The returned slice is shared with
// the cache and must not be modified.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)

		return ent.Value.(*entry).value, true
	}

	c.misses.Add(1)

	return nil, false
}

// Set caches b under key, evicting least recently used entries until the
// budget holds. The cache retains b; the caller must not modify it after.
func (c *LRU) Set(key string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// An oversized value cannot be admitted, but a stale value under the
	// same key must not survive either.
	if int64(len(b)) > c.capacity {
		c.removeKeyLocked(key)
		return
	}

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry)
		c.size += int64(len(b)) - int64(len(e.value))
		e.value = b
	} else {
		c.items[key] = c.evictList.PushFront(&entry{key: key, value: b})
		c.size += int64(len(b))
	}

	for c.size > c.capacity {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}

		c.removeElementLocked(oldest)
	}
}

// Delete removes key from the cache. Missing keys are ignored.
func (c *LRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeKeyLocked(key)
}

// Len returns the number of cached blobs.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictList.Len()
}

// Size returns the total cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// Stats returns hit and miss counts since creation.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU) removeKeyLocked(key string) {
	if ent, ok := c.items[key]; ok {
		c.removeElementLocked(ent)
	}
}

func (c *LRU) removeElementLocked(e *list.Element) {
	c.evictList.Remove(e)

	ent := e.Value.(*entry)
	delete(c.items, ent.key)
	c.size -= int64(len(ent.value))
}
