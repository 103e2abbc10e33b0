package blobstore

import (
	"context"

	"github.com/hupe1980/knowgo/internal/cache"
)

// DefaultCacheCapacity bounds the CachingStore LRU when no capacity is given.
const DefaultCacheCapacity = 32 << 20 // 32 MiB

// CachingStore wraps a BlobStore with an in-memory LRU over whole blobs.
// It cuts repeated reads against remote backends such as S3 or MinIO.
// Snapshot sections are immutable once written, so a cached blob never
// goes stale; the commit pointer under CurrentKey is the exception and is
// always read through to the inner store.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU
}

// NewCachingStore wraps inner with an LRU holding at most capacity bytes.
// capacity defaults to DefaultCacheCapacity if <= 0.
func NewCachingStore(inner BlobStore, capacity int64) *CachingStore {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}

	return &CachingStore{
		inner: inner,
		cache: cache.NewLRU(capacity),
	}
}

// Get returns the blob content for key, serving from the cache when
// possible. Like the other stores, the returned slice is the caller's own.
func (s *CachingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == CurrentKey {
		return s.inner.Get(ctx, key)
	}

	if data, ok := s.cache.Get(key); ok {
		copied := make([]byte, len(data))
		copy(copied, data)

		return copied, nil
	}

	data, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	copied := make([]byte, len(data))
	copy(copied, data)
	s.cache.Set(key, copied)

	return data, nil
}

// Put drops any cached copy and writes through to the inner store. The
// next Get repopulates the cache.
func (s *CachingStore) Put(ctx context.Context, key string, data []byte) error {
	s.cache.Delete(key)

	return s.inner.Put(ctx, key, data)
}

// Delete removes the blob from both the cache and the inner store.
func (s *CachingStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)

	return s.inner.Delete(ctx, key)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// CacheStats returns hit and miss counts of the underlying LRU.
func (s *CachingStore) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}
