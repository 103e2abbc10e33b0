package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	t.Run("GetSet", func(t *testing.T) {
		c := NewLRU(100)

		_, ok := c.Get("a")
		assert.False(t, ok)

		c.Set("a", []byte("hello"))

		got, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, []byte("hello"), got)
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, int64(5), c.Size())
	})

	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		c := NewLRU(50)

		c.Set("a", make([]byte, 20))
		c.Set("b", make([]byte, 20))

		// Touch a so b becomes the eviction candidate.
		_, ok := c.Get("a")
		require.True(t, ok)

		c.Set("c", make([]byte, 20))

		_, ok = c.Get("b")
		assert.False(t, ok, "b should be evicted")

		_, ok = c.Get("a")
		assert.True(t, ok)

		_, ok = c.Get("c")
		assert.True(t, ok)

		assert.Equal(t, int64(40), c.Size())
	})

	t.Run("UpdateInPlace", func(t *testing.T) {
		c := NewLRU(100)

		c.Set("a", make([]byte, 30))
		c.Set("a", make([]byte, 10))

		assert.Equal(t, 1, c.Len())
		assert.Equal(t, int64(10), c.Size())

		got, ok := c.Get("a")
		require.True(t, ok)
		assert.Len(t, got, 10)
	})

	t.Run("UpdateEvictsWhenGrowing", func(t *testing.T) {
		c := NewLRU(50)

		c.Set("a", make([]byte, 20))
		c.Set("b", make([]byte, 20))

		// Growing b to 40 bytes forces a out.
		c.Set("b", make([]byte, 40))

		_, ok := c.Get("a")
		assert.False(t, ok)

		got, ok := c.Get("b")
		require.True(t, ok)
		assert.Len(t, got, 40)
		assert.Equal(t, int64(40), c.Size())
	})

	t.Run("OversizedValueNotAdmitted", func(t *testing.T) {
		c := NewLRU(10)

		c.Set("big", make([]byte, 11))

		_, ok := c.Get("big")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
		assert.Equal(t, int64(0), c.Size())
	})

	t.Run("OversizedValueDropsStaleEntry", func(t *testing.T) {
		c := NewLRU(10)

		c.Set("a", make([]byte, 5))
		c.Set("a", make([]byte, 11))

		_, ok := c.Get("a")
		assert.False(t, ok, "stale value must not survive an oversized update")
		assert.Equal(t, int64(0), c.Size())
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewLRU(100)

		c.Set("a", []byte("hello"))
		c.Delete("a")
		c.Delete("missing")

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
		assert.Equal(t, int64(0), c.Size())
	})

	t.Run("Stats", func(t *testing.T) {
		c := NewLRU(100)

		c.Set("a", []byte("x"))

		_, _ = c.Get("a")
		_, _ = c.Get("a")
		_, _ = c.Get("missing")

		hits, misses := c.Stats()
		assert.Equal(t, int64(2), hits)
		assert.Equal(t, int64(1), misses)
	})
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := NewLRU(1 << 20)

	done := make(chan struct{})

	for i := range 4 {
		go func(seed byte) {
			defer func() { done <- struct{}{} }()

			key := string([]byte{'k', seed})
			for range 1000 {
				c.Set(key, []byte{seed})
				c.Get(key)
				c.Delete(key)
			}
		}(byte(i))
	}

	for range 4 {
		<-done
	}

	assert.GreaterOrEqual(t, c.Size(), int64(0))
}
