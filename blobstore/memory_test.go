package blobstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "a", []byte("alpha")))
	require.NoError(t, store.Put(ctx, "b", []byte("beta")))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), got)

	// Mutating the returned slice must not affect the stored blob.
	got[0] = 'X'
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), again)

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a")) // idempotent

	_, err = store.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, store.Len())
}

func TestMemoryStore_PutCopiesInput(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("original")
	require.NoError(t, store.Put(ctx, "k", data))

	data[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)
}

func TestMemoryStore_ListPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "snap-01/a", nil))
	require.NoError(t, store.Put(ctx, "snap-01/b", nil))
	require.NoError(t, store.Put(ctx, "snap-02/a", nil))

	keys, err := store.List(ctx, "snap-01/")
	require.NoError(t, err)
	require.Equal(t, []string{"snap-01/a", "snap-01/b"}, keys)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Put(ctx, "shared", []byte("payload"))
				_, _ = store.Get(ctx, "shared")
				_, _ = store.List(ctx, "")
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}
