package knowgo_test

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/knowgo"
	"github.com/hupe1980/knowgo/blobstore"
	"github.com/hupe1980/knowgo/model"
)

// unitVector builds a deterministic vector for lifecycle tests.
func unitVector(dim, seed int) []float32 {
	vec := make([]float32, dim)
	for j := range vec {
		vec[j] = float32((seed*31+j)%17) + 1
	}
	return vec
}

// TestNoGoroutineLeaks verifies that background compaction workers are gone
// after Close.
func TestNoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)

	initial := runtime.NumGoroutine()
	t.Logf("Initial goroutines: %d", initial)

	db, err := knowgo.New(32).
		SquaredL2().
		AutoCompaction().
		CompactionThreshold(0.1).
		Options(knowgo.WithMaxBackgroundWorkers(2)).
		Build()
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, err := db.Insert(ctx, &model.Entity{
			ID:     model.EntityID(fmt.Sprintf("doc-%d", i)),
			Vector: unitVector(32, i),
		})
		require.NoError(t, err)
	}

	// Deletes past the threshold keep the background compactor busy.
	for i := 0; i < 40; i++ {
		_, err := db.Delete(ctx, model.EntityID(fmt.Sprintf("doc-%d", i)))
		require.NoError(t, err)
	}

	_, err = db.Query(ctx, &knowgo.Query{Like: &knowgo.Like{Vector: unitVector(32, 999)}, Limit: 10})
	require.NoError(t, err)

	require.NoError(t, db.Close())

	// Shutdown is asynchronous; poll instead of asserting immediately.
	deadline := time.Now().Add(2 * time.Second)
	var final, leaked int
	for {
		runtime.GC()
		time.Sleep(50 * time.Millisecond)

		final = runtime.NumGoroutine()
		leaked = final - initial
		if leaked <= 2 || time.Now().After(deadline) {
			break
		}
	}

	t.Logf("Final goroutines: %d (leaked: %d)", final, leaked)

	if leaked > 2 {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		t.Errorf("goroutine leak: started with %d, ended with %d\n%s", initial, final, buf[:n])
	}
}

// TestCloseIdempotent verifies that calling Close multiple times is safe.
func TestCloseIdempotent(t *testing.T) {
	db, err := knowgo.New(8).SquaredL2().Build()
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := db.Insert(ctx, &model.Entity{
			ID:     model.EntityID(fmt.Sprintf("doc-%d", i)),
			Vector: unitVector(8, i),
		})
		require.NoError(t, err)
	}

	assert.NoError(t, db.Close(), "first close should succeed")
	assert.NoError(t, db.Close(), "second close should be idempotent")
	assert.NoError(t, db.Close(), "third close should be idempotent")
}

func TestCloseNilReceiver(t *testing.T) {
	var db *knowgo.Knowgo
	assert.NoError(t, db.Close())
}

func TestOperationsAfterClose(t *testing.T) {
	ctx := context.Background()

	db, err := knowgo.New(4).Build()
	require.NoError(t, err)

	_, err = db.Insert(ctx, &model.Entity{ID: "doc-1", Vector: []float32{1, 0, 0, 0}})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Insert(ctx, &model.Entity{ID: "doc-2", Vector: []float32{0, 1, 0, 0}})
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)

	_, err = db.Get("doc-1")
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)

	assert.False(t, db.Has("doc-1"))

	_, err = db.Query(ctx, &knowgo.Query{Limit: 5})
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)

	_, err = db.Delete(ctx, "doc-1")
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)

	_, err = db.Relate(ctx, &model.Relationship{From: "doc-1", To: "doc-1", Type: "self", Weight: 1})
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)

	_, err = db.Traverse(ctx, []model.EntityID{"doc-1"}, 1)
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)

	err = db.Compact(ctx)
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)

	_, err = db.Save(ctx)
	assert.ErrorIs(t, err, knowgo.ErrStoreClosed)
}

func TestSaveOnClose(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	db, err := knowgo.New(4).
		SquaredL2().
		BlobStore(store).
		SaveOnClose().
		Build()
	require.NoError(t, err)

	_, err = db.Insert(ctx, &model.Entity{ID: "doc-1", Vector: []float32{1, 2, 3, 4}})
	require.NoError(t, err)

	require.NoError(t, db.Close())

	reopened, err := knowgo.New(4).SquaredL2().BlobStore(store).Open(ctx)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Has("doc-1"))
}

// TestSaveOnCloseWithoutBlobStore verifies the final snapshot is skipped, not
// failed, when no blob store is configured.
func TestSaveOnCloseWithoutBlobStore(t *testing.T) {
	db, err := knowgo.New(4).SaveOnClose().Build()
	require.NoError(t, err)

	_, err = db.Insert(context.Background(), &model.Entity{ID: "doc-1", Vector: []float32{1, 0, 0, 0}})
	require.NoError(t, err)

	assert.NoError(t, db.Close())
}

// TestCloseWithActiveOperations verifies graceful shutdown during concurrent
// writes.
func TestCloseWithActiveOperations(t *testing.T) {
	db, err := knowgo.New(16).SquaredL2().Build()
	require.NoError(t, err)

	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			// Errors are expected once the store closes under the writer.
			_, _ = db.Insert(ctx, &model.Entity{
				ID:     model.EntityID(fmt.Sprintf("doc-%d", i)),
				Vector: unitVector(16, i),
			})
			time.Sleep(time.Millisecond)
		}
	}()

	time.Sleep(20 * time.Millisecond)

	assert.NoError(t, db.Close())
	<-done
}
