package engine

import (
	"context"
	"encoding/json"
	"hash/crc32"
	"path"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/knowgo/blobstore"
	"github.com/hupe1980/knowgo/internal/compress"
	"github.com/hupe1980/knowgo/internal/hnsw"
	"github.com/hupe1980/knowgo/internal/resource"
	"github.com/hupe1980/knowgo/model"
)

func withBlob(store blobstore.BlobStore) func(cfg *Config) {
	return func(cfg *Config) { cfg.Blob = store }
}

func TestSaveWritesCommitPointer(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	e := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, e, 3)

	_, err := e.Relate(ctx, &model.Relationship{From: "e1", To: "e2", Type: "refs", Weight: 0.5})
	require.NoError(t, err)

	id, err := e.Save(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cur, err := mem.Get(ctx, blobstore.CurrentKey)
	require.NoError(t, err)
	assert.Equal(t, path.Join("manifests", id), string(cur))

	blob, err := mem.Get(ctx, string(cur))
	require.NoError(t, err)

	var m manifest
	require.NoError(t, json.Unmarshal(blob, &m))

	assert.Equal(t, snapshotFormatVersion, m.FormatVersion)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, 4, m.Dimension)
	assert.Equal(t, "L2", m.Metric)
	assert.Equal(t, "go-json", m.Codec)
	assert.Equal(t, "zstd", m.Compression)
	assert.Equal(t, 3, m.EntityCount)
	assert.Equal(t, 1, m.RelationshipCount)
	assert.Positive(t, m.LastTimestamp)

	require.Len(t, m.Sections, 3)
	for _, s := range m.Sections {
		assert.Equal(t, path.Join("sections", id, s.Name), s.Key)

		blob, err := mem.Get(ctx, s.Key)
		require.NoError(t, err)
		assert.Len(t, blob, s.Size)
		assert.Equal(t, s.Checksum, crc32.ChecksumIEEE(blob))
	}
}

func TestSaveAdvancesCommitPointer(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	e := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, e, 2)

	id1, err := e.Save(ctx)
	require.NoError(t, err)

	_, err = e.Insert(ctx, &model.Entity{ID: "e3", Vector: vec4(3)})
	require.NoError(t, err)

	id2, err := e.Save(ctx)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	cur, err := mem.Get(ctx, blobstore.CurrentKey)
	require.NoError(t, err)
	assert.Equal(t, path.Join("manifests", id2), string(cur))

	dst := newTestEngine(t, withBlob(mem))
	require.NoError(t, dst.Load(ctx))
	assert.Equal(t, 3, dst.Stats().Entities)
}

func TestSnapshotRoundTrip(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	src := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, src, 6)

	rel, err := src.Relate(ctx, &model.Relationship{From: "e1", To: "e2", Type: "refs", Weight: 0.8})
	require.NoError(t, err)
	_, err = src.Relate(ctx, &model.Relationship{From: "e2", To: "e3", Type: "refs", Weight: 0.6})
	require.NoError(t, err)

	deleted, _, err := src.Delete(ctx, "e4")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(mem))
	require.NoError(t, dst.Load(ctx))

	srcStats, dstStats := src.Stats(), dst.Stats()
	assert.Equal(t, srcStats.Entities, dstStats.Entities)
	assert.Equal(t, srcStats.Relationships, dstStats.Relationships)
	assert.Equal(t, srcStats.Tombstones, dstStats.Tombstones)
	assert.Equal(t, srcStats.FieldCardinalities, dstStats.FieldCardinalities)

	// Timestamps, metadata and content survive byte for byte.
	want, err := src.Get("e1")
	require.NoError(t, err)
	got, err := dst.Get("e1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	var nf *ErrNotFound
	_, err = dst.Get("e4")
	assert.ErrorAs(t, err, &nf, "the tombstoned entity stays gone")

	gotRel, err := dst.Relationship(rel.ID)
	require.NoError(t, err)
	assert.Equal(t, rel, gotRel)

	// The graph structure is restored exactly, so rankings match.
	wantRes, err := src.Query(ctx, &Query{Vector: vec4(2), Limit: 3})
	require.NoError(t, err)
	gotRes, err := dst.Query(ctx, &Query{Vector: vec4(2), Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, itemIDs(wantRes.Items), itemIDs(gotRes.Items))

	wantRes, err = src.Query(ctx, &Query{Limit: 10})
	require.NoError(t, err)
	gotRes, err = dst.Query(ctx, &Query{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, itemIDs(wantRes.Items), itemIDs(gotRes.Items))

	hits, partial, err := dst.Traverse(ctx, []model.EntityID{"e1"}, nil, 2, model.DirectionOut)
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, []model.TraversalHit{{ID: "e2", Depth: 1}, {ID: "e3", Depth: 2}}, hits)
}

func TestLoadContinuesTimestamps(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	src := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, src, 3)

	_, err := src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(mem))
	require.NoError(t, dst.Load(ctx))

	newest, err := dst.Get("e3")
	require.NoError(t, err)

	fresh, err := dst.Insert(ctx, &model.Entity{ID: "post-load", Vector: vec4(9)})
	require.NoError(t, err)
	assert.Greater(t, fresh.CreatedAt, newest.UpdatedAt)

	// Recency order puts the new entity first.
	res, err := dst.Query(ctx, &Query{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-load"}, itemIDs(res.Items))
}

func TestLoadKeepsTombstonedRowsOffFreeList(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	src := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, src, 4)

	_, _, err := src.Delete(ctx, "e2")
	require.NoError(t, err)

	_, err = src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(mem))
	require.NoError(t, dst.Load(ctx))

	// e2's row is still held by its tombstone, so the insert must not
	// recycle it.
	_, err = dst.Insert(ctx, &model.Entity{ID: "fresh", Vector: vec4(9)})
	require.NoError(t, err)

	s := dst.Stats()
	assert.Equal(t, 4, s.Entities)
	assert.Equal(t, 1, s.Tombstones)
	assert.False(t, dst.Has("e2"))

	res, err := dst.Query(ctx, &Query{Vector: vec4(2), Limit: 4})
	require.NoError(t, err)
	assert.NotContains(t, itemIDs(res.Items), "e2")
}

func TestLoadTombstoneAtHighestRow(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	src := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, src, 4)

	// e4 holds the highest row; its tombstone survives the snapshot.
	_, _, err := src.Delete(ctx, "e4")
	require.NoError(t, err)

	_, err = src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(mem))
	require.NoError(t, dst.Load(ctx))

	// The next allocation must land past the held slot, not on it.
	_, err = dst.Insert(ctx, &model.Entity{ID: "fresh", Vector: vec4(9)})
	require.NoError(t, err)

	assert.Empty(t, dst.free)
	assert.Len(t, dst.entities, 5)

	s := dst.Stats()
	assert.Equal(t, 4, s.Entities)
	assert.Equal(t, 1, s.Tombstones)
	assert.True(t, dst.Has("fresh"))
}

func TestLoadReplacesExistingState(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	src := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, src, 3)

	_, err := src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(mem))
	_, err = dst.Insert(ctx, &model.Entity{ID: "stale", Vector: vec4(9)})
	require.NoError(t, err)

	require.NoError(t, dst.Load(ctx))

	assert.False(t, dst.Has("stale"))
	assert.True(t, dst.Has("e1"))
	assert.Equal(t, 3, dst.Stats().Entities)
}

func TestSnapshotCompressionVariants(t *testing.T) {
	tests := []struct {
		name string
		comp compress.Compression
	}{
		{name: "zstd", comp: compress.Zstd},
		{name: "lz4", comp: compress.LZ4},
		{name: "none", comp: compress.None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := blobstore.NewMemoryStore()
			src := newTestEngine(t, withBlob(mem), func(cfg *Config) { cfg.Compression = tt.comp })
			ctx := context.Background()

			seed(t, src, 3)

			_, err := src.Save(ctx)
			require.NoError(t, err)

			// The manifest names the algorithm, so the reader's own
			// compression setting does not matter.
			dst := newTestEngine(t, withBlob(mem))
			require.NoError(t, dst.Load(ctx))

			assert.Equal(t, 3, dst.Stats().Entities)

			got, err := dst.Get("e2")
			require.NoError(t, err)
			assert.Equal(t, vec4(2), got.Vector)
		})
	}
}

func TestSnapshotLocalStore(t *testing.T) {
	store := blobstore.NewLocalStore(t.TempDir())
	src := newTestEngine(t, withBlob(store))
	ctx := context.Background()

	seed(t, src, 3)

	_, err := src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(store))
	require.NoError(t, dst.Load(ctx))
	assert.Equal(t, 3, dst.Stats().Entities)
}

func TestSnapshotEmptyStore(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	src := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	_, err := src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(mem))
	require.NoError(t, dst.Load(ctx))
	assert.Equal(t, 0, dst.Stats().Entities)

	// The restored empty store accepts writes as usual.
	_, err = dst.Insert(ctx, &model.Entity{ID: "first", Vector: vec4(1)})
	require.NoError(t, err)

	res, err := dst.Query(ctx, &Query{Vector: vec4(1), Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, itemIDs(res.Items))
}

func TestLoadChecksumMismatch(t *testing.T) {
	newCorrupted := func(t *testing.T, corrupt func(blob []byte) []byte) *Engine {
		t.Helper()

		mem := blobstore.NewMemoryStore()
		src := newTestEngine(t, withBlob(mem))
		ctx := context.Background()

		seed(t, src, 3)

		id, err := src.Save(ctx)
		require.NoError(t, err)

		key := path.Join("sections", id, sectionEntities)
		blob, err := mem.Get(ctx, key)
		require.NoError(t, err)
		require.NoError(t, mem.Put(ctx, key, corrupt(slices.Clone(blob))))

		return newTestEngine(t, withBlob(mem))
	}

	t.Run("flipped byte", func(t *testing.T) {
		dst := newCorrupted(t, func(blob []byte) []byte {
			blob[0] ^= 0xff
			return blob
		})
		assert.ErrorIs(t, dst.Load(context.Background()), ErrChecksum)
	})

	t.Run("truncated", func(t *testing.T) {
		dst := newCorrupted(t, func(blob []byte) []byte {
			return blob[:len(blob)-1]
		})
		assert.ErrorIs(t, dst.Load(context.Background()), ErrChecksum)
	})
}

func TestLoadManifestValidation(t *testing.T) {
	rewriteManifest := func(t *testing.T, mem *blobstore.MemoryStore, mutate func(m *manifest)) {
		t.Helper()
		ctx := context.Background()

		cur, err := mem.Get(ctx, blobstore.CurrentKey)
		require.NoError(t, err)
		blob, err := mem.Get(ctx, string(cur))
		require.NoError(t, err)

		var m manifest
		require.NoError(t, json.Unmarshal(blob, &m))
		mutate(&m)

		blob, err = json.Marshal(&m)
		require.NoError(t, err)
		require.NoError(t, mem.Put(ctx, string(cur), blob))
	}

	tests := []struct {
		name    string
		mutate  func(m *manifest)
		wantErr string
	}{
		{
			name:    "unsupported format version",
			mutate:  func(m *manifest) { m.FormatVersion = 99 },
			wantErr: "unsupported snapshot format",
		},
		{
			name:    "unknown codec",
			mutate:  func(m *manifest) { m.Codec = "msgpack" },
			wantErr: "unknown snapshot codec",
		},
		{
			name:    "unknown compression",
			mutate:  func(m *manifest) { m.Compression = "brotli" },
			wantErr: "unknown compression",
		},
		{
			name:    "metric mismatch",
			mutate:  func(m *manifest) { m.Metric = "cosine" },
			wantErr: "does not match store metric",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := blobstore.NewMemoryStore()
			src := newTestEngine(t, withBlob(mem))

			seed(t, src, 2)

			_, err := src.Save(context.Background())
			require.NoError(t, err)

			rewriteManifest(t, mem, tt.mutate)

			dst := newTestEngine(t, withBlob(mem))
			assert.ErrorContains(t, dst.Load(context.Background()), tt.wantErr)
		})
	}
}

func TestLoadDimensionMismatch(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	src := newTestEngine(t, withBlob(mem))
	ctx := context.Background()

	seed(t, src, 2)

	_, err := src.Save(ctx)
	require.NoError(t, err)

	dst := newTestEngine(t, withBlob(mem), func(cfg *Config) { cfg.Dimension = 8 })

	var dim *hnsw.ErrDimensionMismatch
	err = dst.Load(ctx)
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 8, dim.Expected)
	assert.Equal(t, 4, dim.Actual)
}

func TestSnapshotRequiresBlobStore(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Save(ctx)
	assert.ErrorIs(t, err, ErrNoBlobStore)
	assert.ErrorIs(t, e.Load(ctx), ErrNoBlobStore)
}

func TestLoadWithoutSnapshot(t *testing.T) {
	e := newTestEngine(t, withBlob(blobstore.NewMemoryStore()))
	assert.ErrorIs(t, e.Load(context.Background()), ErrNoSnapshot)
}

func TestSnapshotClosedEngine(t *testing.T) {
	e := newTestEngine(t, withBlob(blobstore.NewMemoryStore()))
	require.NoError(t, e.Close())

	_, err := e.Save(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, e.Load(context.Background()), ErrClosed)
}

func TestSaveCanceledContextCommitsNothing(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	e := newTestEngine(t, withBlob(mem), func(cfg *Config) {
		cfg.Resources = resource.Config{IOLimitBytesPerSec: 1 << 20}
	})

	seed(t, e, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Save(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, mem.Len(), "no blob may land before the IO gate")
	assert.ErrorIs(t, e.Load(context.Background()), ErrNoSnapshot)
}
