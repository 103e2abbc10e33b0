// Package knowgo provides an embedded knowledge store database.
//
// This file implements the fluent builder API for creating and configuring
// Knowgo instances. The builder is immutable - each method returns a new
// builder with the updated configuration.
package knowgo

import (
	"context"
	"errors"

	"github.com/hupe1980/knowgo/blobstore"
	"github.com/hupe1980/knowgo/codec"
	"github.com/hupe1980/knowgo/distance"
	"github.com/hupe1980/knowgo/embedding"
)

// New creates a store builder for vectors of the given dimensionality.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration. This ensures thread-safety and prevents accidental
// state sharing.
//
// Example:
//
//	db, err := knowgo.New(128).
//	    Cosine().
//	    M(16).
//	    EFConstruction(200).
//	    Build()
func New(dimension int) Builder {
	return Builder{dimension: dimension}
}

// Builder is an immutable fluent builder for creating Knowgo instances.
// Each method returns a new builder with the updated configuration.
type Builder struct {
	dimension int
	optFns    []Option
}

// with returns a copy of the builder with the given options appended. The
// copy never shares backing storage with the receiver, so derived builders
// stay independent.
func (b Builder) with(optFns ...Option) Builder {
	merged := make([]Option, 0, len(b.optFns)+len(optFns))
	merged = append(merged, b.optFns...)
	merged = append(merged, optFns...)
	b.optFns = merged
	return b
}

// Cosine sets the distance metric to cosine distance (1 - cosine
// similarity). Vectors are L2-normalized on insert. Default.
func (b Builder) Cosine() Builder {
	return b.with(WithMetric(distance.MetricCosine))
}

// SquaredL2 sets the distance metric to squared Euclidean distance.
func (b Builder) SquaredL2() Builder {
	return b.with(WithMetric(distance.MetricL2))
}

// DotProduct sets the distance metric to negated inner product.
func (b Builder) DotProduct() Builder {
	return b.with(WithMetric(distance.MetricDot))
}

// M sets the maximum number of graph connections per vector index layer.
// Higher values improve recall but increase memory usage.
// Default: 16. Recommended range: 12-64.
func (b Builder) M(m int) Builder {
	return b.with(WithM(m))
}

// EFConstruction sets the exploration factor used during index construction.
// Higher values improve index quality but slow down indexing.
// Default: 200. Recommended range: 100-500.
//
// Note: This is different from search-time EF, which is set via
// EFSearch() or per query.
func (b Builder) EFConstruction(ef int) Builder {
	return b.with(WithEFConstruction(ef))
}

// EFSearch sets the default exploration factor for similarity queries.
// Default: 100.
func (b Builder) EFSearch(ef int) Builder {
	return b.with(WithEFSearch(ef))
}

// RandomSeed sets the seed for deterministic index construction.
// If not set, a random seed (time-based) is used.
func (b Builder) RandomSeed(seed int64) Builder {
	return b.with(WithRandomSeed(seed))
}

// CompactionThreshold sets the tombstone ratio that marks the vector index
// as worth compacting. For example, 0.2 means compact when 20% of the index
// is deleted.
// Default: 0.2 (20%). Recommended range: 0.1-0.3.
func (b Builder) CompactionThreshold(ratio float64) Builder {
	return b.with(WithCompactionThreshold(ratio))
}

// AutoCompaction enables background compaction after deletes.
func (b Builder) AutoCompaction() Builder {
	return b.with(WithAutoCompaction())
}

// StrictFilters makes queries reject filters on metadata fields the store
// has never observed.
func (b Builder) StrictFilters() Builder {
	return b.with(WithStrictFilters())
}

// Embedder sets the provider used to embed entity content and textual query
// clauses.
func (b Builder) Embedder(p embedding.Provider) Builder {
	return b.with(WithEmbedder(p))
}

// BlobStore sets the blob store used by Save, Load and Open.
func (b Builder) BlobStore(store blobstore.BlobStore) Builder {
	return b.with(WithBlobStore(store))
}

// Codec sets the codec for snapshot section serialization.
func (b Builder) Codec(c codec.Codec) Builder {
	return b.with(WithCodec(c))
}

// Compression selects the snapshot compression: CompressionZstd (default),
// CompressionLZ4 or CompressionNone.
func (b Builder) Compression(name string) Builder {
	return b.with(WithCompression(name))
}

// Logger sets the structured logger for operation tracing.
func (b Builder) Logger(l *Logger) Builder {
	return b.with(WithLogger(l))
}

// Metrics sets the metrics collector for monitoring.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	return b.with(WithMetricsCollector(mc))
}

// SaveOnClose makes Close write a final snapshot before releasing the store.
func (b Builder) SaveOnClose() Builder {
	return b.with(WithSaveOnClose())
}

// Options appends raw functional options. Builder methods and options may
// be mixed freely; the last setting of a knob wins.
func (b Builder) Options(optFns ...Option) Builder {
	return b.with(optFns...)
}

// Build creates the Knowgo instance.
func (b Builder) Build() (*Knowgo, error) {
	return newKnowgo(b.dimension, applyOptions(b.optFns))
}

// MustBuild creates the Knowgo instance, panicking on error.
func (b Builder) MustBuild() *Knowgo {
	kg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return kg
}

// Open creates the Knowgo instance and loads the newest committed snapshot
// from the configured blob store. A blob store without a snapshot yields an
// empty store; a missing blob store is an error.
func (b Builder) Open(ctx context.Context) (*Knowgo, error) {
	kg, err := b.Build()
	if err != nil {
		return nil, err
	}

	if err := kg.Load(ctx); err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return kg, nil
		}
		_ = kg.Close()
		return nil, err
	}

	return kg, nil
}
