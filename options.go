package knowgo

import (
	"log/slog"

	"github.com/hupe1980/knowgo/blobstore"
	"github.com/hupe1980/knowgo/codec"
	"github.com/hupe1980/knowgo/distance"
	"github.com/hupe1980/knowgo/embedding"
	"github.com/hupe1980/knowgo/internal/compress"
	"github.com/hupe1980/knowgo/internal/planner"
	"github.com/hupe1980/knowgo/internal/resource"
)

// Snapshot compression codecs accepted by WithCompression.
const (
	// CompressionZstd favors ratio over speed. Default.
	CompressionZstd = "zstd"
	// CompressionLZ4 favors speed over ratio.
	CompressionLZ4 = "lz4"
	// CompressionNone stores snapshot sections uncompressed.
	CompressionNone = "none"
)

type options struct {
	metric              distance.Metric
	m                   int
	efConstruction      int
	efSearch            int
	randSeed            int64
	compactionThreshold float64
	autoCompaction      bool
	strictFilters       bool
	planner             planner.Options
	embedder            embedding.Provider
	blob                blobstore.BlobStore
	codec               codec.Codec
	compression         compress.Compression
	resources           resource.Config
	saveOnClose         bool
	metricsCollector    MetricsCollector
	logger              *Logger
}

// Option configures store construction.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants). The fluent Builder wraps
// them one-to-one.
type Option func(*options)

// WithMetric sets the distance metric used to rank similarity queries.
//
// Default: distance.MetricCosine.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithM sets the maximum number of graph connections per vector index layer.
// Higher values improve recall but increase memory usage.
// Default: 16. Recommended range: 12-64.
func WithM(m int) Option {
	return func(o *options) {
		o.m = m
	}
}

// WithEFConstruction sets the exploration factor used while building the
// vector index. Higher values improve index quality but slow down inserts.
// Default: 200. Recommended range: 100-500.
func WithEFConstruction(ef int) Option {
	return func(o *options) {
		o.efConstruction = ef
	}
}

// WithEFSearch sets the default exploration factor for similarity queries.
// Individual queries can widen it via Query.EF.
// Default: 100.
func WithEFSearch(ef int) Option {
	return func(o *options) {
		o.efSearch = ef
	}
}

// WithRandomSeed sets the seed for deterministic vector index construction.
// If not set, a random seed (time-based) is used.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.randSeed = seed
	}
}

// WithCompactionThreshold sets the tombstone ratio above which the vector
// index is considered worth compacting.
// Default: 0.2 (20%). Recommended range: 0.1-0.3.
func WithCompactionThreshold(ratio float64) Option {
	return func(o *options) {
		o.compactionThreshold = ratio
	}
}

// WithAutoCompaction schedules a background compaction whenever a delete
// pushes the tombstone ratio across the threshold. At most one compaction
// runs at a time; Compact remains available for on-demand runs.
func WithAutoCompaction() Option {
	return func(o *options) {
		o.autoCompaction = true
	}
}

// WithStrictFilters makes queries reject filters on metadata fields the
// store has never observed, instead of matching nothing.
func WithStrictFilters() Option {
	return func(o *options) {
		o.strictFilters = true
	}
}

// WithSelectivityThreshold sets the fraction of live entities below which a
// metadata filter counts as selective and is resolved before the vector
// search instead of after it.
// Default: 0.01 (1%).
func WithSelectivityThreshold(fraction float64) Option {
	return func(o *options) {
		o.planner.SelectivityThreshold = fraction
	}
}

// WithSelectivityFloor sets the absolute match count below which a metadata
// filter is always resolved first, regardless of the fraction.
// Default: 500.
func WithSelectivityFloor(n int) Option {
	return func(o *options) {
		o.planner.SelectivityFloor = n
	}
}

// WithOversampleFactor sets the initial multiple of the page size requested
// from the vector index when filters are applied after the search; it
// doubles on each retry.
// Default: 4.
func WithOversampleFactor(n int) Option {
	return func(o *options) {
		o.planner.OversampleFactor = n
	}
}

// WithMaxOversampleRetries bounds the doubling retries after the initial
// oversampled vector search.
// Default: 4.
func WithMaxOversampleRetries(n int) Option {
	return func(o *options) {
		o.planner.MaxOversampleRetries = n
	}
}

// WithBruteForceThreshold sets the candidate-set size at or below which
// rows are scored exactly instead of walking the ANN graph.
// Default: 500.
func WithBruteForceThreshold(n int) Option {
	return func(o *options) {
		o.planner.BruteForceThreshold = n
	}
}

// WithEmbedder configures the provider used to embed entity content and
// textual query clauses that arrive without a vector.
func WithEmbedder(p embedding.Provider) Option {
	return func(o *options) {
		o.embedder = p
	}
}

// WithBlobStore configures the blob store that Save and Load snapshot
// through. Without one, Save and Load return ErrNoBlobStore.
//
// Example with the local filesystem store:
//
//	store := blobstore.NewLocalStore("./data")
//	db, _ := knowgo.New(128).BlobStore(store).Build()
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.blob = store
	}
}

// WithCodec configures the codec used to encode and decode snapshot
// sections.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression selects the snapshot section compression: CompressionZstd
// (default), CompressionLZ4 or CompressionNone. Unknown names fail at Build.
func WithCompression(name string) Option {
	return func(o *options) {
		o.compression = compress.Compression(name)
	}
}

// WithMaxBackgroundWorkers bounds concurrent background jobs such as
// compactions.
// Default: 1.
func WithMaxBackgroundWorkers(n int64) Option {
	return func(o *options) {
		o.resources.MaxBackgroundWorkers = n
	}
}

// WithIOLimit throttles snapshot reads and writes to the given bandwidth.
// Default: unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.resources.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithSaveOnClose makes Close write a final snapshot through the configured
// blob store before releasing the store.
func WithSaveOnClose() Option {
	return func(o *options) {
		o.saveOnClose = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &knowgo.BasicMetricsCollector{}
//	db, _ := knowgo.New(128).Metrics(metrics).Build()
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := knowgo.NewJSONLogger(slog.LevelInfo)
//	db, _ := knowgo.New(128).Logger(logger).Build()
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metric:           distance.MetricCosine,
		planner:          planner.DefaultOptions,
		compression:      compress.Zstd,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
