package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/knowgo/blobstore"
	"github.com/hupe1980/knowgo/codec"
	"github.com/hupe1980/knowgo/distance"
	"github.com/hupe1980/knowgo/embedding"
	"github.com/hupe1980/knowgo/internal/compress"
	"github.com/hupe1980/knowgo/internal/graph"
	"github.com/hupe1980/knowgo/internal/hnsw"
	"github.com/hupe1980/knowgo/internal/metaindex"
	"github.com/hupe1980/knowgo/internal/planner"
	"github.com/hupe1980/knowgo/internal/resource"
	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
)

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 10

// Config is the resolved engine configuration. The facade fills it from its
// user-facing options; zero fields fall back to index defaults.
type Config struct {
	Dimension int
	Metric    distance.Metric

	M                   int
	EFConstruction      int
	EFSearch            int
	RandSeed            int64
	CompactionThreshold float64

	// AutoCompaction schedules a background rebuild when the tombstone
	// ratio crosses the threshold.
	AutoCompaction bool

	// StrictFilters makes queries reject predicates on never-observed
	// fields instead of matching nothing.
	StrictFilters bool

	Planner planner.Options

	Embedder embedding.Provider

	Blob        blobstore.BlobStore
	Codec       codec.Codec
	Compression compress.Compression

	Resources resource.Config

	Logger *slog.Logger
}

// Engine owns the entity catalog and coordinates the vector index, the
// metadata index and the relationship graph.
type Engine struct {
	cfg    Config
	log    *slog.Logger
	distFn distance.Func

	// vectors is swapped wholesale on Load; the index is internally
	// synchronized.
	vectors atomic.Pointer[hnsw.Index]

	// catMu guards the catalog. Lock order: catMu, then metaMu, then
	// graphMu.
	catMu    sync.RWMutex
	rows     map[model.EntityID]model.RowID
	entities []*model.Entity // indexed by row; nil slots are tombstoned or free
	alive    *roaring.Bitmap
	free     []model.RowID // rows reclaimed by compaction

	metaMu sync.RWMutex
	meta   *metaindex.Index

	graphMu sync.RWMutex
	graph   *graph.Index

	planner *planner.Planner
	res     *resource.Controller

	lastTS atomic.Int64
	bg     sync.WaitGroup
	closed atomic.Bool
}

// New creates an empty engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Default
	}
	if cfg.Compression == "" {
		cfg.Compression = compress.Zstd
	}
	if !cfg.Compression.Valid() {
		return nil, fmt.Errorf("unknown compression %q", cfg.Compression)
	}
	if cfg.Planner == (planner.Options{}) {
		cfg.Planner = planner.DefaultOptions
	}

	distFn, err := distance.Provider(cfg.Metric)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		log:    cfg.Logger,
		distFn: distFn,
		rows:   make(map[model.EntityID]model.RowID),
		alive:  roaring.New(),
		meta:   metaindex.New(),
		graph:  graph.New(),
		res:    resource.NewController(cfg.Resources),
	}

	idx, err := hnsw.New(cfg.Dimension, e.indexOptions())
	if err != nil {
		return nil, err
	}
	e.vectors.Store(idx)

	pOpts := cfg.Planner
	e.planner = planner.New(e, func(o *planner.Options) { *o = pOpts })

	return e, nil
}

// indexOptions translates the engine config into vector index options, for
// both the initial index and snapshot restores.
func (e *Engine) indexOptions() func(o *hnsw.Options) {
	cfg := e.cfg
	fn := e.distFn

	return func(o *hnsw.Options) {
		if cfg.M > 0 {
			o.M = cfg.M
		}
		if cfg.EFConstruction > 0 {
			o.EFConstruction = cfg.EFConstruction
		}
		if cfg.EFSearch > 0 {
			o.EFSearch = cfg.EFSearch
		}
		if cfg.CompactionThreshold > 0 {
			o.CompactionThreshold = cfg.CompactionThreshold
		}
		if cfg.RandSeed != 0 {
			o.RandSeed = cfg.RandSeed
		}
		o.Distance = fn
		o.Normalize = cfg.Metric == distance.MetricCosine
	}
}

func (e *Engine) idx() *hnsw.Index {
	return e.vectors.Load()
}

// tick returns a strictly monotonic Unix-nanosecond timestamp, so createdAt
// is a total order even when the clock stalls.
func (e *Engine) tick() int64 {
	for {
		now := time.Now().UnixNano()

		last := e.lastTS.Load()
		if now <= last {
			now = last + 1
		}

		if e.lastTS.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Insert stores a new entity. Inserting a live id is an upsert and applies
// update semantics: the vector is re-linked and the metadata diffed.
func (e *Engine) Insert(ctx context.Context, ent *model.Entity) (*model.Entity, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if ent == nil {
		return nil, errors.New("nil entity")
	}
	if ent.ID == "" {
		return nil, ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateMeta(ent.Meta); err != nil {
		return nil, err
	}

	vec, err := e.resolveVector(ctx, ent, true)
	if err != nil {
		return nil, err
	}

	e.catMu.Lock()
	defer e.catMu.Unlock()

	if row, ok := e.rows[ent.ID]; ok {
		stored, err := e.applyUpdateLocked(row, ent, vec)
		if err != nil {
			return nil, err
		}

		e.log.Debug("upsert", "id", string(ent.ID), "row", uint32(row))
		return stored, nil
	}

	row := e.allocRowLocked()
	now := e.tick()

	stored := ent.Clone()
	stored.Vector = vec
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := e.idx().Insert(row, vec); err != nil {
		e.releaseRowLocked(row)
		return nil, err
	}

	e.rows[stored.ID] = row
	e.entities[row] = stored
	e.alive.Add(uint32(row))

	e.metaMu.Lock()
	e.meta.Add(row, stored.Meta)
	e.metaMu.Unlock()

	e.log.Debug("insert", "id", string(stored.ID), "row", uint32(row))
	return stored.Clone(), nil
}

// Update replaces a stored entity. The vector is re-linked when one is given
// (or embedded from content) and kept otherwise; metadata postings are
// diffed; createdAt is preserved.
func (e *Engine) Update(ctx context.Context, ent *model.Entity) (*model.Entity, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if ent == nil {
		return nil, errors.New("nil entity")
	}
	if ent.ID == "" {
		return nil, ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateMeta(ent.Meta); err != nil {
		return nil, err
	}

	vec, err := e.resolveVector(ctx, ent, false)
	if err != nil {
		return nil, err
	}

	e.catMu.Lock()
	defer e.catMu.Unlock()

	row, ok := e.rows[ent.ID]
	if !ok {
		return nil, &ErrNotFound{ID: ent.ID}
	}

	stored, err := e.applyUpdateLocked(row, ent, vec)
	if err != nil {
		return nil, err
	}

	e.log.Debug("update", "id", string(ent.ID), "row", uint32(row))
	return stored, nil
}

// validateMeta rejects malformed metadata before anything is indexed. Only
// finite scalars and flat arrays of them are storable; anything else would
// poison the postings silently.
func validateMeta(doc metadata.Document) error {
	for field, value := range doc {
		if err := value.Validate(); err != nil {
			return &ErrInvalidMetadata{Field: field, Err: err}
		}
	}
	return nil
}

// resolveVector picks the vector for an incoming entity: the explicit one,
// or an embedding of its content. For updates a nil result means "keep the
// stored vector"; for new entities it is an error.
func (e *Engine) resolveVector(ctx context.Context, ent *model.Entity, forNew bool) ([]float32, error) {
	if ent.Vector != nil {
		if len(ent.Vector) != e.cfg.Dimension {
			return nil, &hnsw.ErrDimensionMismatch{Expected: e.cfg.Dimension, Actual: len(ent.Vector)}
		}

		return slices.Clone(ent.Vector), nil
	}

	if ent.Content != "" && e.cfg.Embedder != nil {
		vec, err := e.cfg.Embedder.Embed(ctx, ent.Content)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if len(vec) != e.cfg.Dimension {
			return nil, &hnsw.ErrDimensionMismatch{Expected: e.cfg.Dimension, Actual: len(vec)}
		}

		return vec, nil
	}

	if !forNew {
		return nil, nil
	}
	if ent.Content != "" {
		return nil, ErrNoEmbedder
	}

	return nil, ErrMissingVector
}

func (e *Engine) applyUpdateLocked(row model.RowID, ent *model.Entity, vec []float32) (*model.Entity, error) {
	old := e.entities[row]

	if vec != nil {
		if err := e.idx().Update(row, vec); err != nil {
			return nil, err
		}
	} else {
		vec = old.Vector
	}

	stored := ent.Clone()
	stored.Vector = vec
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = e.tick()

	e.metaMu.Lock()
	e.meta.Update(row, old.Meta, stored.Meta)
	e.metaMu.Unlock()

	e.entities[row] = stored

	return stored.Clone(), nil
}

func (e *Engine) allocRowLocked() model.RowID {
	if n := len(e.free); n > 0 {
		row := e.free[n-1]
		e.free = e.free[:n-1]
		return row
	}

	e.entities = append(e.entities, nil)
	return model.RowID(len(e.entities) - 1)
}

func (e *Engine) releaseRowLocked(row model.RowID) {
	if int(row) == len(e.entities)-1 && e.entities[row] == nil {
		e.entities = e.entities[:row]
		return
	}

	e.free = append(e.free, row)
}

// Get returns a copy of the stored entity.
func (e *Engine) Get(id model.EntityID) (*model.Entity, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.catMu.RLock()
	defer e.catMu.RUnlock()

	row, ok := e.rows[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}

	return e.entities[row].Clone(), nil
}

// Has reports whether the id is live.
func (e *Engine) Has(id model.EntityID) bool {
	if e.closed.Load() {
		return false
	}

	e.catMu.RLock()
	defer e.catMu.RUnlock()

	_, ok := e.rows[id]
	return ok
}

// Delete removes an entity, its vector, its postings and, by cascade, every
// relationship touching it. Deleting a missing id is a no-op. It reports
// whether the entity existed and how many relationships were cascaded.
func (e *Engine) Delete(ctx context.Context, id model.EntityID) (bool, int, error) {
	if e.closed.Load() {
		return false, 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	e.catMu.Lock()

	row, ok := e.rows[id]
	if !ok {
		e.catMu.Unlock()
		return false, 0, nil
	}

	ent := e.entities[row]
	delete(e.rows, id)
	e.entities[row] = nil
	e.alive.Remove(uint32(row))
	e.idx().Delete(row)

	e.metaMu.Lock()
	e.meta.Remove(row, ent.Meta)
	e.metaMu.Unlock()

	e.graphMu.Lock()
	cascaded := e.graph.RemoveEntity(id)
	e.graphMu.Unlock()

	e.catMu.Unlock()

	e.log.Debug("delete", "id", string(id), "row", uint32(row), "cascaded", len(cascaded))
	e.maybeCompact()

	return true, len(cascaded), nil
}

// Relate stores a directed relationship between two live entities. An empty
// relationship id gets a generated UUID; relating an existing id replaces
// the edge. The weight must lie in [0, 1].
func (e *Engine) Relate(ctx context.Context, rel *model.Relationship) (*model.Relationship, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if rel == nil {
		return nil, errors.New("nil relationship")
	}
	if rel.From == "" || rel.To == "" {
		return nil, ErrEmptyID
	}
	if w := float64(rel.Weight); math.IsNaN(w) || w < 0 || w > 1 {
		return nil, &ErrInvalidWeight{Weight: rel.Weight}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The read lock pins both endpoints against a concurrent delete
	// between the check and the link.
	e.catMu.RLock()
	defer e.catMu.RUnlock()

	if _, ok := e.rows[rel.From]; !ok {
		return nil, &ErrUnknownEntity{ID: rel.From}
	}
	if _, ok := e.rows[rel.To]; !ok {
		return nil, &ErrUnknownEntity{ID: rel.To}
	}

	stored := rel.Clone()
	if stored.ID == "" {
		stored.ID = model.RelationshipID(uuid.NewString())
	}
	stored.CreatedAt = e.tick()

	e.graphMu.Lock()
	e.graph.Relate(stored)
	e.graphMu.Unlock()

	e.log.Debug("relate", "id", string(stored.ID), "from", string(stored.From), "to", string(stored.To))
	return stored.Clone(), nil
}

// Unrelate removes a relationship and reports whether it existed. Removing
// a missing id is a no-op.
func (e *Engine) Unrelate(ctx context.Context, id model.RelationshipID) (bool, error) {
	if e.closed.Load() {
		return false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.graphMu.Lock()
	ok := e.graph.Unrelate(id)
	e.graphMu.Unlock()

	return ok, nil
}

// Relationship returns a copy of the stored relationship.
func (e *Engine) Relationship(id model.RelationshipID) (*model.Relationship, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.graphMu.RLock()
	rel, ok := e.graph.Relationship(id)
	e.graphMu.RUnlock()

	if !ok {
		return nil, &ErrRelationshipNotFound{ID: id}
	}

	return rel.Clone(), nil
}

// Relationships returns copies of every relationship touching the entity,
// in either orientation, ordered by creation time.
func (e *Engine) Relationships(id model.EntityID) ([]*model.Relationship, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.catMu.RLock()
	_, ok := e.rows[id]
	e.catMu.RUnlock()

	if !ok {
		return nil, &ErrNotFound{ID: id}
	}

	e.graphMu.RLock()
	rels := e.graph.Of(id)
	e.graphMu.RUnlock()

	out := make([]*model.Relationship, len(rels))
	for i, rel := range rels {
		out[i] = rel.Clone()
	}

	return out, nil
}

// Traverse runs a bounded breadth-first expansion from the start entities.
// Unknown starts expand to nothing. An empty direction means both.
func (e *Engine) Traverse(ctx context.Context, starts []model.EntityID, types []model.RelationType, depth int, dir model.Direction) ([]model.TraversalHit, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrClosed
	}

	if dir == "" {
		dir = model.DirectionBoth
	}
	if !dir.Valid() {
		return nil, false, fmt.Errorf("invalid direction %q", dir)
	}

	e.graphMu.RLock()
	hits, partial := e.graph.Traverse(ctx, starts, types, depth, dir)
	e.graphMu.RUnlock()

	return hits, partial, nil
}

// Query is one combined query expression over the three indexes.
type Query struct {
	// Vector ranks by ascending distance. When nil and Text is set, Text
	// is embedded through the configured provider.
	Vector []float32
	Text   string

	Where     *metadata.Where
	Connected *planner.Connected

	Limit  int
	Offset int
	Cursor string

	// EF widens the vector search beam; zero uses the index default.
	EF int
}

// Item is one query hit resolved to its entity.
type Item struct {
	Entity   *model.Entity
	Distance float32
	Depth    int
}

// QueryResult is one page of hits.
type QueryResult struct {
	Items   []Item
	Next    string
	Partial bool
}

// Query plans and executes one query expression and resolves the ranked
// rows to entity copies.
func (e *Engine) Query(ctx context.Context, q *Query) (*QueryResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if q == nil {
		return nil, errors.New("nil query")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := q.Where.Validate(); err != nil {
		return nil, err
	}

	vec := q.Vector
	if vec == nil && q.Text != "" {
		if e.cfg.Embedder == nil {
			return nil, ErrNoEmbedder
		}

		v, err := e.cfg.Embedder.Embed(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		vec = v
	}
	if vec != nil && len(vec) != e.cfg.Dimension {
		return nil, &hnsw.ErrDimensionMismatch{Expected: e.cfg.Dimension, Actual: len(vec)}
	}

	connected := q.Connected
	if connected != nil {
		c := *connected
		if c.Direction == "" {
			c.Direction = model.DirectionBoth
		}
		if !c.Direction.Valid() {
			return nil, fmt.Errorf("invalid direction %q", c.Direction)
		}
		if c.Depth < 1 {
			c.Depth = 1
		}
		connected = &c
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := &planner.Request{
		Vector:    vec,
		Where:     q.Where,
		Connected: connected,
		Limit:     limit,
		Offset:    max(q.Offset, 0),
		Cursor:    q.Cursor,
		Strict:    e.cfg.StrictFilters,
		EF:        q.EF,
	}

	res, err := e.planner.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(res.Hits))

	e.catMu.RLock()
	for _, h := range res.Hits {
		// A row can vanish (or be recycled) between planning and
		// resolution; the id check drops such hits.
		if int(h.Row) >= len(e.entities) {
			continue
		}

		ent := e.entities[h.Row]
		if ent == nil || ent.ID != h.ID {
			continue
		}

		items = append(items, Item{Entity: ent.Clone(), Distance: h.Distance, Depth: h.Depth})
	}
	e.catMu.RUnlock()

	e.log.Debug("query", "hits", len(items), "partial", res.Partial)

	return &QueryResult{Items: items, Next: res.Next, Partial: res.Partial}, nil
}

// Stats is a point-in-time snapshot of store shape and health.
type Stats struct {
	Entities      int
	Relationships int

	Dimension int
	Metric    string

	Tombstones     int
	TombstoneRatio float64
	MaxLayer       int

	// FieldCardinalities counts distinct values per observed metadata
	// field.
	FieldCardinalities map[string]int
}

// Stats reports current store statistics.
func (e *Engine) Stats() Stats {
	e.catMu.RLock()
	entities := len(e.rows)
	e.catMu.RUnlock()

	e.graphMu.RLock()
	rels := e.graph.Len()
	e.graphMu.RUnlock()

	e.metaMu.RLock()
	cards := e.meta.Cardinalities()
	e.metaMu.RUnlock()

	vs := e.idx().Stats()

	return Stats{
		Entities:           entities,
		Relationships:      rels,
		Dimension:          e.cfg.Dimension,
		Metric:             e.cfg.Metric.String(),
		Tombstones:         vs.Tombstones,
		TombstoneRatio:     vs.TombstoneRatio,
		MaxLayer:           vs.MaxLayer,
		FieldCardinalities: cards,
	}
}

// Compact rebuilds the vector index without its tombstones and reclaims
// their rows for reuse.
func (e *Engine) Compact(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}

	idx := e.idx()

	before := idx.Stats()
	if err := idx.Compact(ctx); err != nil {
		return err
	}
	e.reclaimRows(idx)

	e.log.Info("compaction finished", "removed", before.Tombstones, "alive", before.Alive)
	return nil
}

// reclaimRows rebuilds the free list from catalog slots whose vector index
// slot is gone. Slots that are merely tombstoned stay off the list.
func (e *Engine) reclaimRows(idx *hnsw.Index) {
	e.catMu.Lock()
	defer e.catMu.Unlock()

	e.free = e.free[:0]
	for row := range e.entities {
		if e.entities[row] == nil && !idx.Occupied(model.RowID(row)) {
			e.free = append(e.free, model.RowID(row))
		}
	}
}

// maybeCompact schedules a background compaction when the tombstone ratio
// crosses the threshold. At most one background job runs at a time; when the
// slot is busy the next delete tries again.
func (e *Engine) maybeCompact() {
	if !e.cfg.AutoCompaction || !e.idx().NeedsCompaction() {
		return
	}
	if !e.res.TryAcquireBackground() {
		return
	}

	e.bg.Add(1)

	go func() {
		defer e.bg.Done()
		defer e.res.ReleaseBackground()

		if e.closed.Load() {
			return
		}

		if err := e.Compact(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			e.log.Warn("background compaction failed", "error", err)
		}
	}()
}

// Close marks the engine closed and waits for background work to drain.
// Closing twice returns ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	e.bg.Wait()
	return nil
}

// --- planner.Store ---

// AliveCount returns the number of live entities.
func (e *Engine) AliveCount() int {
	e.catMu.RLock()
	defer e.catMu.RUnlock()
	return int(e.alive.GetCardinality())
}

// AliveRows returns a copy of the live row set.
func (e *Engine) AliveRows() *roaring.Bitmap {
	e.catMu.RLock()
	defer e.catMu.RUnlock()
	return e.alive.Clone()
}

// CheckFields verifies every predicate field has been observed.
func (e *Engine) CheckFields(w *metadata.Where) error {
	if w == nil {
		return nil
	}

	e.metaMu.RLock()
	defer e.metaMu.RUnlock()
	return e.meta.CheckFields(w)
}

// EstimateWhere upper-bounds the filter's match count from the postings.
func (e *Engine) EstimateWhere(w *metadata.Where) uint64 {
	e.metaMu.RLock()
	defer e.metaMu.RUnlock()
	return e.meta.EstimateCount(w)
}

// EvalWhere materializes the exact filter row set.
func (e *Engine) EvalWhere(w *metadata.Where) *roaring.Bitmap {
	e.metaMu.RLock()
	defer e.metaMu.RUnlock()
	return e.meta.Eval(w)
}

// MatchesWhere evaluates the filter against one row's stored document.
func (e *Engine) MatchesWhere(row model.RowID, w *metadata.Where) bool {
	e.catMu.RLock()
	defer e.catMu.RUnlock()

	if int(row) >= len(e.entities) || e.entities[row] == nil {
		return false
	}

	return w.Matches(e.entities[row].Meta)
}

// TraverseRows maps a graph traversal to hop distances keyed by row.
func (e *Engine) TraverseRows(ctx context.Context, starts []model.EntityID, types []model.RelationType, depth int, dir model.Direction) (map[model.RowID]int, bool) {
	e.graphMu.RLock()
	hits, partial := e.graph.Traverse(ctx, starts, types, depth, dir)
	e.graphMu.RUnlock()

	out := make(map[model.RowID]int, len(hits))

	e.catMu.RLock()
	for _, h := range hits {
		if row, ok := e.rows[h.ID]; ok {
			out[row] = h.Depth
		}
	}
	e.catMu.RUnlock()

	return out, partial
}

// VectorSearch runs the approximate search over all live rows.
func (e *Engine) VectorSearch(ctx context.Context, query []float32, k, ef int) ([]hnsw.Candidate, bool, error) {
	return e.idx().Search(ctx, query, k, ef)
}

// VectorBruteSearch scores exactly the allowed rows.
func (e *Engine) VectorBruteSearch(ctx context.Context, query []float32, k int, allowed *roaring.Bitmap) ([]hnsw.Candidate, bool, error) {
	return e.idx().BruteSearch(ctx, query, k, allowed)
}

// Describe resolves a row to its entity id and creation timestamp.
func (e *Engine) Describe(row model.RowID) (model.EntityID, int64, bool) {
	e.catMu.RLock()
	defer e.catMu.RUnlock()

	if int(row) >= len(e.entities) || e.entities[row] == nil {
		return "", 0, false
	}

	ent := e.entities[row]
	return ent.ID, ent.CreatedAt, true
}
