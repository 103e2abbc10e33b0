package knowgo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/knowgo/internal/engine"
	"github.com/hupe1980/knowgo/model"
)

// Knowgo is an embedded knowledge store: a vector index, a typed metadata
// index and a relationship graph over one entity catalog, queried through a
// single planner.
type Knowgo struct {
	engine      *engine.Engine
	metrics     MetricsCollector
	logger      *Logger
	saveOnClose bool
	closed      atomic.Bool
}

// newKnowgo is the internal constructor shared by Build and Open.
func newKnowgo(dimension int, opts options) (*Knowgo, error) {
	eng, err := engine.New(engine.Config{
		Dimension:           dimension,
		Metric:              opts.metric,
		M:                   opts.m,
		EFConstruction:      opts.efConstruction,
		EFSearch:            opts.efSearch,
		RandSeed:            opts.randSeed,
		CompactionThreshold: opts.compactionThreshold,
		AutoCompaction:      opts.autoCompaction,
		StrictFilters:       opts.strictFilters,
		Planner:             opts.planner,
		Embedder:            opts.embedder,
		Blob:                opts.blob,
		Codec:               opts.codec,
		Compression:         opts.compression,
		Resources:           opts.resources,
		Logger:              opts.logger.Logger,
	})
	if err != nil {
		return nil, translateError(err)
	}

	return &Knowgo{
		engine:      eng,
		metrics:     opts.metricsCollector,
		logger:      opts.logger,
		saveOnClose: opts.saveOnClose,
	}, nil
}

// Open builds a store and loads the newest committed snapshot from the
// configured blob store. A blob store without a snapshot yields an empty
// store; a missing blob store is an error.
//
// Example:
//
//	store := blobstore.NewLocalStore("./data")
//	db, err := knowgo.Open(ctx, 128,
//	    knowgo.WithBlobStore(store),
//	    knowgo.WithSaveOnClose(),
//	)
func Open(ctx context.Context, dimension int, optFns ...Option) (*Knowgo, error) {
	return New(dimension).Options(optFns...).Open(ctx)
}

// Insert stores a new entity and returns the stored copy with its assigned
// timestamps. When the entity carries content but no vector, the configured
// embedding provider supplies one. Inserting an id that is already live is
// an upsert and applies update semantics.
func (kg *Knowgo) Insert(ctx context.Context, ent *model.Entity) (*model.Entity, error) {
	start := time.Now()
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	var id model.EntityID
	var dimension int
	if ent != nil {
		id, dimension = ent.ID, len(ent.Vector)
	}

	stored, err := kg.engine.Insert(ctx, ent)
	duration := time.Since(start)
	err = translateError(err)
	kg.metrics.RecordInsert(duration, err)
	kg.logger.LogInsert(ctx, id, dimension, err)
	return stored, err
}

// BatchInsertResult carries the outcome of a batch insert: the ids of the
// entities that were stored, and one error slot per submitted entity (nil
// on success).
type BatchInsertResult struct {
	IDs    []model.EntityID
	Errors []error
}

// Ok reports whether every entity in the batch was stored.
func (r BatchInsertResult) Ok() bool {
	for _, err := range r.Errors {
		if err != nil {
			return false
		}
	}
	return true
}

// BatchInsert stores multiple entities through the single-entity path.
// Items fail independently; one bad entity does not abort the rest.
func (kg *Knowgo) BatchInsert(ctx context.Context, ents []*model.Entity) BatchInsertResult {
	start := time.Now()
	result := BatchInsertResult{
		IDs:    make([]model.EntityID, 0, len(ents)),
		Errors: make([]error, len(ents)),
	}
	if kg.engine == nil {
		err := fmt.Errorf("knowgo: store not initialized (use the builder)")
		for i := range result.Errors {
			result.Errors[i] = err
		}
		return result
	}

	failed := 0
	for i, ent := range ents {
		stored, err := kg.engine.Insert(ctx, ent)
		if err != nil {
			result.Errors[i] = translateError(err)
			failed++
			continue
		}
		result.IDs = append(result.IDs, stored.ID)
	}

	duration := time.Since(start)
	kg.metrics.RecordBatchInsert(len(ents), failed, duration)
	kg.logger.LogBatchInsert(ctx, len(ents), failed)
	return result
}

// Get returns a copy of the entity with the given id.
func (kg *Knowgo) Get(id model.EntityID) (*model.Entity, error) {
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}
	ent, err := kg.engine.Get(id)
	return ent, translateError(err)
}

// Has reports whether an entity with the given id is live.
func (kg *Knowgo) Has(id model.EntityID) bool {
	if kg.engine == nil {
		return false
	}
	return kg.engine.Has(id)
}

// Update rewrites a live entity in place: the vector is re-linked in the
// vector index and the metadata is diffed against the previous version.
// The entity keeps its row, its relationships and its creation timestamp.
func (kg *Knowgo) Update(ctx context.Context, ent *model.Entity) (*model.Entity, error) {
	start := time.Now()
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	var id model.EntityID
	if ent != nil {
		id = ent.ID
	}

	stored, err := kg.engine.Update(ctx, ent)
	duration := time.Since(start)
	err = translateError(err)
	kg.metrics.RecordUpdate(duration, err)
	kg.logger.LogUpdate(ctx, id, err)
	return stored, err
}

// Delete removes an entity and cascades to every relationship touching it.
// Deleting an id that is absent or already deleted is a no-op reporting
// false.
func (kg *Knowgo) Delete(ctx context.Context, id model.EntityID) (bool, error) {
	start := time.Now()
	if kg.engine == nil {
		return false, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	deleted, cascaded, err := kg.engine.Delete(ctx, id)
	duration := time.Since(start)
	err = translateError(err)
	kg.metrics.RecordDelete(duration, err)
	kg.logger.LogDelete(ctx, id, cascaded, err)
	return deleted, err
}

// Relate stores a directed, typed edge between two live entities and
// returns the stored copy with its assigned id. A zero rel.ID is filled
// with a generated one; the weight must lie in [0, 1].
func (kg *Knowgo) Relate(ctx context.Context, rel *model.Relationship) (*model.Relationship, error) {
	start := time.Now()
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	stored, err := kg.engine.Relate(ctx, rel)
	duration := time.Since(start)
	err = translateError(err)
	kg.metrics.RecordRelate(duration, err)

	var id model.RelationshipID
	if stored != nil {
		id = stored.ID
	}
	kg.logger.LogRelate(ctx, id, err)
	return stored, err
}

// Unrelate removes a relationship by id. Removing an id that is absent is a
// no-op reporting false.
func (kg *Knowgo) Unrelate(ctx context.Context, id model.RelationshipID) (bool, error) {
	start := time.Now()
	if kg.engine == nil {
		return false, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	removed, err := kg.engine.Unrelate(ctx, id)
	duration := time.Since(start)
	err = translateError(err)
	kg.metrics.RecordUnrelate(duration, err)
	kg.logger.LogUnrelate(ctx, id, err)
	return removed, err
}

// Relationship returns a copy of the relationship with the given id.
func (kg *Knowgo) Relationship(id model.RelationshipID) (*model.Relationship, error) {
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}
	rel, err := kg.engine.Relationship(id)
	return rel, translateError(err)
}

// Relationships returns copies of every relationship touching the entity,
// outgoing and incoming.
func (kg *Knowgo) Relationships(id model.EntityID) ([]*model.Relationship, error) {
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}
	rels, err := kg.engine.Relationships(id)
	return rels, translateError(err)
}

// TraverseOptions adjusts a graph traversal.
type TraverseOptions struct {
	// Types restricts expansion to edges of the given relation types;
	// empty means any type.
	Types []model.RelationType

	// Direction selects which adjacency to expand.
	// Default: DirectionBoth.
	Direction model.Direction
}

// TraversalResult is the outcome of a graph traversal.
type TraversalResult struct {
	// Hits are the reached entities ordered by hop count, then id. Start
	// ids are not part of the result.
	Hits []model.TraversalHit

	// Partial marks a traversal cut short by context expiry.
	Partial bool
}

// Traverse walks the relationship graph breadth-first from the given start
// ids, up to depth hops. Unknown start ids are ignored.
func (kg *Knowgo) Traverse(ctx context.Context, starts []model.EntityID, depth int, optFns ...func(o *TraverseOptions)) (*TraversalResult, error) {
	start := time.Now()
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	opts := TraverseOptions{
		Direction: model.DirectionBoth,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	hits, partial, err := kg.engine.Traverse(ctx, starts, opts.Types, depth, opts.Direction)
	duration := time.Since(start)
	err = translateError(err)
	kg.metrics.RecordTraverse(duration, err)
	kg.logger.LogTraverse(ctx, len(starts), len(hits), partial, err)
	if err != nil {
		return nil, err
	}

	return &TraversalResult{Hits: hits, Partial: partial}, nil
}

// Query plans and executes one combined query expression and returns a page
// of ranked hits. Similarity queries rank by ascending distance; all others
// rank by recency, newest first. Ties break on ascending id.
func (kg *Knowgo) Query(ctx context.Context, q *Query) (*Page, error) {
	start := time.Now()
	if kg.engine == nil {
		return nil, fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	eq, err := q.toEngine()
	if err != nil {
		kg.metrics.RecordQuery(time.Since(start), err)
		kg.logger.LogQuery(ctx, 0, false, err)
		return nil, err
	}

	res, err := kg.engine.Query(ctx, eq)
	if err != nil {
		err = translateError(err)
		kg.metrics.RecordQuery(time.Since(start), err)
		kg.logger.LogQuery(ctx, 0, false, err)
		return nil, err
	}

	page := &Page{
		Items:   make([]Item, 0, len(res.Items)),
		Next:    res.Next,
		Partial: res.Partial,
	}
	for _, it := range res.Items {
		page.Items = append(page.Items, Item{Entity: it.Entity, Distance: it.Distance, Depth: it.Depth})
	}

	duration := time.Since(start)
	kg.metrics.RecordQuery(duration, nil)
	kg.logger.LogQuery(ctx, len(page.Items), page.Partial, nil)
	return page, nil
}

// Compact rebuilds the vector index without its tombstones and releases
// their rows for reuse. Queries proceed against the old graph until the
// rebuilt one is swapped in.
func (kg *Knowgo) Compact(ctx context.Context) error {
	start := time.Now()
	if kg.engine == nil {
		return fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	tombstones := kg.engine.Stats().Tombstones
	err := translateError(kg.engine.Compact(ctx))
	duration := time.Since(start)
	kg.metrics.RecordCompaction(duration, err)
	kg.logger.LogCompaction(ctx, tombstones, err)
	return err
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
func (kg *Knowgo) Stats() Stats {
	if kg.engine == nil {
		return Stats{}
	}

	s := kg.engine.Stats()
	return Stats{
		Entities:           s.Entities,
		Relationships:      s.Relationships,
		Dimension:          s.Dimension,
		Metric:             s.Metric,
		Tombstones:         s.Tombstones,
		TombstoneRatio:     s.TombstoneRatio,
		MaxLayer:           s.MaxLayer,
		FieldCardinalities: s.FieldCardinalities,
	}
}

// Save writes a full snapshot through the configured blob store and commits
// it by flipping the store's current-snapshot pointer. It returns the
// snapshot id. Concurrent writes that land after the state is captured are
// not part of the snapshot.
func (kg *Knowgo) Save(ctx context.Context) (string, error) {
	start := time.Now()
	if kg.engine == nil {
		return "", fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	id, err := kg.engine.Save(ctx)
	duration := time.Since(start)
	err = translateError(err)
	kg.metrics.RecordSnapshot(duration, err)
	kg.logger.LogSnapshot(ctx, id, err)
	return id, err
}

// Load replaces the store's state with the newest committed snapshot from
// the configured blob store. Returns ErrNoSnapshot when none has been
// committed yet.
func (kg *Knowgo) Load(ctx context.Context) error {
	start := time.Now()
	if kg.engine == nil {
		return fmt.Errorf("knowgo: store not initialized (use the builder)")
	}

	err := translateError(kg.engine.Load(ctx))
	duration := time.Since(start)
	kg.metrics.RecordSnapshot(duration, err)

	entities := 0
	if err == nil {
		entities = kg.engine.Stats().Entities
	}
	kg.logger.LogLoad(ctx, entities, err)
	return err
}

// Close releases the store and waits for background work to drain. With
// WithSaveOnClose set, a final snapshot is written first. Close is safe to
// call multiple times and on a nil receiver.
func (kg *Knowgo) Close() error {
	if kg == nil || kg.engine == nil {
		return nil
	}
	if !kg.closed.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error
	if kg.saveOnClose {
		if _, err := kg.Save(context.Background()); err != nil && !errors.Is(err, ErrNoBlobStore) {
			firstErr = err
		}
	}

	if err := kg.engine.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
