// Package planner turns one combined query expression into index calls.
//
// A query carries up to three clauses: a similarity clause (query vector), a
// metadata filter and a graph reachability constraint. The planner decides,
// from selectivity estimates, whether the filter is applied before or after
// the vector search:
//
//   - A selective filter is materialized into an exact row set F up front.
//     When F (intersected with the reachable set G) is small enough, every
//     surviving row is scored exactly and the ANN graph is skipped entirely.
//   - A broad filter stays a post-filter: the vector index is searched with
//     an oversampled k, survivors are kept, and the oversampling factor
//     doubles until a page is full or the retry budget is spent.
//
// Pages are keyset-paginated: the returned cursor encodes the sort key and
// entity id of the last row, and a continuation keeps only rows sorting
// strictly after it. Entity id ascending breaks all ties, which makes the
// order total and the cursor stable. Deadline expiry and retry-budget
// exhaustion degrade to a shorter page flagged partial, never to an error.
package planner

import (
	"context"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/knowgo/internal/hnsw"
	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
)

// rankBatch is how many candidates are ranked between deadline checks.
const rankBatch = 128

// Store is the engine surface the planner plans against. All methods are
// safe for concurrent use; rows observed through one call may disappear
// before the next, so lookups report existence instead of failing.
type Store interface {
	// AliveCount returns the number of live entities.
	AliveCount() int

	// AliveRows returns the set of live rows. The caller owns the bitmap.
	AliveRows() *roaring.Bitmap

	// CheckFields verifies every predicate field has been observed.
	CheckFields(w *metadata.Where) error

	// EstimateWhere upper-bounds the number of rows matching w.
	EstimateWhere(w *metadata.Where) uint64

	// EvalWhere materializes the exact row set matching w.
	// The caller owns the bitmap.
	EvalWhere(w *metadata.Where) *roaring.Bitmap

	// MatchesWhere evaluates w directly against the stored document of row.
	MatchesWhere(row model.RowID, w *metadata.Where) bool

	// TraverseRows runs the bounded reachability search and returns
	// first-reach hop distances keyed by row, plus a partial flag on
	// deadline expiry. Unknown start ids contribute nothing.
	TraverseRows(ctx context.Context, starts []model.EntityID, types []model.RelationType, depth int, dir model.Direction) (map[model.RowID]int, bool)

	// VectorSearch runs the approximate search over all live rows.
	VectorSearch(ctx context.Context, query []float32, k, ef int) ([]hnsw.Candidate, bool, error)

	// VectorBruteSearch scores exactly the allowed rows.
	VectorBruteSearch(ctx context.Context, query []float32, k int, allowed *roaring.Bitmap) ([]hnsw.Candidate, bool, error)

	// Describe resolves a row to its entity id and creation timestamp.
	Describe(row model.RowID) (model.EntityID, int64, bool)
}

// Options are the planner tuning knobs.
type Options struct {
	// SelectivityThreshold is the fraction of alive entities below which a
	// filter counts as selective and is materialized exactly.
	SelectivityThreshold float64

	// SelectivityFloor is the absolute match count below which a filter is
	// always materialized, regardless of the fraction.
	SelectivityFloor int

	// OversampleFactor is the initial multiple of the page size requested
	// from the vector index when post-filtering; it doubles on each retry.
	OversampleFactor int

	// MaxOversampleRetries bounds the doubling retries after the initial
	// oversampled search.
	MaxOversampleRetries int

	// BruteForceThreshold is the exact candidate-set size at or below which
	// rows are scored directly instead of walking the ANN graph.
	BruteForceThreshold int
}

// DefaultOptions are the planner defaults.
var DefaultOptions = Options{
	SelectivityThreshold: 0.01,
	SelectivityFloor:     500,
	OversampleFactor:     4,
	MaxOversampleRetries: 4,
	BruteForceThreshold:  500,
}

// Connected is the graph reachability clause: BFS start ids, an optional
// relationship type filter, a hop bound and the expansion direction.
type Connected struct {
	Starts    []model.EntityID
	Types     []model.RelationType
	Depth     int
	Direction model.Direction
}

// Request is one validated query expression.
type Request struct {
	// Vector is the similarity clause; nil means no similarity ranking.
	Vector []float32

	// Where is the metadata filter; nil or empty means unconstrained.
	Where *metadata.Where

	// Connected restricts results to rows reachable through the graph.
	Connected *Connected

	// Limit is the page size, at least 1.
	Limit int

	// Offset skips ranked rows; ignored when Cursor is set.
	Offset int

	// Cursor continues a previous page.
	Cursor string

	// Strict rejects filters on never-observed fields.
	Strict bool

	// EF overrides the vector index beam width; zero uses its default.
	EF int
}

// Hit is one ranked row.
type Hit struct {
	Row       model.RowID
	ID        model.EntityID
	Distance  float32 // meaningful when the request had a vector
	CreatedAt int64
	Depth     int // first-reach hops when the request had a connected clause
}

// Result is one page.
type Result struct {
	Hits    []Hit
	Next    string // continuation cursor, empty unless the page is full
	Partial bool
}

// Planner routes queries across the three indexes.
type Planner struct {
	store Store
	opts  Options
}

// New creates a planner over store. Out-of-range option values fall back to
// the defaults.
func New(store Store, optFns ...func(o *Options)) *Planner {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SelectivityThreshold < 0 {
		opts.SelectivityThreshold = DefaultOptions.SelectivityThreshold
	}
	if opts.SelectivityFloor < 0 {
		opts.SelectivityFloor = DefaultOptions.SelectivityFloor
	}
	if opts.OversampleFactor < 1 {
		opts.OversampleFactor = DefaultOptions.OversampleFactor
	}
	if opts.MaxOversampleRetries < 0 {
		opts.MaxOversampleRetries = DefaultOptions.MaxOversampleRetries
	}
	if opts.BruteForceThreshold < 0 {
		opts.BruteForceThreshold = DefaultOptions.BruteForceThreshold
	}

	return &Planner{store: store, opts: opts}
}

// Execute answers one query expression with a ranked page.
func (p *Planner) Execute(ctx context.Context, req *Request) (*Result, error) {
	where := req.Where
	if where != nil && len(where.Predicates) == 0 {
		where = nil
	}

	if req.Strict {
		if err := p.store.CheckFields(where); err != nil {
			return nil, err
		}
	}

	cur, err := p.decodeRequestCursor(req)
	if err != nil {
		return nil, err
	}

	partial := false

	// G: rows reachable through the graph, with hop distances.
	var g map[model.RowID]int
	if req.Connected != nil {
		var part bool
		g, part = p.store.TraverseRows(ctx, req.Connected.Starts, req.Connected.Types, req.Connected.Depth, req.Connected.Direction)
		partial = partial || part

		if len(g) == 0 {
			return &Result{Partial: partial}, nil
		}
	}

	// F: the exact filter row set, materialized only when selective.
	var f *roaring.Bitmap
	if where != nil {
		alive := p.store.AliveCount()
		bound := uint64(max(int(p.opts.SelectivityThreshold*float64(alive)), p.opts.SelectivityFloor))

		if p.store.EstimateWhere(where) <= bound {
			f = p.store.EvalWhere(where)
			if f.IsEmpty() {
				return &Result{Partial: partial}, nil
			}
		}
	}

	if req.Vector != nil {
		return p.planSimilarity(ctx, req, where, f, g, cur, partial)
	}
	return p.planRecency(ctx, req, where, f, g, cur, partial)
}

func (p *Planner) decodeRequestCursor(req *Request) (*cursor, error) {
	if req.Cursor == "" {
		return nil, nil
	}

	c, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	mode := modeRecency
	if req.Vector != nil {
		mode = modeDistance
	}
	if c.mode != mode {
		return nil, &ErrBadCursor{Reason: "cursor sort order does not match the query"}
	}

	return &c, nil
}

// planSimilarity ranks by ascending distance. It scores the exact candidate
// set directly when that set is known and small, and otherwise post-filters
// an oversampled approximate search.
func (p *Planner) planSimilarity(ctx context.Context, req *Request, where *metadata.Where, f *roaring.Bitmap, g map[model.RowID]int, cur *cursor, partial bool) (*Result, error) {
	alive := p.store.AliveCount()
	if alive == 0 {
		return &Result{Partial: partial}, nil
	}

	// The exact candidate set, when every present clause is materialized.
	var cset *roaring.Bitmap
	switch {
	case f != nil && g != nil:
		cset = f.Clone()
		cset.And(rowSet(g))
	case f != nil:
		cset = f
	case g != nil:
		cset = rowSet(g)
	}

	if cset != nil && cset.GetCardinality() <= uint64(p.opts.BruteForceThreshold) {
		if cset.IsEmpty() {
			return &Result{Partial: partial}, nil
		}

		cands, expired, err := p.store.VectorBruteSearch(ctx, req.Vector, int(cset.GetCardinality()), cset)
		if err != nil {
			return nil, err
		}

		// Filter and graph membership are already baked into cset.
		hits, expired2 := p.collectHits(ctx, cands, nil, nil, g, cur)
		sortByDistance(hits)

		page, next := p.page(hits, req, cur, modeDistance)
		return &Result{Hits: page, Next: next, Partial: partial || expired || expired2}, nil
	}

	// Post-filter path: oversample, keep survivors, double on a short page.
	needed := req.Limit
	if cur == nil {
		needed += req.Offset
	}

	factor := p.opts.OversampleFactor
	var hits []Hit
	expired := false
	exhausted := false

	for attempt := 0; ; attempt++ {
		k := min(needed*factor, alive)

		cands, part, err := p.store.VectorSearch(ctx, req.Vector, k, req.EF)
		if err != nil {
			return nil, err
		}

		hits, expired = p.collectHits(ctx, cands, where, f, g, cur)
		expired = expired || part

		if expired || len(hits) >= needed || k >= alive {
			break
		}
		if attempt >= p.opts.MaxOversampleRetries {
			// Degraded but successful: the page stays short.
			exhausted = true
			break
		}

		factor *= 2
	}

	sortByDistance(hits)

	page, next := p.page(hits, req, cur, modeDistance)
	return &Result{Hits: page, Next: next, Partial: partial || expired || exhausted}, nil
}

// planRecency ranks by createdAt descending. Without a similarity clause the
// filter is always evaluated exactly; there is nothing to post-filter.
func (p *Planner) planRecency(ctx context.Context, req *Request, where *metadata.Where, f *roaring.Bitmap, g map[model.RowID]int, cur *cursor, partial bool) (*Result, error) {
	if where != nil && f == nil {
		f = p.store.EvalWhere(where)
	}

	candidates := f
	if candidates == nil {
		candidates = p.store.AliveRows()
	}
	if g != nil {
		candidates.And(rowSet(g))
	}

	hits := make([]Hit, 0, candidates.GetCardinality())
	expired := false

	it := candidates.Iterator()
	for i := 0; it.HasNext(); i++ {
		if i%rankBatch == 0 && ctx != nil && ctx.Err() != nil {
			expired = true
			break
		}

		row := model.RowID(it.Next())

		id, ts, ok := p.store.Describe(row)
		if !ok {
			continue
		}
		if cur != nil && !cur.acceptsRecency(ts, id) {
			continue
		}

		depth := 0
		if g != nil {
			depth = g[row]
		}

		hits = append(hits, Hit{Row: row, ID: id, CreatedAt: ts, Depth: depth})
	}

	sortByRecency(hits)

	page, next := p.page(hits, req, cur, modeRecency)
	return &Result{Hits: page, Next: next, Partial: partial || expired}, nil
}

// collectHits keeps the candidates that survive the filter, reachability and
// cursor constraints, resolving each surviving row to its entity. The bool
// result reports deadline expiry; the hits collected so far remain valid.
func (p *Planner) collectHits(ctx context.Context, cands []hnsw.Candidate, where *metadata.Where, f *roaring.Bitmap, g map[model.RowID]int, cur *cursor) ([]Hit, bool) {
	hits := make([]Hit, 0, len(cands))

	for i, c := range cands {
		if i%rankBatch == 0 && ctx != nil && ctx.Err() != nil {
			return hits, true
		}

		depth := 0
		if g != nil {
			d, ok := g[c.Row]
			if !ok {
				continue
			}
			depth = d
		}

		switch {
		case f != nil:
			if !f.Contains(uint32(c.Row)) {
				continue
			}
		case where != nil:
			if !p.store.MatchesWhere(c.Row, where) {
				continue
			}
		}

		id, ts, ok := p.store.Describe(c.Row)
		if !ok {
			continue
		}
		if cur != nil && !cur.acceptsDistance(c.Distance, id) {
			continue
		}

		hits = append(hits, Hit{Row: c.Row, ID: id, Distance: c.Distance, CreatedAt: ts, Depth: depth})
	}

	return hits, false
}

// page slices the ranked hits into the requested window and issues the
// continuation cursor when the page came back full.
func (p *Planner) page(hits []Hit, req *Request, cur *cursor, mode byte) ([]Hit, string) {
	start := req.Offset
	if cur != nil {
		start = 0
	}
	if start > len(hits) {
		start = len(hits)
	}

	page := hits[start:]
	if len(page) > req.Limit {
		page = page[:req.Limit]
	}

	var next string
	if req.Limit > 0 && len(page) == req.Limit {
		last := page[len(page)-1]

		key := uint64(last.CreatedAt)
		if mode == modeDistance {
			key = math.Float64bits(float64(last.Distance))
		}

		next = encodeCursor(cursor{mode: mode, key: key, id: last.ID})
	}

	return page, next
}

func sortByDistance(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
}

func sortByRecency(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].CreatedAt != hits[j].CreatedAt {
			return hits[i].CreatedAt > hits[j].CreatedAt
		}
		return hits[i].ID < hits[j].ID
	})
}

func rowSet(g map[model.RowID]int) *roaring.Bitmap {
	bm := roaring.New()
	for row := range g {
		bm.Add(uint32(row))
	}
	return bm
}
