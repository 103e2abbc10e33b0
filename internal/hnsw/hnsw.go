// Package hnsw implements the vector index: a Hierarchical Navigable Small
// World proximity graph with soft deletes.
//
// Deleted rows are tombstoned, not unlinked: they keep their edges and stay
// navigable so the graph does not fragment, but they are never returned from
// a search. Compact rebuilds the graph without tombstones once their share
// grows too large; it is the only operation that holds the structural lock
// for more than a single mutation.
//
// All results are deterministic for a given graph state: equal distances are
// broken by ascending row id everywhere a candidate set is truncated.
package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/knowgo/distance"
	"github.com/hupe1980/knowgo/model"
)

// maxLayerBound caps the drawn layer so a degenerate random draw cannot
// allocate an absurd connection table.
const maxLayerBound = 48

// ErrDimensionMismatch indicates a vector whose length differs from the
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrRowNotFound indicates an operation on a row the index does not hold.
type ErrRowNotFound struct {
	Row model.RowID
}

func (e *ErrRowNotFound) Error() string {
	return fmt.Sprintf("row not found: %d", e.Row)
}

// ErrRowOccupied indicates an insert into a row slot that already holds a
// node. Row slots are never reused; upserts go through Update.
type ErrRowOccupied struct {
	Row model.RowID
}

func (e *ErrRowOccupied) Error() string {
	return fmt.Sprintf("row already occupied: %d", e.Row)
}

// Candidate is a search result: a row and its distance to the query.
type Candidate struct {
	Row      model.RowID
	Distance float32
}

// Options configures the index.
type Options struct {
	// Dimension is the fixed vector dimension. Required.
	Dimension int

	// M bounds the neighbor list per node per layer (layer 0 allows 2*M).
	M int

	// EFConstruction is the beam width used while linking a new node.
	EFConstruction int

	// EFSearch is the default beam width for queries. Zero means 2*k,
	// never less than k.
	EFSearch int

	// Distance is the metric. Defaults to cosine distance.
	Distance distance.Func

	// Normalize L2-normalizes vectors on ingest and queries on entry.
	// Should be true for cosine distance.
	Normalize bool

	// CompactionThreshold is the tombstone share above which
	// NeedsCompaction reports true.
	CompactionThreshold float64

	// RandSeed seeds layer assignment. Zero picks a random seed.
	RandSeed int64
}

// DefaultOptions are the index defaults.
var DefaultOptions = Options{
	M:                   16,
	EFConstruction:      200,
	Distance:            distance.Cosine,
	Normalize:           true,
	CompactionThreshold: 0.20,
}

type node struct {
	vector      []float32
	connections [][]model.RowID
	layer       int
}

// Index is the HNSW graph. Safe for concurrent use: reads share the lock,
// structural writes are exclusive.
type Index struct {
	mu sync.RWMutex

	opts  Options
	mmax  int     // max connections per layer
	mmax0 int     // max connections on layer 0
	ml    float64 // level generation factor, 1/ln(M)

	nodes      []*node // indexed by RowID, nil slots never held a node
	entryPoint model.RowID
	maxLayer   int

	tombstones     *bitset.BitSet
	tombstoneCount int
	aliveCount     int

	rng *rand.Rand
}

// New creates an empty index.
func New(dimension int, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	opts.Dimension = dimension

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", opts.Dimension)
	}
	if opts.M < 2 {
		// M == 1 would divide by zero in the level factor.
		opts.M = 2
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = DefaultOptions.EFConstruction
	}
	if opts.Distance == nil {
		opts.Distance = distance.Cosine
	}

	seed := opts.RandSeed
	if seed == 0 {
		seed = rand.Int63()
	}

	return &Index{
		opts:       opts,
		mmax:       opts.M,
		mmax0:      2 * opts.M,
		ml:         1 / math.Log(float64(opts.M)),
		entryPoint: model.InvalidRowID,
		maxLayer:   -1,
		tombstones: bitset.New(0),
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Dimension returns the configured vector dimension.
func (h *Index) Dimension() int { return h.opts.Dimension }

// Len returns the number of alive rows.
func (h *Index) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.aliveCount
}

// Has reports whether the row is held and alive.
func (h *Index) Has(row model.RowID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.alive(row)
}

// Occupied reports whether the row's slot is held at all, alive or
// tombstoned. A tombstoned slot cannot be reused until compaction frees it.
func (h *Index) Occupied(row model.RowID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int(row) < len(h.nodes) && h.nodes[row] != nil
}

func (h *Index) alive(row model.RowID) bool {
	return int(row) < len(h.nodes) && h.nodes[row] != nil && !h.tombstones.Test(uint(row))
}

// Insert adds a vector under a fresh row id.
func (h *Index) Insert(row model.RowID, vector []float32) error {
	prepared, err := h.prepare(vector)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if int(row) < len(h.nodes) && h.nodes[row] != nil {
		return &ErrRowOccupied{Row: row}
	}

	h.insertPrepared(row, prepared)
	return nil
}

// insertPrepared links a prepared vector into the graph.
// Caller must hold the write lock.
func (h *Index) insertPrepared(row model.RowID, vector []float32) {
	for int(row) >= len(h.nodes) {
		h.nodes = append(h.nodes, nil)
	}

	layer := h.drawLayer()
	n := &node{
		vector:      vector,
		connections: make([][]model.RowID, layer+1),
		layer:       layer,
	}
	h.nodes[row] = n
	h.aliveCount++

	// First node becomes the entry point with no links.
	if h.entryPoint == model.InvalidRowID {
		h.entryPoint = row
		h.maxLayer = layer
		return
	}

	curr, currDist := h.descend(vector, layer)

	for level := min(layer, h.maxLayer); level >= 0; level-- {
		results := h.searchLayer(nil, vector, curr, currDist, h.opts.EFConstruction, level, false)
		selected := h.selectNeighbors(results, h.mmax)

		n.connections[level] = make([]model.RowID, len(selected))
		for i, c := range selected {
			n.connections[level][i] = c.Row
		}

		for _, c := range selected {
			h.addConnection(c.Row, row, level)
		}

		if len(selected) > 0 {
			curr, currDist = selected[0].Row, selected[0].Distance
		}
	}

	if layer > h.maxLayer {
		h.entryPoint = row
		h.maxLayer = layer
	}
}

// drawLayer samples the node layer from an exponential distribution with
// parameter 1/ln(M).
func (h *Index) drawLayer() int {
	u := h.rng.Float64()
	for u == 0 {
		u = h.rng.Float64()
	}
	layer := int(math.Floor(-math.Log(u) * h.ml))
	if layer > maxLayerBound {
		layer = maxLayerBound
	}
	return layer
}

// descend greedily walks from the entry point down to targetLayer+1, one
// closest-neighbor step at a time, and returns the best starting point for
// the beam phase.
func (h *Index) descend(vector []float32, targetLayer int) (model.RowID, float32) {
	curr := h.entryPoint
	currDist := h.opts.Distance(h.nodes[curr].vector, vector)

	for level := h.maxLayer; level > targetLayer; level-- {
		changed := true
		for changed {
			changed = false
			for _, neighbor := range h.connectionsAt(curr, level) {
				d := h.opts.Distance(h.nodes[neighbor].vector, vector)
				if d < currDist || (d == currDist && neighbor < curr) {
					curr, currDist = neighbor, d
					changed = true
				}
			}
		}
	}

	return curr, currDist
}

func (h *Index) connectionsAt(row model.RowID, level int) []model.RowID {
	n := h.nodes[row]
	if n == nil || level >= len(n.connections) {
		return nil
	}
	return n.connections[level]
}

// searchLayer runs a beam search with width ef on one layer and returns up
// to ef rows ordered by ascending (distance, row).
//
// Tombstoned rows are always traversed; they are kept out of the result set
// only when aliveOnly is set. When ctx is non-nil it is checked once per
// expansion step and the beam stops early on expiry, leaving a valid partial
// result in the returned slice.
func (h *Index) searchLayer(ctx context.Context, vector []float32, entry model.RowID, entryDist float32, ef, level int, aliveOnly bool) []queueItem {
	st := acquireSearchState()
	defer releaseSearchState(st)

	st.visited.Set(uint(entry))

	candidates := &st.candidates
	candidates.PushItem(queueItem{Row: entry, Distance: entryDist})

	results := &st.results
	if !aliveOnly || !h.tombstones.Test(uint(entry)) {
		results.PushItem(queueItem{Row: entry, Distance: entryDist})
	}

	for candidates.Len() > 0 {
		if ctx != nil && ctx.Err() != nil {
			break
		}

		c := candidates.PopItem()
		if results.Len() >= ef && !c.less(results.Top()) {
			break
		}

		for _, neighbor := range h.connectionsAt(c.Row, level) {
			if st.visited.Test(uint(neighbor)) {
				continue
			}
			st.visited.Set(uint(neighbor))

			d := h.opts.Distance(h.nodes[neighbor].vector, vector)
			it := queueItem{Row: neighbor, Distance: d}

			if results.Len() < ef || it.less(results.Top()) {
				candidates.PushItem(it)
				if !aliveOnly || !h.tombstones.Test(uint(neighbor)) {
					results.PushBounded(it, ef)
				}
			}
		}
	}

	return results.drainAscending()
}

// selectNeighbors picks up to m diverse neighbors from an ascending
// candidate list.
//
// A candidate is kept only if it is closer to the query than to every
// already-kept neighbor; this prefers neighbors spread around the query over
// a tight clump. Rejected candidates fill remaining slots by distance.
func (h *Index) selectNeighbors(ordered []queueItem, m int) []queueItem {
	if len(ordered) <= m {
		return ordered
	}

	kept := make([]queueItem, 0, m)
	var spare []queueItem

	for _, c := range ordered {
		if len(kept) >= m {
			break
		}
		diverse := true
		for _, k := range kept {
			if h.opts.Distance(h.nodes[c.Row].vector, h.nodes[k.Row].vector) < c.Distance {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, c)
		} else {
			spare = append(spare, c)
		}
	}

	for _, c := range spare {
		if len(kept) >= m {
			break
		}
		kept = append(kept, c)
	}

	return kept
}

// addConnection links target into row's neighbor list at level, pruning to
// the level bound by distance when the list overflows.
func (h *Index) addConnection(row, target model.RowID, level int) {
	n := h.nodes[row]
	for level >= len(n.connections) {
		n.connections = append(n.connections, nil)
	}
	n.connections[level] = append(n.connections[level], target)

	bound := h.mmax
	if level == 0 {
		bound = h.mmax0
	}
	if len(n.connections[level]) <= bound {
		return
	}

	pruned := &maxQueue{}
	for _, neighbor := range n.connections[level] {
		d := h.opts.Distance(h.nodes[row].vector, h.nodes[neighbor].vector)
		pruned.PushBounded(queueItem{Row: neighbor, Distance: d}, bound)
	}

	ordered := pruned.drainAscending()
	conns := make([]model.RowID, len(ordered))
	for i, c := range ordered {
		conns[i] = c.Row
	}
	n.connections[level] = conns
}

// Search returns the k alive rows closest to the query, at most k of them,
// ordered by ascending (distance, row). The partial flag is set when the
// deadline expired mid-beam and the prefix collected so far was returned.
func (h *Index) Search(ctx context.Context, query []float32, k, ef int) ([]Candidate, bool, error) {
	if k <= 0 {
		return nil, false, nil
	}

	prepared, err := h.prepare(query)
	if err != nil {
		return nil, false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entryPoint == model.InvalidRowID || h.aliveCount == 0 {
		return nil, false, nil
	}

	if ef <= 0 {
		ef = h.opts.EFSearch
	}
	if ef <= 0 {
		ef = 2 * k
	}
	ef = max(ef, k)

	curr, currDist := h.descend(prepared, 0)

	ordered := h.searchLayer(ctx, prepared, curr, currDist, ef, 0, true)
	partial := ctx != nil && ctx.Err() != nil

	if len(ordered) > k {
		ordered = ordered[:k]
	}

	out := make([]Candidate, len(ordered))
	for i, c := range ordered {
		out[i] = Candidate{Row: c.Row, Distance: c.Distance}
	}
	return out, partial, nil
}

// BruteSearch scores every alive row (restricted to allowed when non-nil)
// against the query and returns the k closest, ordered by ascending
// (distance, row). Used by the planner when the candidate set is already
// small enough that the graph is not worth walking.
func (h *Index) BruteSearch(ctx context.Context, query []float32, k int, allowed *roaring.Bitmap) ([]Candidate, bool, error) {
	if k <= 0 {
		return nil, false, nil
	}

	prepared, err := h.prepare(query)
	if err != nil {
		return nil, false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	results := &maxQueue{}
	partial := false

	score := func(row model.RowID) {
		d := h.opts.Distance(h.nodes[row].vector, prepared)
		results.PushBounded(queueItem{Row: row, Distance: d}, k)
	}

	const checkEvery = 256
	checked := 0

	if allowed != nil {
		it := allowed.Iterator()
		for it.HasNext() {
			if checked%checkEvery == 0 && ctx != nil && ctx.Err() != nil {
				partial = true
				break
			}
			checked++
			row := model.RowID(it.Next())
			if h.alive(row) {
				score(row)
			}
		}
	} else {
		for i := range h.nodes {
			if checked%checkEvery == 0 && ctx != nil && ctx.Err() != nil {
				partial = true
				break
			}
			checked++
			row := model.RowID(i)
			if h.alive(row) {
				score(row)
			}
		}
	}

	ordered := results.drainAscending()
	out := make([]Candidate, len(ordered))
	for i, c := range ordered {
		out[i] = Candidate{Row: c.Row, Distance: c.Distance}
	}
	return out, partial, nil
}

// DistanceTo returns the exact distance between the query and one row.
func (h *Index) DistanceTo(query []float32, row model.RowID) (float32, error) {
	prepared, err := h.prepare(query)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.alive(row) {
		return 0, &ErrRowNotFound{Row: row}
	}
	return h.opts.Distance(h.nodes[row].vector, prepared), nil
}

// Update replaces the vector of an existing row and re-links it.
//
// The row keeps its layer; fresh outgoing edges are searched for at every
// level and neighbors are linked back. Stale inbound edges from the old
// position remain; they are valid graph edges and get pruned over time.
func (h *Index) Update(row model.RowID, vector []float32) error {
	prepared, err := h.prepare(vector)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if int(row) >= len(h.nodes) || h.nodes[row] == nil || h.tombstones.Test(uint(row)) {
		return &ErrRowNotFound{Row: row}
	}

	n := h.nodes[row]
	n.vector = prepared

	if h.aliveCount == 1 {
		return nil
	}

	curr, currDist := h.descend(prepared, n.layer)

	for level := min(n.layer, h.maxLayer); level >= 0; level-- {
		results := h.searchLayer(nil, prepared, curr, currDist, h.opts.EFConstruction, level, false)

		// The beam rediscovers row itself through its old edges; it must
		// not become its own neighbor.
		filtered := make([]queueItem, 0, len(results))
		for _, c := range results {
			if c.Row != row {
				filtered = append(filtered, c)
			}
		}

		selected := h.selectNeighbors(filtered, h.mmax)
		conns := make([]model.RowID, len(selected))
		for i, c := range selected {
			conns[i] = c.Row
		}
		n.connections[level] = conns

		for _, c := range selected {
			h.addConnection(c.Row, row, level)
		}

		if len(selected) > 0 {
			curr, currDist = selected[0].Row, selected[0].Distance
		}
	}

	return nil
}

// Delete tombstones a row. The node keeps its edges and stays navigable.
// Deleting an absent or already tombstoned row is a no-op reporting false.
func (h *Index) Delete(row model.RowID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if int(row) >= len(h.nodes) || h.nodes[row] == nil || h.tombstones.Test(uint(row)) {
		return false
	}

	h.tombstones.Set(uint(row))
	h.tombstoneCount++
	h.aliveCount--
	return true
}

// TombstoneRatio returns the share of held rows that are tombstoned.
func (h *Index) TombstoneRatio() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tombstoneRatio()
}

func (h *Index) tombstoneRatio() float64 {
	total := h.aliveCount + h.tombstoneCount
	if total == 0 {
		return 0
	}
	return float64(h.tombstoneCount) / float64(total)
}

// NeedsCompaction reports whether the tombstone share exceeds the configured
// threshold.
func (h *Index) NeedsCompaction() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tombstoneCount > 0 && h.tombstoneRatio() > h.opts.CompactionThreshold
}

// Compact rebuilds the graph from the alive rows only, dropping tombstones
// and their edges. Rows keep their ids. The whole rebuild runs under the
// structural write lock; on context expiry the old graph is kept untouched.
func (h *Index) Compact(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tombstoneCount == 0 {
		return nil
	}

	rebuilt := &Index{
		opts:       h.opts,
		mmax:       h.mmax,
		mmax0:      h.mmax0,
		ml:         h.ml,
		entryPoint: model.InvalidRowID,
		maxLayer:   -1,
		tombstones: bitset.New(uint(len(h.nodes))),
		rng:        h.rng,
	}

	for i, n := range h.nodes {
		if n == nil || h.tombstones.Test(uint(i)) {
			continue
		}
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		rebuilt.insertPrepared(model.RowID(i), n.vector)
	}

	h.nodes = rebuilt.nodes
	h.entryPoint = rebuilt.entryPoint
	h.maxLayer = rebuilt.maxLayer
	h.tombstones = rebuilt.tombstones
	h.tombstoneCount = 0
	h.aliveCount = rebuilt.aliveCount
	return nil
}

// Stats is a point-in-time snapshot of graph shape.
type Stats struct {
	Alive          int
	Tombstones     int
	TombstoneRatio float64
	MaxLayer       int
}

// Stats returns current graph statistics.
func (h *Index) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		Alive:          h.aliveCount,
		Tombstones:     h.tombstoneCount,
		TombstoneRatio: h.tombstoneRatio(),
		MaxLayer:       h.maxLayer,
	}
}

// prepare validates the dimension and returns the vector the index stores
// and compares: a private copy, L2-normalized when configured.
func (h *Index) prepare(vector []float32) ([]float32, error) {
	if len(vector) != h.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: h.opts.Dimension, Actual: len(vector)}
	}

	prepared := make([]float32, len(vector))
	copy(prepared, vector)

	if h.opts.Normalize {
		// A zero vector stays as-is; cosine distance treats it as
		// maximally distant from everything.
		distance.NormalizeL2InPlace(prepared)
	}
	return prepared, nil
}
