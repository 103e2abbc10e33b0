package hnsw

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

const (
	// defaultVisitedBits sizes the visited set of a fresh pooled state.
	defaultVisitedBits = 4096

	// maxPooledVisitedBits bounds what a state may keep between searches,
	// so one huge index does not pin memory for every later search.
	maxPooledVisitedBits = 1 << 24
)

// searchState carries the reusable allocations of one beam search: the
// visited set and both heaps. searchLayer acquires a state, drains the
// results into a fresh slice and releases it.
type searchState struct {
	visited    *bitset.BitSet
	candidates minQueue
	results    maxQueue
}

var searchStatePool = sync.Pool{
	New: func() any {
		return &searchState{visited: bitset.New(defaultVisitedBits)}
	},
}

func acquireSearchState() *searchState {
	st := searchStatePool.Get().(*searchState)
	st.visited.ClearAll()
	st.candidates.items = st.candidates.items[:0]
	st.results.items = st.results.items[:0]

	return st
}

func releaseSearchState(st *searchState) {
	if st.visited.Len() > maxPooledVisitedBits {
		st.visited = bitset.New(defaultVisitedBits)
	}

	searchStatePool.Put(st)
}
