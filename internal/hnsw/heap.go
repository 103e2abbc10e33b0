package hnsw

import (
	"container/heap"

	"github.com/hupe1980/knowgo/model"
)

// Compile time checks to ensure the queues satisfy the heap interface.
var (
	_ heap.Interface = (*minQueue)(nil)
	_ heap.Interface = (*maxQueue)(nil)
)

// queueItem is a (row, distance) pair ordered by distance with row id as the
// deterministic tie-break.
type queueItem struct {
	Row      model.RowID
	Distance float32
}

// less orders by ascending distance, then ascending row id.
func (a queueItem) less(b queueItem) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Row < b.Row
}

// minQueue is a min-heap: the closest item is on top. Used as the expansion
// frontier during beam search.
type minQueue struct {
	items []queueItem
}

func (q *minQueue) Len() int           { return len(q.items) }
func (q *minQueue) Less(i, j int) bool { return q.items[i].less(q.items[j]) }
func (q *minQueue) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *minQueue) Push(x any) { q.items = append(q.items, x.(queueItem)) }

func (q *minQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

func (q *minQueue) PushItem(it queueItem) { heap.Push(q, it) }

func (q *minQueue) PopItem() queueItem { return heap.Pop(q).(queueItem) }

func (q *minQueue) Top() queueItem { return q.items[0] }

// maxQueue is a max-heap: the farthest item is on top. Used as the bounded
// result set during beam search; popping evicts the current worst.
type maxQueue struct {
	items []queueItem
}

func (q *maxQueue) Len() int           { return len(q.items) }
func (q *maxQueue) Less(i, j int) bool { return q.items[j].less(q.items[i]) }
func (q *maxQueue) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *maxQueue) Push(x any) { q.items = append(q.items, x.(queueItem)) }

func (q *maxQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

func (q *maxQueue) PushItem(it queueItem) { heap.Push(q, it) }

func (q *maxQueue) PopItem() queueItem { return heap.Pop(q).(queueItem) }

func (q *maxQueue) Top() queueItem { return q.items[0] }

// PushBounded pushes an item and evicts the worst once the queue exceeds
// bound. Reports whether the item survived.
func (q *maxQueue) PushBounded(it queueItem, bound int) bool {
	if q.Len() < bound {
		q.PushItem(it)
		return true
	}
	if it.less(q.Top()) {
		q.PopItem()
		q.PushItem(it)
		return true
	}
	return false
}

// drainAscending empties the queue into a slice ordered by ascending
// (distance, row).
func (q *maxQueue) drainAscending() []queueItem {
	out := make([]queueItem, q.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = q.PopItem()
	}
	return out
}
