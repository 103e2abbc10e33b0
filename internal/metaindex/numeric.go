package metaindex

import (
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// numericColumn stores the scalar numeric values of one field in a columnar
// layout: values sorted ascending with rows aligned, ties ordered by row.
// Binary search gives range bounds in O(log n); the strict operators skip
// the equal run at the boundary.
//
// Only numeric scalars enter the column. Array elements never range-match,
// matching compareNumeric in the metadata package.
type numericColumn struct {
	values []float64
	rows   []uint32
}

func (nc *numericColumn) insert(v float64, row uint32) {
	i := sort.SearchFloat64s(nc.values, v)
	for i < len(nc.values) && nc.values[i] == v && nc.rows[i] < row {
		i++
	}

	nc.values = slices.Insert(nc.values, i, v)
	nc.rows = slices.Insert(nc.rows, i, row)
}

func (nc *numericColumn) remove(v float64, row uint32) {
	for i := sort.SearchFloat64s(nc.values, v); i < len(nc.values) && nc.values[i] == v; i++ {
		if nc.rows[i] == row {
			nc.values = slices.Delete(nc.values, i, i+1)
			nc.rows = slices.Delete(nc.rows, i, i+1)

			return
		}
	}
}

// addGreaterThan adds all rows with value strictly greater than v to dst.
func (nc *numericColumn) addGreaterThan(v float64, dst *roaring.Bitmap) {
	if lo := nc.searchAbove(v); lo < len(nc.rows) {
		dst.AddMany(nc.rows[lo:])
	}
}

// addLessThan adds all rows with value strictly less than v to dst.
func (nc *numericColumn) addLessThan(v float64, dst *roaring.Bitmap) {
	if hi := sort.SearchFloat64s(nc.values, v); hi > 0 {
		dst.AddMany(nc.rows[:hi])
	}
}

func (nc *numericColumn) countGreaterThan(v float64) int {
	return len(nc.values) - nc.searchAbove(v)
}

func (nc *numericColumn) countLessThan(v float64) int {
	return sort.SearchFloat64s(nc.values, v)
}

// searchAbove returns the index of the first value strictly greater than v.
func (nc *numericColumn) searchAbove(v float64) int {
	i := sort.SearchFloat64s(nc.values, v)
	for i < len(nc.values) && nc.values[i] == v {
		i++
	}

	return i
}

func (nc *numericColumn) len() int {
	return len(nc.values)
}
