package metaindex

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectGreaterThan(nc *numericColumn, v float64) []uint32 {
	bm := roaring.New()
	nc.addGreaterThan(v, bm)

	return bm.ToArray()
}

func collectLessThan(nc *numericColumn, v float64) []uint32 {
	bm := roaring.New()
	nc.addLessThan(v, bm)

	return bm.ToArray()
}

func TestNumericColumn_SortedInsert(t *testing.T) {
	nc := &numericColumn{}

	nc.insert(3, 30)
	nc.insert(1, 10)
	nc.insert(2, 20)
	nc.insert(2, 5) // duplicate value, lower row sorts first

	assert.Equal(t, []float64{1, 2, 2, 3}, nc.values)
	assert.Equal(t, []uint32{10, 5, 20, 30}, nc.rows)
	assert.Equal(t, 4, nc.len())
}

func TestNumericColumn_StrictBounds(t *testing.T) {
	nc := &numericColumn{}

	for i, v := range []float64{1, 2, 2, 2, 3, 5} {
		nc.insert(v, uint32(i))
	}

	// Strictly greater: the run of 2s is skipped entirely.
	assert.ElementsMatch(t, []uint32{4, 5}, collectGreaterThan(nc, 2))
	assert.Equal(t, 2, nc.countGreaterThan(2))

	// Strictly less: the run of 2s is excluded.
	assert.ElementsMatch(t, []uint32{0}, collectLessThan(nc, 2))
	assert.Equal(t, 1, nc.countLessThan(2))

	// Operand between stored values.
	assert.ElementsMatch(t, []uint32{4, 5}, collectGreaterThan(nc, 2.5))
	assert.ElementsMatch(t, []uint32{0, 1, 2, 3}, collectLessThan(nc, 2.5))

	// Out of range.
	assert.Empty(t, collectGreaterThan(nc, 5))
	assert.Empty(t, collectLessThan(nc, 1))
	assert.Len(t, collectGreaterThan(nc, 0), 6)
}

func TestNumericColumn_Remove(t *testing.T) {
	nc := &numericColumn{}

	nc.insert(2, 1)
	nc.insert(2, 2)
	nc.insert(2, 3)

	nc.remove(2, 2)

	assert.Equal(t, []uint32{1, 3}, nc.rows)

	// Removing an absent pair is a no-op.
	nc.remove(2, 99)
	nc.remove(7, 1)

	require.Equal(t, 2, nc.len())
}

func TestNumericColumn_Empty(t *testing.T) {
	nc := &numericColumn{}

	assert.Empty(t, collectGreaterThan(nc, 0))
	assert.Empty(t, collectLessThan(nc, 0))
	assert.Zero(t, nc.countGreaterThan(0))
	assert.Zero(t, nc.countLessThan(0))
}
