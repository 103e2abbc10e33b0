package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{5, 4, 3, 2, 1}
	assert.InDelta(t, 35.0, Dot(a, b), 1e-6)

	// Length not divisible by the unrolled stride.
	assert.InDelta(t, 3.0, Dot([]float32{1, 1, 1}, []float32{1, 1, 1}), 1e-6)
}

func TestSquaredL2(t *testing.T) {
	a := []float32{0, 0, 0, 0}
	b := []float32{1, 2, 2, 0}
	assert.InDelta(t, 9.0, SquaredL2(a, b), 1e-6)
	assert.Zero(t, SquaredL2(b, b))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-6, "parallel vectors")
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6, "orthogonal vectors")
	assert.InDelta(t, 2.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6, "opposite vectors")

	// A zero-norm vector is maximally dissimilar by convention.
	assert.InDelta(t, 1.0, Cosine([]float32{0, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{0, 0}), 1e-6)
}

func TestCosineEqualsOneMinusDotOnNormalizedInput(t *testing.T) {
	a, ok := NormalizeL2Copy([]float32{3, 4, 0})
	require.True(t, ok)
	b, ok := NormalizeL2Copy([]float32{1, 1, 1})
	require.True(t, ok)

	assert.InDelta(t, float64(1-Dot(a, b)), float64(Cosine(a, b)), 1e-6)
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	require.True(t, NormalizeL2InPlace(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, Dot(v, v), 1e-6)

	assert.False(t, NormalizeL2InPlace([]float32{0, 0}))
	assert.False(t, NormalizeL2InPlace(nil))

	src := []float32{0, 5}
	normalized, ok := NormalizeL2Copy(src)
	require.True(t, ok)
	assert.Equal(t, float32(5), src[1], "source untouched")
	assert.InDelta(t, 1.0, normalized[1], 1e-6)
}

func TestProvider(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricL2, MetricDot} {
		fn, err := Provider(m)
		require.NoError(t, err, m.String())
		assert.NotNil(t, fn)
	}

	_, err := Provider(Metric(99))
	assert.Error(t, err)
}

func TestNegDotOrdersCloserFirst(t *testing.T) {
	q := []float32{1, 0}
	near := []float32{2, 0}
	far := []float32{0.1, 0}
	assert.Less(t, NegDot(q, near), NegDot(q, far), "larger inner product means smaller distance")
}
