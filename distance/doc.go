// Package distance provides vector distance calculations.
//
// All functions are distances: smaller means closer. Cosine distance is
// defined as 1 - cosine_similarity and is the store default.
//
// # Supported Metrics
//
//   - MetricCosine: 1 - cosine similarity (default)
//   - MetricL2: squared Euclidean distance
//   - MetricDot: negated inner product
//
// # Usage
//
//	dist := distance.Cosine(a, b)
//	fn, err := distance.Provider(distance.MetricCosine)
package distance
