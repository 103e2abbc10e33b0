// Package embedding defines the provider interface used to turn opaque
// content into fixed-dimension vectors.
//
// The store never embeds anything by itself; it consults a Provider only when
// an entity is inserted without a vector or when a query's like clause
// carries content instead of a vector.
package embedding

import "context"

// Provider produces a D-dimensional embedding for a piece of content.
//
// Implementations must be safe for concurrent use and must return vectors of
// a fixed dimension matching the store they are attached to.
type Provider interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// ProviderFunc adapts an ordinary function to the Provider interface.
type ProviderFunc func(ctx context.Context, content string) ([]float32, error)

// Embed calls f.
func (f ProviderFunc) Embed(ctx context.Context, content string) ([]float32, error) {
	return f(ctx, content)
}
