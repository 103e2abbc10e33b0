// Package knowgo provides an embedded knowledge store database.
//
// This file implements a fluent search API for querying Knowgo instances.
package knowgo

import (
	"context"
	"iter"

	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
)

// Search creates a new fluent search builder for the given query vector.
// A nil query ranks matches by recency instead of similarity.
//
// Example:
//
//	page, err := db.Search(query).
//	    Limit(10).
//	    Where(metadata.NewWhere(metadata.Equals("status", metadata.String("active")))).
//	    Execute(ctx)
//
//	// Or with streaming across pages:
//	for item, err := range db.Search(query).Limit(100).Stream(ctx) {
//	    if err != nil { break }
//	    if item.Distance > threshold { break }
//	    process(item)
//	}
func (kg *Knowgo) Search(query []float32) *SearchBuilder {
	sb := &SearchBuilder{kg: kg}
	if query != nil {
		sb.q.Like = &Like{Vector: query}
	}
	return sb
}

// SearchText creates a fluent search builder that ranks by similarity to
// the given content, embedded through the configured provider.
func (kg *Knowgo) SearchText(content string) *SearchBuilder {
	return &SearchBuilder{kg: kg, q: Query{Like: &Like{Text: content}}}
}

// SearchBuilder is a fluent builder for constructing combined queries.
type SearchBuilder struct {
	kg *Knowgo
	q  Query
}

// Limit sets the page size. Default: 10.
func (sb *SearchBuilder) Limit(n int) *SearchBuilder {
	sb.q.Limit = n
	return sb
}

// Offset skips ranked matches. Ignored once Cursor is set.
func (sb *SearchBuilder) Offset(n int) *SearchBuilder {
	sb.q.Offset = n
	return sb
}

// Cursor continues a previous page from Page.Next.
func (sb *SearchBuilder) Cursor(token string) *SearchBuilder {
	sb.q.Cursor = token
	return sb
}

// EF widens the vector search beam for this query only.
// Higher values improve recall but slow down search.
func (sb *SearchBuilder) EF(ef int) *SearchBuilder {
	sb.q.EF = ef
	return sb
}

// Where sets the metadata filter. All predicates must hold.
func (sb *SearchBuilder) Where(w *metadata.Where) *SearchBuilder {
	sb.q.Where = w
	return sb
}

// Connected restricts results to entities reachable from the clause's start
// ids through the relationship graph.
func (sb *SearchBuilder) Connected(c *Connected) *SearchBuilder {
	sb.q.Connected = c
	return sb
}

// ConnectedTo restricts results to entities within depth hops of the given
// ids. Convenience for the common single-clause form; use Connected for
// type and direction control.
func (sb *SearchBuilder) ConnectedTo(depth int, ids ...model.EntityID) *SearchBuilder {
	sb.q.Connected = &Connected{To: ids, Depth: depth}
	return sb
}

// Execute runs the query and returns one page of hits.
func (sb *SearchBuilder) Execute(ctx context.Context) (*Page, error) {
	return sb.kg.Query(ctx, &sb.q)
}

// MustExecute runs the query, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) *Page {
	page, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return page
}

// Stream returns an iterator over query hits for memory-efficient
// processing. It follows continuation cursors across pages, so iteration
// covers every match, not just the first page. The iterator supports early
// termination by breaking from the loop.
//
// Example:
//
//	for item, err := range db.Search(query).Limit(100).Stream(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if item.Distance > 0.5 {
//	        break // Early termination
//	    }
//	    process(item)
//	}
func (sb *SearchBuilder) Stream(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		q := sb.q
		for {
			page, err := sb.kg.Query(ctx, &q)
			if err != nil {
				yield(Item{}, err)
				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}

			if page.Next == "" {
				return
			}
			q.Cursor = page.Next
			q.Offset = 0
		}
	}
}

// First returns only the best-ranked hit, or ErrNoResults if none matched.
func (sb *SearchBuilder) First(ctx context.Context) (Item, error) {
	sb.q.Limit = 1
	page, err := sb.Execute(ctx)
	if err != nil {
		return Item{}, err
	}
	if len(page.Items) == 0 {
		return Item{}, ErrNoResults
	}
	return page.Items[0], nil
}

// Count executes the query and returns the number of hits on the page.
func (sb *SearchBuilder) Count(ctx context.Context) (int, error) {
	page, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(page.Items), nil
}

// Exists checks if at least one entity matches the query.
func (sb *SearchBuilder) Exists(ctx context.Context) (bool, error) {
	sb.q.Limit = 1
	page, err := sb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(page.Items) > 0, nil
}
