package knowgo

import (
	"github.com/hupe1980/knowgo/internal/engine"
	"github.com/hupe1980/knowgo/internal/planner"
	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
)

// Like is the similarity clause of a query: a raw query vector, or content
// to embed through the configured provider. Vector wins when both are set.
type Like struct {
	Vector []float32
	Text   string
}

// Connected restricts query results to entities reachable from a set of
// start ids through the relationship graph.
type Connected struct {
	// From and To each seed the walk; the start set is their union. The
	// start entities themselves are never part of the result.
	From []model.EntityID
	To   []model.EntityID

	// Types restricts expansion to edges of the given relation types;
	// empty means any type.
	Types []model.RelationType

	// Depth bounds the walk in hops, at least 1.
	Depth int

	// Direction selects which adjacency to expand: DirectionOut follows
	// edges away from the starts, DirectionIn follows edges pointing at
	// them. Default: DirectionBoth.
	Direction model.Direction
}

// Query is one combined expression over similarity, metadata and graph
// reachability. Every clause is optional; clauses compose with AND
// semantics. A query without a like clause pages through matches in
// recency order (newest first).
type Query struct {
	Like      *Like
	Where     *metadata.Where
	Connected *Connected

	// Limit is the page size; 0 falls back to the store default of 10.
	Limit int

	// Offset skips ranked matches. Ignored when Cursor is set.
	Offset int

	// Cursor continues a previous page from Page.Next.
	Cursor string

	// EF widens the vector search beam for this query only; zero uses the
	// store default.
	EF int
}

// Item is one query hit resolved to its entity.
type Item struct {
	Entity *model.Entity

	// Distance is meaningful when the query had a like clause.
	Distance float32

	// Depth is the first-reach hop count when the query had a connected
	// clause.
	Depth int
}

// Page is one page of query hits.
type Page struct {
	Items []Item

	// Next continues after the last item; empty on the final page.
	Next string

	// Partial marks a page cut short by context expiry. The items present
	// are a correctly ranked prefix.
	Partial bool
}

// toEngine validates the public query shape and lowers it onto the planner
// request types. A nil query pages through the store in recency order.
func (q *Query) toEngine() (*engine.Query, error) {
	if q == nil {
		return &engine.Query{}, nil
	}

	eq := &engine.Query{
		Where:  q.Where,
		Limit:  q.Limit,
		Offset: q.Offset,
		Cursor: q.Cursor,
		EF:     q.EF,
	}

	if q.Like != nil {
		eq.Vector = q.Like.Vector
		eq.Text = q.Like.Text
	}

	if q.Connected != nil {
		starts := make([]model.EntityID, 0, len(q.Connected.From)+len(q.Connected.To))
		starts = append(starts, q.Connected.From...)
		starts = append(starts, q.Connected.To...)
		if len(starts) == 0 {
			return nil, &ErrInvalidPredicate{Field: "connected", Reason: "no start ids"}
		}

		eq.Connected = &planner.Connected{
			Starts:    starts,
			Types:     q.Connected.Types,
			Depth:     q.Connected.Depth,
			Direction: q.Connected.Direction,
		}
	}

	return eq, nil
}
