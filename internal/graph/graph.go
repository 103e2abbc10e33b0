// Package graph maintains the adjacency index over typed relationships.
//
// Relationships are directed edges between entity IDs. The index keeps both
// orientations so traversals can expand outgoing, incoming or both within
// one lookup. It is not safe for concurrent use; the engine serializes
// access.
package graph

import (
	"context"
	"sort"

	"github.com/hupe1980/knowgo/model"
)

// ctxCheckInterval is how many BFS dequeues happen between context checks.
const ctxCheckInterval = 64

// edge is one adjacency entry: the relationship it came from, its type and
// the entity on the far side.
type edge struct {
	rel   model.RelationshipID
	typ   model.RelationType
	other model.EntityID
}

// Index is the in-memory relationship store and adjacency index.
type Index struct {
	rels map[model.RelationshipID]*model.Relationship
	out  map[model.EntityID][]edge
	in   map[model.EntityID][]edge
}

// New creates an empty index.
func New() *Index {
	return &Index{
		rels: make(map[model.RelationshipID]*model.Relationship),
		out:  make(map[model.EntityID][]edge),
		in:   make(map[model.EntityID][]edge),
	}
}

// Reset drops all relationships.
func (g *Index) Reset() {
	g.rels = make(map[model.RelationshipID]*model.Relationship)
	g.out = make(map[model.EntityID][]edge)
	g.in = make(map[model.EntityID][]edge)
}

// Len returns the number of relationships.
func (g *Index) Len() int {
	return len(g.rels)
}

// Relate stores rel and indexes its adjacency. An existing relationship
// with the same ID is replaced, including its endpoints and type.
func (g *Index) Relate(rel *model.Relationship) {
	if old, ok := g.rels[rel.ID]; ok {
		g.detach(old)
	}

	g.rels[rel.ID] = rel
	g.out[rel.From] = append(g.out[rel.From], edge{rel: rel.ID, typ: rel.Type, other: rel.To})
	g.in[rel.To] = append(g.in[rel.To], edge{rel: rel.ID, typ: rel.Type, other: rel.From})
}

// Unrelate removes the relationship with the given ID and reports whether
// it existed.
func (g *Index) Unrelate(id model.RelationshipID) bool {
	rel, ok := g.rels[id]
	if !ok {
		return false
	}

	g.detach(rel)
	delete(g.rels, id)

	return true
}

// Relationship returns the stored relationship for id.
func (g *Index) Relationship(id model.RelationshipID) (*model.Relationship, bool) {
	rel, ok := g.rels[id]
	return rel, ok
}

// Of returns all relationships touching the entity in either orientation,
// ordered by creation time then ID. A self-loop appears once.
func (g *Index) Of(id model.EntityID) []*model.Relationship {
	seen := make(map[model.RelationshipID]struct{})

	var rels []*model.Relationship

	collect := func(edges []edge) {
		for _, e := range edges {
			if _, ok := seen[e.rel]; ok {
				continue
			}

			seen[e.rel] = struct{}{}
			rels = append(rels, g.rels[e.rel])
		}
	}

	collect(g.out[id])
	collect(g.in[id])

	sort.Slice(rels, func(i, j int) bool {
		if rels[i].CreatedAt != rels[j].CreatedAt {
			return rels[i].CreatedAt < rels[j].CreatedAt
		}

		return rels[i].ID < rels[j].ID
	})

	return rels
}

// RemoveEntity removes every relationship touching the entity and returns
// the removed IDs in lexical order.
func (g *Index) RemoveEntity(id model.EntityID) []model.RelationshipID {
	seen := make(map[model.RelationshipID]struct{})

	var removed []model.RelationshipID

	collect := func(edges []edge) {
		for _, e := range edges {
			if _, ok := seen[e.rel]; ok {
				continue
			}

			seen[e.rel] = struct{}{}
			removed = append(removed, e.rel)
		}
	}

	collect(g.out[id])
	collect(g.in[id])

	for _, relID := range removed {
		g.Unrelate(relID)
	}

	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

	return removed
}

// All returns every relationship ordered by ID, for snapshots.
func (g *Index) All() []*model.Relationship {
	rels := make([]*model.Relationship, 0, len(g.rels))
	for _, rel := range g.rels {
		rels = append(rels, rel)
	}

	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })

	return rels
}

// Restore replaces the index content with the given relationships.
func (g *Index) Restore(rels []*model.Relationship) {
	g.Reset()

	for _, rel := range rels {
		g.Relate(rel)
	}
}

// Traverse runs a breadth-first expansion from the start entities up to
// maxDepth hops, following edges in the given direction and restricted to
// the given relation types (empty means all types).
//
// Hits carry the depth at which an entity was first reached. The starts
// themselves are never reported, unknown starts expand to nothing, and
// cycles terminate because each entity is visited once. Hits are ordered by
// depth, then entity ID.
//
// When ctx is canceled mid-walk the hits found so far are returned with
// partial set to true.
func (g *Index) Traverse(ctx context.Context, starts []model.EntityID, types []model.RelationType, maxDepth int, dir model.Direction) (hits []model.TraversalHit, partial bool) {
	if maxDepth < 1 || len(starts) == 0 {
		return nil, false
	}

	var typeSet map[model.RelationType]struct{}
	if len(types) > 0 {
		typeSet = make(map[model.RelationType]struct{}, len(types))
		for _, t := range types {
			typeSet[t] = struct{}{}
		}
	}

	type queued struct {
		id    model.EntityID
		depth int
	}

	visited := make(map[model.EntityID]struct{}, len(starts))
	queue := make([]queued, 0, len(starts))

	for _, start := range starts {
		if _, ok := visited[start]; ok {
			continue
		}

		visited[start] = struct{}{}
		queue = append(queue, queued{id: start, depth: 0})
	}

	expand := func(edges []edge, depth int) {
		for _, e := range edges {
			if typeSet != nil {
				if _, ok := typeSet[e.typ]; !ok {
					continue
				}
			}

			if _, ok := visited[e.other]; ok {
				continue
			}

			visited[e.other] = struct{}{}
			hits = append(hits, model.TraversalHit{ID: e.other, Depth: depth})
			queue = append(queue, queued{id: e.other, depth: depth})
		}
	}

	for steps := 0; len(queue) > 0; steps++ {
		if steps%ctxCheckInterval == 0 && ctx.Err() != nil {
			partial = true
			break
		}

		cur := queue[0]
		queue = queue[1:]

		if cur.depth == maxDepth {
			continue
		}

		next := cur.depth + 1

		if dir == model.DirectionOut || dir == model.DirectionBoth {
			expand(g.out[cur.id], next)
		}

		if dir == model.DirectionIn || dir == model.DirectionBoth {
			expand(g.in[cur.id], next)
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Depth != hits[j].Depth {
			return hits[i].Depth < hits[j].Depth
		}

		return hits[i].ID < hits[j].ID
	})

	return hits, partial
}

// detach removes the relationship's adjacency entries.
func (g *Index) detach(rel *model.Relationship) {
	g.out[rel.From] = removeEdge(g.out[rel.From], rel.ID)
	if len(g.out[rel.From]) == 0 {
		delete(g.out, rel.From)
	}

	g.in[rel.To] = removeEdge(g.in[rel.To], rel.ID)
	if len(g.in[rel.To]) == 0 {
		delete(g.in, rel.To)
	}
}

func removeEdge(edges []edge, rel model.RelationshipID) []edge {
	for i := range edges {
		if edges[i].rel == rel {
			return append(edges[:i], edges[i+1:]...)
		}
	}

	return edges
}
