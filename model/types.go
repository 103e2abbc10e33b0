package model

import (
	"fmt"

	"github.com/hupe1980/knowgo/metadata"
)

// EntityID is the user-facing stable identifier of an entity. It is opaque to
// the store; only equality and lexicographic order (for deterministic
// tie-breaks) are used.
type EntityID string

// RelationshipID is the stable identifier of a relationship. When left empty
// at Relate time, the store assigns a UUID.
type RelationshipID string

// EntityType is a small, caller-defined enum classifying entities, for
// example "note", "document" or "concept". It is carried and persisted but
// not indexed.
type EntityType string

// RelationType is a small, caller-defined enum classifying relationships,
// for example "references" or "partOf". Traversals can be restricted to a
// set of relation types.
type RelationType string

// RowID is a dense, transient identifier for an entity inside the in-memory
// indexes. It is never exposed to callers and may change across snapshots
// and compactions.
type RowID uint32

// InvalidRowID marks the absence of a row.
const InvalidRowID = ^RowID(0)

// Entity is a stored knowledge item: a fixed-dimension embedding plus typed
// metadata, joined to other entities through relationships.
type Entity struct {
	ID      EntityID          `json:"id"`
	Type    EntityType        `json:"type,omitempty"`
	Vector  []float32         `json:"vector,omitempty"`
	Content string            `json:"content,omitempty"`
	Meta    metadata.Document `json:"meta,omitempty"`

	// CreatedAt and UpdatedAt are Unix nanoseconds assigned by the store.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to callers.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Vector != nil {
		clone.Vector = make([]float32, len(e.Vector))
		copy(clone.Vector, e.Vector)
	}
	clone.Meta = e.Meta.Clone()
	return &clone
}

// Relationship is a directed, typed, weighted edge between two entities.
type Relationship struct {
	ID     RelationshipID `json:"id"`
	From   EntityID       `json:"from"`
	To     EntityID       `json:"to"`
	Type   RelationType   `json:"type,omitempty"`
	Weight float32        `json:"weight"`

	Meta metadata.Document `json:"meta,omitempty"`

	// CreatedAt is Unix nanoseconds assigned by the store.
	CreatedAt int64 `json:"created_at"`
}

// Clone returns a deep copy safe to hand to callers.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Meta = r.Meta.Clone()
	return &clone
}

// Direction selects which adjacency a traversal expands.
type Direction string

const (
	// DirectionOut follows outgoing edges.
	DirectionOut Direction = "out"
	// DirectionIn follows incoming edges.
	DirectionIn Direction = "in"
	// DirectionBoth follows edges in both orientations.
	DirectionBoth Direction = "both"
)

// Valid reports whether d is one of the three defined directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOut, DirectionIn, DirectionBoth:
		return true
	default:
		return false
	}
}

// TraversalHit is an entity reached by a graph traversal together with the
// hop count at which it was first discovered.
type TraversalHit struct {
	ID    EntityID
	Depth int
}

// String returns a compact representation for logs.
func (h TraversalHit) String() string {
	return fmt.Sprintf("%s@%d", h.ID, h.Depth)
}
