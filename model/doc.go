// Package model defines the core types shared across Knowgo.
//
// # Identity Types
//
//   - EntityID: opaque, user-assigned stable identifier
//   - RelationshipID: stable edge identifier (UUID-assigned when omitted)
//   - RowID: dense internal identifier used by the in-memory indexes
//
// # Data Types
//
//   - Entity: embedding + typed metadata + content
//   - Relationship: directed, typed, weighted edge
//   - TraversalHit: entity reached by a graph traversal with its hop count
package model
