package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/knowgo/model"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")

	// ErrEmptyID rejects entities and relationship endpoints without an id.
	ErrEmptyID = errors.New("empty entity id")

	// ErrMissingVector rejects a new entity that carries neither a vector
	// nor content to embed.
	ErrMissingVector = errors.New("entity has no vector and no content")

	// ErrNoEmbedder is returned when content needs embedding but no
	// embedding provider is configured.
	ErrNoEmbedder = errors.New("no embedding provider configured")

	// ErrNoBlobStore is returned by Save and Load when no blob store is
	// configured.
	ErrNoBlobStore = errors.New("no blob store configured")

	// ErrNoSnapshot is returned by Load when the blob store holds no
	// committed snapshot.
	ErrNoSnapshot = errors.New("no snapshot found")

	// ErrChecksum is returned by Load when a snapshot section fails its
	// integrity check.
	ErrChecksum = errors.New("snapshot section checksum mismatch")
)

// ErrNotFound reports a lookup of an entity id that is not in the store.
type ErrNotFound struct {
	ID model.EntityID
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("entity %q not found", string(e.ID))
}

// ErrUnknownEntity reports a relationship endpoint that is not in the store.
type ErrUnknownEntity struct {
	ID model.EntityID
}

func (e *ErrUnknownEntity) Error() string {
	return fmt.Sprintf("unknown entity %q", string(e.ID))
}

// ErrRelationshipNotFound reports a lookup of a relationship id that is not
// in the store.
type ErrRelationshipNotFound struct {
	ID model.RelationshipID
}

func (e *ErrRelationshipNotFound) Error() string {
	return fmt.Sprintf("relationship %q not found", string(e.ID))
}

// ErrInvalidMetadata reports a metadata value rejected at write time, such
// as a non-finite float or a nested array.
type ErrInvalidMetadata struct {
	Field string
	Err   error
}

func (e *ErrInvalidMetadata) Error() string {
	return fmt.Sprintf("metadata field %q: %v", e.Field, e.Err)
}

func (e *ErrInvalidMetadata) Unwrap() error { return e.Err }

// ErrInvalidWeight reports a relationship weight outside [0, 1].
type ErrInvalidWeight struct {
	Weight float32
}

func (e *ErrInvalidWeight) Error() string {
	return fmt.Sprintf("relationship weight %v outside [0, 1]", e.Weight)
}
