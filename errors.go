package knowgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/knowgo/internal/engine"
	"github.com/hupe1980/knowgo/internal/hnsw"
	"github.com/hupe1980/knowgo/internal/planner"
	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
)

var (
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = engine.ErrClosed

	// ErrEmptyID rejects entities and relationship endpoints without an id.
	ErrEmptyID = engine.ErrEmptyID

	// ErrMissingVector rejects a new entity that carries neither a vector
	// nor content to embed.
	ErrMissingVector = engine.ErrMissingVector

	// ErrNoEmbedder is returned when content needs embedding but no
	// embedding provider is configured.
	ErrNoEmbedder = engine.ErrNoEmbedder

	// ErrNoBlobStore is returned by Save, Load and Open when no blob store
	// is configured.
	ErrNoBlobStore = engine.ErrNoBlobStore

	// ErrNoSnapshot is returned by Load when the blob store holds no
	// committed snapshot.
	ErrNoSnapshot = engine.ErrNoSnapshot

	// ErrChecksum is returned by Load when a snapshot section fails its
	// integrity check.
	ErrChecksum = engine.ErrChecksum

	// ErrNoResults is returned by First when a query matches nothing.
	ErrNoResults = errors.New("no matching entities")
)

// ErrNotFound indicates a lookup of an entity id that is not in the store.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrNotFound struct {
	ID    model.EntityID
	cause error
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("entity %q not found", string(e.ID))
}

func (e *ErrNotFound) Unwrap() error { return e.cause }

// ErrRelationshipNotFound indicates a lookup of a relationship id that is
// not in the store.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrRelationshipNotFound struct {
	ID    model.RelationshipID
	cause error
}

func (e *ErrRelationshipNotFound) Error() string {
	return fmt.Sprintf("relationship %q not found", string(e.ID))
}

func (e *ErrRelationshipNotFound) Unwrap() error { return e.cause }

// ErrUnknownEntity indicates a relationship or traversal endpoint that is
// not in the store.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrUnknownEntity struct {
	ID    model.EntityID
	cause error
}

func (e *ErrUnknownEntity) Error() string {
	return fmt.Sprintf("unknown entity %q", string(e.ID))
}

func (e *ErrUnknownEntity) Unwrap() error { return e.cause }

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrUnknownField indicates a strict-mode filter on a metadata field the
// store has never observed.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrUnknownField struct {
	Field string
	cause error
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("unknown field: %q", e.Field)
}

func (e *ErrUnknownField) Unwrap() error { return e.cause }

// ErrInvalidPredicate indicates a malformed query clause or metadata value,
// for example a non-scalar operand under equals, a range operator over a
// non-numeric value, a cursor that does not match the query, or a non-finite
// float rejected at insert time.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidPredicate struct {
	Field  string
	Reason string
	cause  error
}

func (e *ErrInvalidPredicate) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid predicate: %s", e.Reason)
	}
	return fmt.Sprintf("invalid predicate on %q: %s", e.Field, e.Reason)
}

func (e *ErrInvalidPredicate) Unwrap() error { return e.cause }

// ErrInvalidWeight indicates a relationship weight outside [0, 1].
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidWeight struct {
	Weight float32
	cause  error
}

func (e *ErrInvalidWeight) Error() string {
	return fmt.Sprintf("relationship weight %v outside [0, 1]", e.Weight)
}

func (e *ErrInvalidWeight) Unwrap() error { return e.cause }

// translateError maps internal errors onto the public taxonomy before they
// leave the facade. Sentinels shared with the engine pass through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var nf *engine.ErrNotFound
	if errors.As(err, &nf) {
		return &ErrNotFound{ID: nf.ID, cause: err}
	}
	var rnf *engine.ErrRelationshipNotFound
	if errors.As(err, &rnf) {
		return &ErrRelationshipNotFound{ID: rnf.ID, cause: err}
	}
	var ue *engine.ErrUnknownEntity
	if errors.As(err, &ue) {
		return &ErrUnknownEntity{ID: ue.ID, cause: err}
	}
	var iw *engine.ErrInvalidWeight
	if errors.As(err, &iw) {
		return &ErrInvalidWeight{Weight: iw.Weight, cause: err}
	}

	var dm *hnsw.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	// A malformed stored value is rejected at write time with the same
	// public shape as a malformed query clause.
	var im *engine.ErrInvalidMetadata
	if errors.As(err, &im) {
		return &ErrInvalidPredicate{Field: im.Field, Reason: im.Err.Error(), cause: err}
	}

	var uf *metadata.ErrUnknownField
	if errors.As(err, &uf) {
		return &ErrUnknownField{Field: uf.Field, cause: err}
	}
	var ip *metadata.ErrInvalidPredicate
	if errors.As(err, &ip) {
		return &ErrInvalidPredicate{Field: ip.Field, Reason: ip.Reason, cause: err}
	}

	// A damaged or foreign cursor is a malformed query clause.
	var bc *planner.ErrBadCursor
	if errors.As(err, &bc) {
		return &ErrInvalidPredicate{Field: "cursor", Reason: bc.Reason, cause: err}
	}

	return err
}
