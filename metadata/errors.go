package metadata

import (
	"errors"
	"fmt"
)

// ErrInvalidValue is returned when a metadata value has an unsupported shape.
//
// Use errors.Is to test for it; the wrapping error carries the detail.
var ErrInvalidValue = errors.New("invalid metadata value")

// ErrInvalidPredicate indicates a malformed predicate, for example a
// non-scalar operand under equals or a non-numeric operand under a range
// operator.
type ErrInvalidPredicate struct {
	Field  string
	Reason string
}

func (e *ErrInvalidPredicate) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid predicate: %s", e.Reason)
	}
	return fmt.Sprintf("invalid predicate on %q: %s", e.Field, e.Reason)
}

// ErrUnknownField indicates a strict-mode predicate on a field the index has
// never seen.
type ErrUnknownField struct {
	Field string
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("unknown field: %q", e.Field)
}
