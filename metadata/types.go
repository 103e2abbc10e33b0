package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unique"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null value.
	KindNull
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindBool represents a boolean value.
	KindBool
	// KindArray represents an array of scalar values.
	KindArray
)

// Value is a small typed value used for entity metadata and predicates.
//
// The representation is a closed variant type: scalars plus flat arrays of
// scalars. Anything else is rejected at the API boundary (see FromAny), never
// silently coerced. No reflection and no fmt-based stringification on the
// query path.
//
// NOTE: This is also used for persistence; keep it stable.
type Value struct {
	Kind Kind                  `json:"k"`
	I64  int64                 `json:"i,omitempty"`
	F64  float64               `json:"f,omitempty"`
	s    unique.Handle[string] `json:"-"` // Private interned string
	B    bool                  `json:"b,omitempty"`
	A    []Value               `json:"a,omitempty"`
}

// Null returns a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, s: unique.Make(v)} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Array returns an array Value. Elements must be scalar; this is enforced by
// Validate and by FromAny, not here.
func Array(v ...Value) Value { return Value{Kind: KindArray, A: v} }

// Strings returns an array Value from a list of strings.
func Strings(v ...string) Value {
	a := make([]Value, len(v))
	for i, s := range v {
		a[i] = String(s)
	}
	return Array(a...)
}

// FromAny converts a loosely typed value into a Value.
//
// Supported inputs: nil, bool, string, all signed/unsigned integer types,
// float32/float64, []any of scalars, and the common typed slices. NaN and
// infinities are rejected so that equality stays consistent between direct
// evaluation and the inverted index. Nested arrays and maps are rejected.
func FromAny(v any) (Value, error) {
	val, err := fromAny(v, false)
	if err != nil {
		return Value{}, err
	}
	return val, nil
}

func fromAny(v any, inArray bool) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: uint %d overflows int64", ErrInvalidValue, t)
		}
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: uint64 %d overflows int64", ErrInvalidValue, t)
		}
		return Int(int64(t)), nil
	case float32:
		return floatValue(float64(t))
	case float64:
		return floatValue(t)
	case Value:
		if err := t.Validate(); err != nil {
			return Value{}, err
		}
		return t, nil
	case []string:
		return Strings(t...), nil
	case []int:
		a := make([]Value, len(t))
		for i, n := range t {
			a[i] = Int(int64(n))
		}
		return Array(a...), nil
	case []int64:
		a := make([]Value, len(t))
		for i, n := range t {
			a[i] = Int(n)
		}
		return Array(a...), nil
	case []float64:
		a := make([]Value, len(t))
		for i, f := range t {
			fv, err := floatValue(f)
			if err != nil {
				return Value{}, err
			}
			a[i] = fv
		}
		return Array(a...), nil
	case []any:
		if inArray {
			return Value{}, fmt.Errorf("%w: nested arrays are not supported", ErrInvalidValue)
		}
		a := make([]Value, len(t))
		for i, e := range t {
			ev, err := fromAny(e, true)
			if err != nil {
				return Value{}, err
			}
			a[i] = ev
		}
		return Array(a...), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: non-finite float", ErrInvalidValue)
	}
	return Float(f), nil
}

// Validate checks that the value is a well-formed scalar or flat array of
// finite scalars.
func (v Value) Validate() error {
	switch v.Kind {
	case KindNull, KindInt, KindString, KindBool:
		return nil
	case KindFloat:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return fmt.Errorf("%w: non-finite float", ErrInvalidValue)
		}
		return nil
	case KindArray:
		for i := range v.A {
			if v.A[i].Kind == KindArray {
				return fmt.Errorf("%w: nested arrays are not supported", ErrInvalidValue)
			}
			if err := v.A[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: invalid kind", ErrInvalidValue)
	}
}

// IsScalar reports whether the value is null, int, float, string or bool.
func (v Value) IsScalar() bool {
	switch v.Kind {
	case KindNull, KindInt, KindFloat, KindString, KindBool:
		return true
	default:
		return false
	}
}

// IsNumber reports whether the value is an int or a float.
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// Key returns a stable string representation for use in map keys.
//
// It is the identity the inverted index posts under and must remain stable
// across versions for persisted snapshots.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return "i:" + strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return "f:" + strconv.FormatUint(math.Float64bits(v.F64), 16)
	case KindString:
		return "s:" + v.s.Value()
	case KindBool:
		if v.B {
			return "b:1"
		}
		return "b:0"
	case KindArray:
		if len(v.A) == 0 {
			return "a:"
		}
		parts := make([]string, len(v.A))
		for i := range v.A {
			parts[i] = v.A[i].Key()
		}
		return "a:" + strings.Join(parts, "\x1f")
	default:
		return "invalid"
	}
}

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.I64, true
}

// AsFloat64 returns the numeric value as a float64 if the value is a number.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I64), true
	case KindFloat:
		return v.F64, true
	default:
		return 0, false
	}
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.s.Value(), true
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.B, true
}

// AsArray returns the array elements if Kind is KindArray.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.A, true
}

// StringValue returns the string value if Kind is KindString, otherwise "".
func (v Value) StringValue() string {
	if v.Kind == KindString {
		return v.s.Value()
	}
	return ""
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	type Alias Value
	aux := &struct {
		S string `json:"s,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(&v),
	}
	if v.Kind == KindString {
		aux.S = v.s.Value()
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	type Alias Value
	aux := &struct {
		S string `json:"s,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(v),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if v.Kind == KindString {
		v.s = unique.Make(aux.S)
	}
	return nil
}

// clone creates a deep copy of a Value, including nested arrays.
func (v Value) clone() Value {
	if v.Kind != KindArray || len(v.A) == 0 {
		return v
	}
	arrayCopy := make([]Value, len(v.A))
	copy(arrayCopy, v.A)
	return Value{Kind: KindArray, A: arrayCopy}
}

// Document is a typed metadata document: field name to scalar or array value.
type Document map[string]Value

// DocumentFromMap converts a loosely typed map into a Document, validating
// every value. The first offending field aborts the conversion.
func DocumentFromMap(m map[string]any) (Document, error) {
	if m == nil {
		return nil, nil
	}
	doc := make(Document, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		doc[k] = v
	}
	return doc, nil
}

// Validate checks every value in the document.
func (d Document) Validate() error {
	for k, v := range d {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	return nil
}

// Clone creates a deep copy of the document.
//
// This is the safe default to prevent external mutation after Insert().
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	clone := make(Document, len(d))
	for k, v := range d {
		clone[k] = v.clone()
	}
	return clone
}

// CloneIfNeeded clones a document only if it is non-empty.
func CloneIfNeeded(d Document) Document {
	if len(d) == 0 {
		return nil
	}
	return d.Clone()
}
