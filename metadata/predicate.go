package metadata

// Operator represents a predicate operator.
type Operator string

const (
	// OpEquals matches values equal to the operand. On array-valued fields it
	// matches when any element equals the operand (multi-valued semantics).
	OpEquals Operator = "equals"
	// OpOneOf matches when the field matches equals for any operand element.
	OpOneOf Operator = "oneOf"
	// OpGreaterThan matches numeric scalar values strictly greater than the operand.
	OpGreaterThan Operator = "greaterThan"
	// OpLessThan matches numeric scalar values strictly less than the operand.
	OpLessThan Operator = "lessThan"
	// OpContains matches array-valued fields containing the operand element.
	OpContains Operator = "contains"
)

// Predicate is a single field condition.
type Predicate struct {
	Field    string
	Operator Operator
	Value    Value
}

// Where is a compound predicate: the intersection of all its field
// predicates (AND semantics). There is no OR across top-level fields.
type Where struct {
	Predicates []Predicate
}

// NewWhere creates a compound predicate from individual field predicates.
func NewWhere(preds ...Predicate) *Where {
	return &Where{Predicates: preds}
}

// Equals creates an equality predicate.
func Equals(field string, v Value) Predicate {
	return Predicate{Field: field, Operator: OpEquals, Value: v}
}

// OneOf creates a set-membership predicate over the given alternatives.
func OneOf(field string, alternatives ...Value) Predicate {
	return Predicate{Field: field, Operator: OpOneOf, Value: Array(alternatives...)}
}

// GreaterThan creates a strict numeric lower-bound predicate.
func GreaterThan(field string, v Value) Predicate {
	return Predicate{Field: field, Operator: OpGreaterThan, Value: v}
}

// LessThan creates a strict numeric upper-bound predicate.
func LessThan(field string, v Value) Predicate {
	return Predicate{Field: field, Operator: OpLessThan, Value: v}
}

// Contains creates an array-containment predicate.
func Contains(field string, element Value) Predicate {
	return Predicate{Field: field, Operator: OpContains, Value: element}
}

// Validate checks the predicate shape. It does not consult any index; unknown
// fields are a strict-mode concern of the index, not of the predicate itself.
func (p Predicate) Validate() error {
	if p.Field == "" {
		return &ErrInvalidPredicate{Reason: "empty field name"}
	}

	switch p.Operator {
	case OpEquals:
		if !p.Value.IsScalar() {
			return &ErrInvalidPredicate{Field: p.Field, Reason: "equals requires a scalar operand"}
		}
	case OpOneOf:
		alts, ok := p.Value.AsArray()
		if !ok {
			return &ErrInvalidPredicate{Field: p.Field, Reason: "oneOf requires an array operand"}
		}
		for i := range alts {
			if !alts[i].IsScalar() {
				return &ErrInvalidPredicate{Field: p.Field, Reason: "oneOf alternatives must be scalar"}
			}
		}
	case OpGreaterThan, OpLessThan:
		if !p.Value.IsNumber() {
			return &ErrInvalidPredicate{Field: p.Field, Reason: string(p.Operator) + " requires a numeric operand"}
		}
	case OpContains:
		if !p.Value.IsScalar() {
			return &ErrInvalidPredicate{Field: p.Field, Reason: "contains requires a scalar operand"}
		}
	default:
		return &ErrInvalidPredicate{Field: p.Field, Reason: "unknown operator " + string(p.Operator)}
	}

	return p.Value.Validate()
}

// Matches evaluates the predicate directly against a document.
//
// This is the reference semantics the inverted index must agree with exactly;
// the index answers from postings, this answers from the stored values.
func (p Predicate) Matches(doc Document) bool {
	value, exists := doc[p.Field]
	if !exists {
		return false
	}

	switch p.Operator {
	case OpEquals:
		return matchEquals(value, p.Value)
	case OpOneOf:
		alts, ok := p.Value.AsArray()
		if !ok {
			return false
		}
		for i := range alts {
			if matchEquals(value, alts[i]) {
				return true
			}
		}
		return false
	case OpGreaterThan:
		return compareNumeric(value, p.Value) > 0
	case OpLessThan:
		return compareNumeric(value, p.Value) < 0
	case OpContains:
		elems, ok := value.AsArray()
		if !ok {
			return false
		}
		for i := range elems {
			if scalarEqual(elems[i], p.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Validate checks all predicates in the set.
func (w *Where) Validate() error {
	if w == nil {
		return nil
	}
	for i := range w.Predicates {
		if err := w.Predicates[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether the document satisfies every predicate in the set.
// A nil or empty Where matches everything.
func (w *Where) Matches(doc Document) bool {
	if w == nil {
		return true
	}
	for i := range w.Predicates {
		if !w.Predicates[i].Matches(doc) {
			return false
		}
	}
	return true
}

// Fields returns the distinct field names referenced by the set.
func (w *Where) Fields() []string {
	if w == nil || len(w.Predicates) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(w.Predicates))
	fields := make([]string, 0, len(w.Predicates))
	for i := range w.Predicates {
		f := w.Predicates[i].Field
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		fields = append(fields, f)
	}
	return fields
}

// matchEquals implements equality with multi-valued field semantics: a stored
// array matches when any element equals the scalar operand.
func matchEquals(stored, operand Value) bool {
	if stored.Kind == KindArray {
		for i := range stored.A {
			if scalarEqual(stored.A[i], operand) {
				return true
			}
		}
		return false
	}
	return scalarEqual(stored, operand)
}

// scalarEqual compares two scalar values. Equality is kind-strict: Int(1)
// does not equal Float(1.0). This keeps direct evaluation in exact agreement
// with posting-key lookups, where the two have distinct keys. Range operators
// compare across numeric kinds; equality does not.
func scalarEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindInt:
		return a.I64 == b.I64
	case KindFloat:
		return a.F64 == b.F64
	case KindString:
		return a.s == b.s
	case KindBool:
		return a.B == b.B
	default:
		return false
	}
}

// compareNumeric returns +1, -1 or 0 comparing a stored scalar against a
// numeric operand; non-numeric or array stored values never range-match and
// report 0.
func compareNumeric(stored, operand Value) int {
	if !stored.IsNumber() {
		return 0
	}
	sf, _ := stored.AsFloat64()
	of, _ := operand.AsFloat64()
	switch {
	case sf > of:
		return 1
	case sf < of:
		return -1
	default:
		return 0
	}
}
