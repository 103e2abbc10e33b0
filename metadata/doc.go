// Package metadata provides the typed metadata model and predicate language
// used to filter entities.
//
// # Values
//
// A metadata document maps field names to Values. A Value is a closed
// variant: null, int, float, string, bool or a flat array of scalars. Maps,
// nested arrays and non-finite floats are rejected at the boundary instead of
// being coerced:
//
//	meta := metadata.Document{
//	    "category": metadata.String("tech"),
//	    "year":     metadata.Int(2024),
//	    "tags":     metadata.Strings("go", "search"),
//	}
//
// Loosely typed input (e.g. decoded JSON) is converted with DocumentFromMap.
//
// # Predicates
//
// A Where is the conjunction of field predicates; there is no OR across
// fields:
//
//	w := metadata.NewWhere(
//	    metadata.Equals("category", metadata.String("tech")),
//	    metadata.GreaterThan("year", metadata.Int(2020)),
//	)
//
// Operators are equals, oneOf, greaterThan, lessThan and contains. Equality
// is kind-strict (Int(1) does not match Float(1.0)); range operators compare
// across the two numeric kinds. On array-valued fields, equals matches when
// any element matches, and contains tests element membership.
//
// Predicate.Matches defines the reference semantics. The inverted index
// answers the same questions from postings and must agree with it exactly.
package metadata
