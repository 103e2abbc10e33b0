// Package metaindex maintains an inverted index over entity metadata.
//
// Each field gets equality postings (value key to row bitmap), element
// postings for array containment and a sorted numeric column for range
// operators. The index answers from postings what
// metadata.Predicate.Matches answers from stored documents; the two must
// agree exactly, which the planner relies on when it post-filters
// oversampled vector results by direct evaluation.
//
// The index is not safe for concurrent use; the engine serializes access.
package metaindex

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
)

// Index is the inverted metadata index over all live rows.
type Index struct {
	fields map[string]*fieldIndex
	docs   int
}

// fieldIndex holds the postings of a single metadata field.
//
// A scalar value posts into eq (and num when numeric). An array value
// posts each element into both eq and elem: equals matches array elements
// (multi-valued semantics) while contains matches only arrays.
type fieldIndex struct {
	eq   map[string]*roaring.Bitmap
	elem map[string]*roaring.Bitmap
	num  *numericColumn
}

// New creates an empty index.
func New() *Index {
	return &Index{fields: make(map[string]*fieldIndex)}
}

// Reset drops all postings. Known fields are forgotten too; callers rebuild
// from documents afterwards.
func (idx *Index) Reset() {
	idx.fields = make(map[string]*fieldIndex)
	idx.docs = 0
}

// Docs returns the number of indexed documents.
func (idx *Index) Docs() int {
	return idx.docs
}

// Fields returns the known field names in lexical order. A field stays
// known once observed, even after all rows carrying it are removed.
func (idx *Index) Fields() []string {
	names := make([]string, 0, len(idx.fields))
	for name := range idx.fields {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (idx *Index) field(name string) *fieldIndex {
	fi, ok := idx.fields[name]
	if !ok {
		fi = &fieldIndex{
			eq:   make(map[string]*roaring.Bitmap),
			elem: make(map[string]*roaring.Bitmap),
			num:  &numericColumn{},
		}
		idx.fields[name] = fi
	}

	return fi
}

// Add indexes the document under row. A nil document only counts the row.
func (idx *Index) Add(row model.RowID, doc metadata.Document) {
	idx.docs++

	for name, value := range doc {
		idx.addValue(idx.field(name), uint32(row), value)
	}
}

// Remove drops the document's postings for row. The document must be the
// one previously indexed.
func (idx *Index) Remove(row model.RowID, doc metadata.Document) {
	if idx.docs > 0 {
		idx.docs--
	}

	for name, value := range doc {
		fi, ok := idx.fields[name]
		if !ok {
			continue
		}

		idx.removeValue(fi, uint32(row), value)
	}
}

// Update reindexes row from oldDoc to newDoc, touching only fields whose
// value actually changed.
func (idx *Index) Update(row model.RowID, oldDoc, newDoc metadata.Document) {
	for name, oldValue := range oldDoc {
		if newValue, ok := newDoc[name]; ok && newValue.Key() == oldValue.Key() {
			continue
		}

		if fi, ok := idx.fields[name]; ok {
			idx.removeValue(fi, uint32(row), oldValue)
		}
	}

	for name, newValue := range newDoc {
		if oldValue, ok := oldDoc[name]; ok && oldValue.Key() == newValue.Key() {
			continue
		}

		idx.addValue(idx.field(name), uint32(row), newValue)
	}
}

func (idx *Index) addValue(fi *fieldIndex, row uint32, value metadata.Value) {
	if elems, ok := value.AsArray(); ok {
		for i := range elems {
			key := elems[i].Key()
			addPosting(fi.eq, key, row)
			addPosting(fi.elem, key, row)
		}

		return
	}

	addPosting(fi.eq, value.Key(), row)

	if f, ok := value.AsFloat64(); ok {
		fi.num.insert(f, row)
	}
}

func (idx *Index) removeValue(fi *fieldIndex, row uint32, value metadata.Value) {
	if elems, ok := value.AsArray(); ok {
		for i := range elems {
			key := elems[i].Key()
			removePosting(fi.eq, key, row)
			removePosting(fi.elem, key, row)
		}

		return
	}

	removePosting(fi.eq, value.Key(), row)

	if f, ok := value.AsFloat64(); ok {
		fi.num.remove(f, row)
	}
}

func addPosting(postings map[string]*roaring.Bitmap, key string, row uint32) {
	bm, ok := postings[key]
	if !ok {
		bm = roaring.New()
		postings[key] = bm
	}

	bm.Add(row)
}

func removePosting(postings map[string]*roaring.Bitmap, key string, row uint32) {
	bm, ok := postings[key]
	if !ok {
		return
	}

	bm.Remove(row)

	if bm.IsEmpty() {
		delete(postings, key)
	}
}

// Cardinalities returns the number of distinct value keys per known field.
func (idx *Index) Cardinalities() map[string]int {
	out := make(map[string]int, len(idx.fields))
	for name, fi := range idx.fields {
		out[name] = len(fi.eq)
	}

	return out
}

// CheckFields returns ErrUnknownField for the first predicate referencing a
// field never observed by the index. Used for strict query mode.
func (idx *Index) CheckFields(w *metadata.Where) error {
	if w == nil {
		return nil
	}

	for i := range w.Predicates {
		name := w.Predicates[i].Field
		if _, ok := idx.fields[name]; !ok {
			return &metadata.ErrUnknownField{Field: name}
		}
	}

	return nil
}

// Eval materializes the rows matching every predicate. Predicates are
// intersected smallest-first so a selective one short-circuits the rest.
// A nil or empty Where returns nil, meaning unconstrained.
func (idx *Index) Eval(w *metadata.Where) *roaring.Bitmap {
	if w == nil || len(w.Predicates) == 0 {
		return nil
	}

	parts := make([]*roaring.Bitmap, len(w.Predicates))
	for i := range w.Predicates {
		parts[i] = idx.evalPredicate(w.Predicates[i])
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].GetCardinality() < parts[j].GetCardinality()
	})

	result := parts[0]
	for _, part := range parts[1:] {
		if result.IsEmpty() {
			break
		}

		result.And(part)
	}

	return result
}

// EstimateCount returns an upper bound on |Eval(w)| without materializing
// postings. AND semantics make the smallest per-predicate bound valid for
// the whole set. A nil or empty Where is unconstrained and returns the
// document count.
func (idx *Index) EstimateCount(w *metadata.Where) uint64 {
	if w == nil || len(w.Predicates) == 0 {
		return uint64(idx.docs)
	}

	best := uint64(idx.docs)

	for i := range w.Predicates {
		if est := idx.estimatePredicate(w.Predicates[i]); est < best {
			best = est
		}
	}

	return best
}

func (idx *Index) evalPredicate(p metadata.Predicate) *roaring.Bitmap {
	fi, ok := idx.fields[p.Field]
	if !ok {
		return roaring.New()
	}

	switch p.Operator {
	case metadata.OpEquals:
		return clonePosting(fi.eq[p.Value.Key()])

	case metadata.OpOneOf:
		result := roaring.New()

		alts, _ := p.Value.AsArray()
		for i := range alts {
			if bm, ok := fi.eq[alts[i].Key()]; ok {
				result.Or(bm)
			}
		}

		return result

	case metadata.OpContains:
		return clonePosting(fi.elem[p.Value.Key()])

	case metadata.OpGreaterThan:
		result := roaring.New()

		if operand, ok := p.Value.AsFloat64(); ok {
			fi.num.addGreaterThan(operand, result)
		}

		return result

	case metadata.OpLessThan:
		result := roaring.New()

		if operand, ok := p.Value.AsFloat64(); ok {
			fi.num.addLessThan(operand, result)
		}

		return result

	default:
		return roaring.New()
	}
}

func (idx *Index) estimatePredicate(p metadata.Predicate) uint64 {
	fi, ok := idx.fields[p.Field]
	if !ok {
		return 0
	}

	switch p.Operator {
	case metadata.OpEquals:
		return postingCardinality(fi.eq[p.Value.Key()])

	case metadata.OpOneOf:
		// Array rows can appear under several alternatives, so the sum
		// overestimates; cap it at the document count.
		var sum uint64

		alts, _ := p.Value.AsArray()
		for i := range alts {
			sum += postingCardinality(fi.eq[alts[i].Key()])
		}

		return min(sum, uint64(idx.docs))

	case metadata.OpContains:
		return postingCardinality(fi.elem[p.Value.Key()])

	case metadata.OpGreaterThan:
		operand, ok := p.Value.AsFloat64()
		if !ok {
			return 0
		}

		return uint64(fi.num.countGreaterThan(operand))

	case metadata.OpLessThan:
		operand, ok := p.Value.AsFloat64()
		if !ok {
			return 0
		}

		return uint64(fi.num.countLessThan(operand))

	default:
		return 0
	}
}

func clonePosting(bm *roaring.Bitmap) *roaring.Bitmap {
	if bm == nil {
		return roaring.New()
	}

	return bm.Clone()
}

func postingCardinality(bm *roaring.Bitmap) uint64 {
	if bm == nil {
		return 0
	}

	return bm.GetCardinality()
}
