package metaindex

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, m map[string]any) metadata.Document {
	t.Helper()

	doc, err := metadata.DocumentFromMap(m)
	require.NoError(t, err)

	return doc
}

func requireRows(t *testing.T, bm *roaring.Bitmap, rows ...uint32) {
	t.Helper()

	want := roaring.BitmapOf(rows...)
	require.True(t, want.Equals(bm), "want rows %v, got %v", rows, bm.ToArray())
}

func TestIndex_Equals(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"category": "paper", "year": 2021}))
	idx.Add(1, mustDoc(t, map[string]any{"category": "paper", "year": 2023}))
	idx.Add(2, mustDoc(t, map[string]any{"category": "note", "draft": true}))

	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("category", metadata.String("paper")))), 0, 1)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("year", metadata.Int(2023)))), 1)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("draft", metadata.Bool(true)))), 2)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("category", metadata.String("memo")))))

	// AND across predicates.
	requireRows(t, idx.Eval(metadata.NewWhere(
		metadata.Equals("category", metadata.String("paper")),
		metadata.Equals("year", metadata.Int(2021)),
	)), 0)
}

func TestIndex_EqualsIsKindStrict(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"score": int64(1)}))
	idx.Add(1, mustDoc(t, map[string]any{"score": 1.0}))

	// Int(1) and Float(1.0) post under distinct keys.
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("score", metadata.Int(1)))), 0)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("score", metadata.Float(1.0)))), 1)

	// Range operators compare across numeric kinds.
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.GreaterThan("score", metadata.Float(0.5)))), 0, 1)
}

func TestIndex_ArraySemantics(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"tags": []string{"go", "db"}}))
	idx.Add(1, mustDoc(t, map[string]any{"tags": "go"}))
	idx.Add(2, mustDoc(t, map[string]any{"tags": []string{"db"}}))

	// equals matches scalars and array elements alike.
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("tags", metadata.String("go")))), 0, 1)

	// contains matches arrays only.
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Contains("tags", metadata.String("go")))), 0)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Contains("tags", metadata.String("db")))), 0, 2)

	// Array elements never range-match.
	idx.Add(3, mustDoc(t, map[string]any{"nums": []int{5, 10}}))
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.GreaterThan("nums", metadata.Int(1)))))
}

func TestIndex_OneOf(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"status": "open"}))
	idx.Add(1, mustDoc(t, map[string]any{"status": "closed"}))
	idx.Add(2, mustDoc(t, map[string]any{"status": "merged"}))

	requireRows(t, idx.Eval(metadata.NewWhere(
		metadata.OneOf("status", metadata.String("open"), metadata.String("merged")),
	)), 0, 2)
}

func TestIndex_Ranges(t *testing.T) {
	idx := New()

	for i := 1; i <= 10; i++ {
		idx.Add(model.RowID(i), mustDoc(t, map[string]any{"rank": i}))
	}

	requireRows(t, idx.Eval(metadata.NewWhere(metadata.GreaterThan("rank", metadata.Int(8)))), 9, 10)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.LessThan("rank", metadata.Int(3)))), 1, 2)

	// Strict bounds exclude the operand itself.
	requireRows(t, idx.Eval(metadata.NewWhere(
		metadata.GreaterThan("rank", metadata.Int(5)),
		metadata.LessThan("rank", metadata.Int(7)),
	)), 6)

	// Float operand against int values.
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.GreaterThan("rank", metadata.Float(9.5)))), 10)
}

func TestIndex_NullValues(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"parent": nil}))
	idx.Add(1, mustDoc(t, map[string]any{"parent": "root"}))

	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("parent", metadata.Null()))), 0)
}

func TestIndex_UnknownFields(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"known": 1}))

	require.NoError(t, idx.CheckFields(metadata.NewWhere(metadata.Equals("known", metadata.Int(1)))))

	err := idx.CheckFields(metadata.NewWhere(metadata.Equals("ghost", metadata.Int(1))))

	var unknownErr *metadata.ErrUnknownField
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "ghost", unknownErr.Field)

	// Without the strict check, unknown fields simply match nothing.
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("ghost", metadata.Int(1)))))
	assert.Zero(t, idx.EstimateCount(metadata.NewWhere(metadata.Equals("ghost", metadata.Int(1)))))
}

func TestIndex_FieldStaysKnownAfterRemoval(t *testing.T) {
	idx := New()

	doc := mustDoc(t, map[string]any{"ephemeral": "x"})
	idx.Add(0, doc)
	idx.Remove(0, doc)

	require.NoError(t, idx.CheckFields(metadata.NewWhere(metadata.Equals("ephemeral", metadata.String("x")))))
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("ephemeral", metadata.String("x")))))
	assert.Equal(t, []string{"ephemeral"}, idx.Fields())
	assert.Zero(t, idx.Docs())
}

func TestIndex_Update(t *testing.T) {
	idx := New()

	oldDoc := mustDoc(t, map[string]any{"status": "open", "rank": 5, "tags": []string{"a"}})
	newDoc := mustDoc(t, map[string]any{"status": "closed", "rank": 5, "owner": "kim"})

	idx.Add(7, oldDoc)
	idx.Update(7, oldDoc, newDoc)

	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("status", metadata.String("open")))))
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("status", metadata.String("closed")))), 7)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("rank", metadata.Int(5)))), 7)
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Contains("tags", metadata.String("a")))))
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("owner", metadata.String("kim")))), 7)

	assert.Equal(t, 1, idx.Docs(), "update keeps the document count")
}

func TestIndex_EstimateCount(t *testing.T) {
	idx := New()

	for i := 0; i < 8; i++ {
		idx.Add(model.RowID(i), mustDoc(t, map[string]any{"group": fmt.Sprintf("g%d", i%2), "rank": i}))
	}

	assert.Equal(t, uint64(4), idx.EstimateCount(metadata.NewWhere(metadata.Equals("group", metadata.String("g0")))))
	assert.Equal(t, uint64(8), idx.EstimateCount(metadata.NewWhere(
		metadata.OneOf("group", metadata.String("g0"), metadata.String("g1")),
	)))
	assert.Equal(t, uint64(3), idx.EstimateCount(metadata.NewWhere(metadata.GreaterThan("rank", metadata.Int(4)))))
	assert.Equal(t, uint64(2), idx.EstimateCount(metadata.NewWhere(metadata.LessThan("rank", metadata.Int(2)))))

	// AND takes the most selective bound.
	assert.Equal(t, uint64(3), idx.EstimateCount(metadata.NewWhere(
		metadata.Equals("group", metadata.String("g0")),
		metadata.GreaterThan("rank", metadata.Int(4)),
	)))

	// Unconstrained falls back to the document count.
	assert.Equal(t, uint64(8), idx.EstimateCount(nil))
}

func TestIndex_Cardinalities(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"status": "open", "rank": 1}))
	idx.Add(1, mustDoc(t, map[string]any{"status": "closed", "rank": 1.0}))
	idx.Add(2, mustDoc(t, map[string]any{"status": "open", "tags": []string{"a", "b"}}))

	cards := idx.Cardinalities()
	assert.Equal(t, 2, cards["status"])
	assert.Equal(t, 2, cards["rank"], "int 1 and float 1.0 are distinct keys")
	assert.Equal(t, 2, cards["tags"], "array elements post individually")
}

func TestIndex_Reset(t *testing.T) {
	idx := New()

	idx.Add(0, mustDoc(t, map[string]any{"a": 1}))
	idx.Reset()

	assert.Zero(t, idx.Docs())
	assert.Empty(t, idx.Fields())
	requireRows(t, idx.Eval(metadata.NewWhere(metadata.Equals("a", metadata.Int(1)))))
}

// TestIndex_AgreesWithDirectEvaluation cross-checks posting lookups against
// metadata.Predicate.Matches on randomized documents, removals and updates.
func TestIndex_AgreesWithDirectEvaluation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	categories := []string{"paper", "note", "memo", "draft"}
	tags := []string{"go", "db", "ml", "infra", "web"}

	randomDoc := func() metadata.Document {
		doc := metadata.Document{}

		if rng.Intn(10) > 0 {
			doc["category"] = metadata.String(categories[rng.Intn(len(categories))])
		}

		switch rng.Intn(3) {
		case 0:
			doc["score"] = metadata.Int(int64(rng.Intn(20)))
		case 1:
			doc["score"] = metadata.Float(float64(rng.Intn(200)) / 10)
		}

		if rng.Intn(2) == 0 {
			n := 1 + rng.Intn(3)
			elems := make([]metadata.Value, n)
			for i := range elems {
				elems[i] = metadata.String(tags[rng.Intn(len(tags))])
			}
			doc["tags"] = metadata.Array(elems...)
		}

		if rng.Intn(3) == 0 {
			doc["active"] = metadata.Bool(rng.Intn(2) == 0)
		}

		return doc
	}

	randomPredicate := func() metadata.Predicate {
		switch rng.Intn(6) {
		case 0:
			return metadata.Equals("category", metadata.String(categories[rng.Intn(len(categories))]))
		case 1:
			return metadata.Equals("score", metadata.Int(int64(rng.Intn(20))))
		case 2:
			return metadata.OneOf("category",
				metadata.String(categories[rng.Intn(len(categories))]),
				metadata.String(categories[rng.Intn(len(categories))]))
		case 3:
			return metadata.GreaterThan("score", metadata.Float(float64(rng.Intn(200))/10))
		case 4:
			return metadata.LessThan("score", metadata.Int(int64(rng.Intn(20))))
		default:
			return metadata.Contains("tags", metadata.String(tags[rng.Intn(len(tags))]))
		}
	}

	idx := New()
	docs := make(map[uint32]metadata.Document)

	for row := uint32(0); row < 300; row++ {
		doc := randomDoc()
		idx.Add(model.RowID(row), doc)
		docs[row] = doc
	}

	// Churn: remove some rows, update others.
	for row := uint32(0); row < 300; row += 7 {
		idx.Remove(model.RowID(row), docs[row])
		delete(docs, row)
	}

	for row := uint32(1); row < 300; row += 11 {
		if oldDoc, ok := docs[row]; ok {
			newDoc := randomDoc()
			idx.Update(model.RowID(row), oldDoc, newDoc)
			docs[row] = newDoc
		}
	}

	for trial := 0; trial < 200; trial++ {
		preds := make([]metadata.Predicate, 1+rng.Intn(3))
		for i := range preds {
			preds[i] = randomPredicate()
		}

		w := metadata.NewWhere(preds...)
		require.NoError(t, w.Validate())

		want := roaring.New()
		for row, doc := range docs {
			if w.Matches(doc) {
				want.Add(row)
			}
		}

		got := idx.Eval(w)
		require.True(t, want.Equals(got),
			"trial %d: predicates %+v\nwant %v\ngot  %v", trial, preds, want.ToArray(), got.ToArray())

		assert.GreaterOrEqual(t, idx.EstimateCount(w), want.GetCardinality(),
			"trial %d: estimate must upper-bound the true count", trial)
	}
}
