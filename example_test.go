package knowgo_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/knowgo"
	"github.com/hupe1980/knowgo/blobstore"
	"github.com/hupe1980/knowgo/metadata"
	"github.com/hupe1980/knowgo/model"
)

// Example demonstrates the basic insert and similarity query flow.
func Example() {
	ctx := context.Background()

	db, err := knowgo.New(3).SquaredL2().Build()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	docs := map[model.EntityID][]float32{
		"go":     {1, 0, 0},
		"rust":   {0.9, 0.1, 0},
		"python": {0, 0, 1},
	}
	for id, vec := range docs {
		if _, err := db.Insert(ctx, &model.Entity{ID: id, Vector: vec}); err != nil {
			log.Fatal(err)
		}
	}

	page, err := db.Query(ctx, &knowgo.Query{
		Like:  &knowgo.Like{Vector: []float32{1, 0, 0}},
		Limit: 2,
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, item := range page.Items {
		fmt.Println(item.Entity.ID)
	}
	// Output:
	// go
	// rust
}

// Example_filter demonstrates combining similarity with a metadata predicate.
func Example_filter() {
	ctx := context.Background()
	db := knowgo.New(3).SquaredL2().MustBuild()
	defer db.Close()

	docs := []*model.Entity{
		{ID: "a", Vector: []float32{1, 0, 0}, Meta: metadata.Document{"lang": metadata.String("go")}},
		{ID: "b", Vector: []float32{0.9, 0, 0}, Meta: metadata.Document{"lang": metadata.String("rust")}},
		{ID: "c", Vector: []float32{0.8, 0, 0}, Meta: metadata.Document{"lang": metadata.String("go")}},
	}
	for _, doc := range docs {
		if _, err := db.Insert(ctx, doc); err != nil {
			log.Fatal(err)
		}
	}

	page, err := db.Search([]float32{1, 0, 0}).
		Where(metadata.NewWhere(metadata.Equals("lang", metadata.String("go")))).
		Limit(10).
		Execute(ctx)
	if err != nil {
		log.Fatal(err)
	}

	for _, item := range page.Items {
		fmt.Println(item.Entity.ID)
	}
	// Output:
	// a
	// c
}

// Example_relationships demonstrates typed edges and graph traversal.
func Example_relationships() {
	ctx := context.Background()
	db := knowgo.New(3).SquaredL2().MustBuild()
	defer db.Close()

	for _, id := range []model.EntityID{"paper-a", "paper-b", "paper-c"} {
		if _, err := db.Insert(ctx, &model.Entity{ID: id, Vector: []float32{1, 0, 0}}); err != nil {
			log.Fatal(err)
		}
	}

	_, _ = db.Relate(ctx, &model.Relationship{From: "paper-a", To: "paper-b", Type: "cites", Weight: 0.9})
	_, _ = db.Relate(ctx, &model.Relationship{From: "paper-b", To: "paper-c", Type: "cites", Weight: 0.4})

	res, err := db.Traverse(ctx, []model.EntityID{"paper-a"}, 2, func(o *knowgo.TraverseOptions) {
		o.Direction = model.DirectionOut
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, hit := range res.Hits {
		fmt.Printf("%s reached at depth %d\n", hit.ID, hit.Depth)
	}
	// Output:
	// paper-b reached at depth 1
	// paper-c reached at depth 2
}

// Example_connected demonstrates restricting a similarity query to the graph
// neighborhood of an entity.
func Example_connected() {
	ctx := context.Background()
	db := knowgo.New(3).SquaredL2().MustBuild()
	defer db.Close()

	vectors := map[model.EntityID][]float32{
		"a": {0, 1, 0},
		"b": {1, 0, 0},
		"c": {0, 0, 1},
	}
	for id, vec := range vectors {
		if _, err := db.Insert(ctx, &model.Entity{ID: id, Vector: vec}); err != nil {
			log.Fatal(err)
		}
	}

	_, _ = db.Relate(ctx, &model.Relationship{From: "a", To: "b", Type: "cites", Weight: 1})
	_, _ = db.Relate(ctx, &model.Relationship{From: "b", To: "c", Type: "cites", Weight: 1})

	// Rank entities within two incoming hops of c by similarity.
	page, err := db.Query(ctx, &knowgo.Query{
		Like: &knowgo.Like{Vector: []float32{1, 0, 0}},
		Connected: &knowgo.Connected{
			To:        []model.EntityID{"c"},
			Depth:     2,
			Direction: model.DirectionIn,
		},
		Limit: 10,
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, item := range page.Items {
		fmt.Printf("%s (depth %d)\n", item.Entity.ID, item.Depth)
	}
	// Output:
	// b (depth 1)
	// a (depth 2)
}

// Example_pagination demonstrates cursor-based paging.
func Example_pagination() {
	ctx := context.Background()
	db := knowgo.New(3).SquaredL2().MustBuild()
	defer db.Close()

	for i := 1; i <= 5; i++ {
		id := model.EntityID(fmt.Sprintf("n-%d", i))
		if _, err := db.Insert(ctx, &model.Entity{ID: id, Vector: []float32{float32(i), 0, 0}}); err != nil {
			log.Fatal(err)
		}
	}

	// Without a similarity clause pages are ordered newest first.
	cursor := ""
	for {
		page, err := db.Query(ctx, &knowgo.Query{Limit: 2, Cursor: cursor})
		if err != nil {
			log.Fatal(err)
		}

		for _, item := range page.Items {
			fmt.Println(item.Entity.ID)
		}

		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	// Output:
	// n-5
	// n-4
	// n-3
	// n-2
	// n-1
}

// Example_persistence demonstrates snapshotting to a blob store.
func Example_persistence() {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	db, err := knowgo.New(3).SquaredL2().BlobStore(store).Build()
	if err != nil {
		log.Fatal(err)
	}

	_, _ = db.Insert(ctx, &model.Entity{ID: "doc-1", Vector: []float32{1, 0, 0}})
	_, _ = db.Insert(ctx, &model.Entity{ID: "doc-2", Vector: []float32{0, 1, 0}})

	if _, err := db.Save(ctx); err != nil {
		log.Fatal(err)
	}
	if err := db.Close(); err != nil {
		log.Fatal(err)
	}

	reopened, err := knowgo.New(3).SquaredL2().BlobStore(store).Open(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer reopened.Close()

	fmt.Println(reopened.Stats().Entities)
	// Output: 2
}
