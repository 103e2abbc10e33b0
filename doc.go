// Package knowgo provides an embedded knowledge store for Go.
//
// Knowgo keeps three views of one entity catalog in a single process:
// an HNSW vector index for similarity, a typed metadata index for exact
// and range predicates, and a directed relationship graph for traversal.
// One query can combine all three; a selectivity-aware planner picks the
// cheapest execution order.
//
//   - HNSW approximate nearest neighbor search with tombstone-aware compaction
//   - Typed metadata predicates over a Roaring Bitmap inverted index
//   - Directed, weighted, typed relationships with bounded-depth traversal
//   - Keyset cursors for pagination that stays stable across writes
//   - Snapshot persistence to local disk, S3, MinIO or DynamoDB
//   - Optional embedding provider for inserting and querying by text
//
// # Quick Start
//
// In-memory store:
//
//	ctx := context.Background()
//	db, err := knowgo.New(128).Cosine().Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	_, _ = db.Insert(ctx, &model.Entity{
//	    ID:     "doc-1",
//	    Vector: vec,
//	    Meta:   metadata.Document{"status": metadata.String("active"), "rank": metadata.Int(12)},
//	})
//
// # Queries
//
// A query is any combination of a similarity clause, a metadata filter and
// a graph constraint:
//
//	page, err := db.Query(ctx, &knowgo.Query{
//	    Like:  &knowgo.Like{Vector: vec},
//	    Where: metadata.NewWhere(metadata.Equals("status", metadata.String("active"))),
//	    Limit: 10,
//	})
//
// Or use the fluent API:
//
//	page, err := db.Search(vec).
//	    Where(metadata.NewWhere(metadata.GreaterThan("rank", metadata.Int(10)))).
//	    Limit(10).
//	    Execute(ctx)
//
// Without a similarity clause results are ordered by recency; paginate with
// page.Next:
//
//	page, err := db.Search(nil).Where(filter).Limit(100).Execute(ctx)
//	page, err = db.Search(nil).Where(filter).Limit(100).Cursor(page.Next).Execute(ctx)
//
// # Relationships
//
// Entities are connected by directed, typed, weighted edges:
//
//	_, _ = db.Relate(ctx, &model.Relationship{
//	    From: "doc-1", To: "doc-2", Type: "cites", Weight: 0.9,
//	})
//
//	reached, _ := db.Traverse(ctx, []model.EntityID{"doc-1"}, 2)
//
// A graph clause restricts a similarity query to the neighborhood of some
// entities:
//
//	page, err := db.Query(ctx, &knowgo.Query{
//	    Like:      &knowgo.Like{Vector: vec},
//	    Connected: &knowgo.Connected{To: []model.EntityID{"doc-1"}, Depth: 2},
//	})
//
// # Persistence
//
// Snapshots are written to a blob store; Open loads the newest committed
// snapshot on startup:
//
//	store := blobstore.NewLocalStore("./data")
//	db, err := knowgo.Open(ctx, 128,
//	    knowgo.WithBlobStore(store),
//	    knowgo.WithSaveOnClose(),
//	)
//
// Remote backends live in blobstore/s3 and blobstore/minio; wrap them with
// blobstore.NewCachingStore to keep hot snapshot sections in memory.
//
// # Tuning
//
// The vector index trades recall for speed through three knobs:
//
//   - M: graph connectivity. Default 16; raise to 32-64 for high recall.
//   - EFConstruction: build-time beam width. Default 200.
//   - EFSearch: query-time beam width. Default 100; raise for better recall,
//     or set per query via Query.EF.
package knowgo
