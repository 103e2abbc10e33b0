// Package s3 provides Amazon S3 backed implementations of the
// blobstore.BlobStore interface.
//
// Store keeps snapshots in a bucket under a configurable prefix:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3blob.NewStore(s3.NewFromConfig(cfg), "my-bucket", "knowledge/")
//
//	kg, err := knowgo.Open(ctx, 128, knowgo.WithBlobStore(store))
//
// S3 has no compare-and-swap, so concurrent writers sharing a prefix can
// overwrite each other's CURRENT pointer. DDBCommitStore layers a DynamoDB
// commit log over Store to make CURRENT updates atomic:
//
//	commitStore := s3blob.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg),
//	    "knowgo-commits", "s3://my-bucket/knowledge/")
package s3
