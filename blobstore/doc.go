// Package blobstore provides the storage abstraction behind snapshots.
//
// A BlobStore holds opaque immutable blobs addressed by key. Snapshot
// sections and manifests are written and read as whole blobs; there are no
// partial reads or appends. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and ephemeral stores
//   - LocalStore: local filesystem with atomic writes and mmap reads
//   - CachingStore: a read-through LRU wrapper for remote backends
//   - minio.Store: MinIO and other S3-compatible object stores
//   - s3.Store: Amazon S3 with multipart uploads
//   - s3.DDBCommitStore: S3 plus DynamoDB-coordinated manifest commits
//
// # Custom Implementations
//
// Implement the four methods to support a custom backend:
//
//	type BlobStore interface {
//	    Get(ctx, key) ([]byte, error)
//	    Put(ctx, key, data) error
//	    Delete(ctx, key) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Get on a missing key must return an error satisfying
// errors.Is(err, ErrNotFound); Delete on a missing key must succeed.
package blobstore
