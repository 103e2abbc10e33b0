package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`, so
// filesystem-backed stores can surface their native error unchanged.
var ErrNotFound = os.ErrNotExist

// CurrentKey is the key of the commit pointer blob. It holds the key of
// the manifest describing the latest committed snapshot. Stores that
// coordinate concurrent writers (such as the S3+DynamoDB commit store)
// give this key special treatment.
const CurrentKey = "CURRENT"

// BlobStore is an abstraction for storing opaque immutable blobs by key.
//
// Keys may contain "/" separators; implementations are free to map them to
// directories, object keys or plain map entries.
type BlobStore interface {
	// Get returns the full content of the blob, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes a blob atomically, replacing any existing blob at key.
	// A reader never observes a partially written blob.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all blobs whose key starts with prefix,
	// sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
}
