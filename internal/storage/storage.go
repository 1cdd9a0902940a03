// Package storage defines the blob store contract that manifest archives
// write fetched payloads to.
package storage

import "context"

// BlobStore persists one payload under a hierarchical path and returns a
// URI locating it (file://, gs://, memory://).
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}
