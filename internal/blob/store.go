// Package blob provides the attachment storage capability: content upload
// returning a stable retrieval reference.
package blob

import (
	"context"
	"fmt"
)

// UploadResult identifies uploaded content within the blob store.
type UploadResult struct {
	Bucket string
	Key    string
}

// Store is the blob store capability.
type Store interface {
	Upload(ctx context.Context, key string, data []byte) (UploadResult, error)
	// RetrievalReference returns an opaque, stable string that can later
	// be used to fetch the uploaded content.
	RetrievalReference(ctx context.Context, result UploadResult) (string, error)
}

// BlobError carries the store's message for a failed upload or
// reference retrieval.
type BlobError struct {
	Op  string
	Key string
	Err error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *BlobError) Unwrap() error { return e.Err }

func blobError(op, key string, err error) *BlobError {
	return &BlobError{Op: op, Key: key, Err: err}
}
