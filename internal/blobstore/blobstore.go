package blobstore

import "context"

// ObjectStore is the blob storage capability the pipeline depends on: tile
// bytes go in, original images come out.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	EnsureBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, path string, data []byte) error
	Download(ctx context.Context, bucket, path string) ([]byte, error)
}
