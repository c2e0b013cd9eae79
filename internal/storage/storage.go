// Package storage mediates access to the S3-compatible object store: the
// gateway writes cropped images here, the API resolves short-lived read URLs.
package storage

import "context"

// Store is the object-store contract. Production code is backed by S3 (see
// s3.go); the object store is a spec §1 "deliberately out of scope" external
// collaborator, so only its interface is core.
type Store interface {
	// Put uploads data under key, returning once the write is durable.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// PresignGet returns a time-limited GET URL for key, valid for ttl seconds.
	PresignGet(ctx context.Context, key string, ttlSeconds int64) (string, error)
}
