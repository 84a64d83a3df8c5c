// Package storage abstracts the object store holding book artifacts:
// the master PDF and per-purchase watermarked copies. Production runs
// against an S3-compatible bucket (Cloudflare R2) through the MinIO
// client; tests use the in-memory store.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a key has no object behind it.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the minimal surface the delivery pipeline needs.
type ObjectStore interface {
	// Get returns the full object body for key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores body under key with the given content type.
	Put(ctx context.Context, key string, body []byte, contentType string) error
}
