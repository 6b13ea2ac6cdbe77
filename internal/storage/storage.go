// Package storage puts uploaded files somewhere durable and hands out
// time-limited download URLs. S3 is the production backend; a local
// directory store serves development and tests.
package storage

import (
	"context"
	"io"
	"time"
)

// Store is the object storage surface the file handlers need.
type Store interface {
	// Put writes the object under key.
	Put(ctx context.Context, key, filename, contentType string, size int64, r io.Reader) error
	// SignedGetURL returns a URL valid for roughly expiry.
	SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Delete removes the object. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
