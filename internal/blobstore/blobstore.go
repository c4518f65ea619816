// server/internal/blobstore/blobstore.go
// Package blobstore stores captured photos and hands back URLs for them.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by URL when nothing was uploaded under the path.
var ErrNotFound = errors.New("blobstore: object not found")

// Store is object storage as the uploader sees it: put bytes under a path,
// then resolve the path to a URL clients can fetch.
type Store interface {
	Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	URL(ctx context.Context, path string) (string, error)
	Ping(ctx context.Context) error
}
