// Package blob is the opaque byte-storage backend for file contents. The
// relational transaction never covers it; callers sequence blob writes before
// their commit so a storage failure can still roll the records back.
package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob: not found")

// Store writes, reads and deletes opaque blobs by key.
type Store interface {
	Write(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
