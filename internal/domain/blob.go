package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo is one archived object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter stores event archives. PutMultipart is used for archives too
// large for a single request.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader reads event archives back. Get on a missing path returns
// ErrNotFound.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves journaled events older than before into cold storage and
// reports how many it moved.
type Archiver interface {
	ArchiveEvents(ctx context.Context, before time.Time) (int64, error)
}
