package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// RunArtifacts is what a finished run leaves behind for cold storage.
type RunArtifacts struct {
	Run     Run
	Reports []byte
	Errors  []byte
}

// RunArchiver copies a finished run's artifacts to cold storage and returns
// the prefix they were written under.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, a RunArtifacts) (string, error)
}
