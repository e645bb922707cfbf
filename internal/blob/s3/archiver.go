package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// multipartThreshold is the artifact size above which uploads go through the
// multipart manager.
const multipartThreshold = 16 * 1024 * 1024

// Archiver implements domain.RunArchiver. A run is stored as three objects
// under runs/YYYY-MM-DD/<run id>/: reports.txt, errors.txt and run.json. The
// manifest is written last so its presence marks a complete archive.
type Archiver struct {
	writer   domain.BlobWriter
	partSize int64
}

// NewArchiver creates an Archiver writing through w.
func NewArchiver(w domain.BlobWriter) *Archiver {
	return &Archiver{writer: w, partSize: minPartSize}
}

// RunPrefix returns the key prefix a run is archived under.
func RunPrefix(run domain.Run) string {
	return fmt.Sprintf("runs/%s/%s", run.StartedAt.UTC().Format(time.DateOnly), run.ID)
}

// ArchiveRun uploads a's artifacts and returns the prefix they were written
// under.
func (a *Archiver) ArchiveRun(ctx context.Context, art domain.RunArtifacts) (string, error) {
	prefix := RunPrefix(art.Run)

	if err := a.put(ctx, prefix+"/reports.txt", art.Reports, "text/plain; charset=utf-8"); err != nil {
		return "", err
	}
	if err := a.put(ctx, prefix+"/errors.txt", art.Errors, "text/plain; charset=utf-8"); err != nil {
		return "", err
	}

	manifest, err := json.MarshalIndent(art.Run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal run manifest: %w", err)
	}
	if err := a.put(ctx, prefix+"/run.json", manifest, "application/json"); err != nil {
		return "", err
	}
	return prefix, nil
}

func (a *Archiver) put(ctx context.Context, path string, data []byte, contentType string) error {
	if len(data) > multipartThreshold {
		if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(data), a.partSize); err != nil {
			return fmt.Errorf("s3blob: archive %s: %w", path, err)
		}
		return nil
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("s3blob: archive %s: %w", path, err)
	}
	return nil
}

var _ domain.RunArchiver = (*Archiver)(nil)
