package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

type memWriter struct {
	objects   map[string][]byte
	order     []string
	multipart []string
	fail      string
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if path == m.fail {
		return errors.New("denied")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	m.order = append(m.order, path)
	return nil
}

func (m *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	m.multipart = append(m.multipart, path)
	return m.Put(ctx, path, data, "")
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("https://e2.example.com", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://localhost", normaliseEndpoint("localhost", false))
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "runs/a", joinKey("", "/runs/a"))
	assert.Equal(t, "pricer/runs/a", joinKey("pricer", "runs/a"))
}

func TestArchiveRun(t *testing.T) {
	w := &memWriter{objects: map[string][]byte{}}
	run := domain.NewRun("ACME", 200, "s3://bucket/in.txt", "text")
	run.StartedAt = time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)
	run.Reports = 2
	run.Finish(nil)

	prefix, err := NewArchiver(w).ArchiveRun(context.Background(), domain.RunArtifacts{
		Run:     run,
		Reports: []byte("1 S 1000.00\n2 S 1050.00\n"),
		Errors:  []byte(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "runs/2026-03-04/"+run.ID, prefix)

	assert.Equal(t, []string{prefix + "/reports.txt", prefix + "/errors.txt", prefix + "/run.json"}, w.order)
	assert.Equal(t, "1 S 1000.00\n2 S 1050.00\n", string(w.objects[prefix+"/reports.txt"]))

	var got domain.Run
	require.NoError(t, json.Unmarshal(w.objects[prefix+"/run.json"], &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, domain.RunStatusFinished, got.Status)
	assert.Empty(t, w.multipart)
}

func TestArchiveRunLargeArtifactUsesMultipart(t *testing.T) {
	w := &memWriter{objects: map[string][]byte{}}
	run := domain.NewRun("ACME", 1, "stdin", "text")

	_, err := NewArchiver(w).ArchiveRun(context.Background(), domain.RunArtifacts{
		Run:     run,
		Reports: make([]byte, multipartThreshold+1),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{RunPrefix(run) + "/reports.txt"}, w.multipart)
}

func TestArchiveRunStopsBeforeManifestOnFailure(t *testing.T) {
	run := domain.NewRun("ACME", 1, "stdin", "text")
	w := &memWriter{objects: map[string][]byte{}, fail: RunPrefix(run) + "/errors.txt"}

	_, err := NewArchiver(w).ArchiveRun(context.Background(), domain.RunArtifacts{Run: run})
	require.Error(t, err)
	_, ok := w.objects[RunPrefix(run)+"/run.json"]
	assert.False(t, ok)
}
