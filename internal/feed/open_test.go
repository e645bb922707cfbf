package feed

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

type memBlobs map[string]string

func (m memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	v, ok := m[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func (m memBlobs) List(context.Context, string) ([]domain.BlobInfo, error) { return nil, nil }

func (m memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m[path]
	return ok, nil
}

type memBus struct {
	mu      sync.Mutex
	entries []domain.StreamMessage
}

func (b *memBus) Publish(context.Context, string, []byte) error { return nil }

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *memBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := string(rune('a' + len(b.entries)))
	b.entries = append(b.entries, domain.StreamMessage{ID: id, Payload: payload})
	return nil
}

func (b *memBus) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, e := range b.entries {
		if lastID == "0" || e.ID > lastID {
			out = append(out, e)
		}
		if len(out) == count {
			break
		}
	}
	return out, nil
}

func drain(t *testing.T, src EventSource) []string {
	t.Helper()
	var out []string
	for {
		rec, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec.Raw)
	}
}

func TestOpenStdinAndFile(t *testing.T) {
	ctx := context.Background()
	src, err := Open(ctx, "-", OpenOptions{Stdin: strings.NewReader("1 R a 1\n")})
	require.NoError(t, err)
	assert.Equal(t, []string{"1 R a 1"}, drain(t, src))

	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("2 R b 2\n"), 0o644))
	src, err = Open(ctx, path, OpenOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2 R b 2"}, drain(t, src))
	require.NoError(t, src.Close())

	_, err = Open(ctx, filepath.Join(t.TempDir(), "missing"), OpenOptions{})
	assert.Error(t, err)
}

func TestOpenObjectStorage(t *testing.T) {
	ctx := context.Background()
	blobs := memBlobs{"feeds/day1.txt": "3 R c 3\n"}

	src, err := Open(ctx, "s3://books/feeds/day1.txt", OpenOptions{Blobs: blobs, Bucket: "books"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3 R c 3"}, drain(t, src))

	_, err = Open(ctx, "s3://other/feeds/day1.txt", OpenOptions{Blobs: blobs, Bucket: "books"})
	assert.ErrorContains(t, err, "not the configured bucket")

	_, err = Open(ctx, "s3://books/feeds/none.txt", OpenOptions{Blobs: blobs, Bucket: "books"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = Open(ctx, "s3://books/x", OpenOptions{})
	assert.Error(t, err)
}

func TestStreamSourceReadsInOrderUntilMarker(t *testing.T) {
	ctx := context.Background()
	bus := &memBus{}
	for _, p := range []string{"1 A a B 1 1", "2 R a 1", "", "3 R zz 1"} {
		require.NoError(t, bus.StreamAppend(ctx, "events", []byte(p)))
	}

	src, err := Open(ctx, "redis://events", OpenOptions{Bus: bus})
	require.NoError(t, err)
	assert.Equal(t, []string{"1 A a B 1 1", "2 R a 1"}, drain(t, src))
	assert.Equal(t, "c", src.(*StreamSource).Cursor())
}

func TestStreamSourceBinaryPayload(t *testing.T) {
	ctx := context.Background()
	bus := &memBus{}
	frame := make([]byte, FrameSize)
	require.NoError(t, EncodeFrame(frame, domain.Event{Timestamp: 4, Type: 'R', ID: "q", Size: 2}))
	require.NoError(t, bus.StreamAppend(ctx, "events", frame))
	require.NoError(t, bus.StreamAppend(ctx, "events", nil))

	src := NewStreamSource(bus, "events", FormatBinary, testLogger())
	assert.Equal(t, []string{"4 R q 2"}, drain(t, src))
}

func TestNewKafkaSourceValidates(t *testing.T) {
	_, err := NewKafkaSource(KafkaConfig{Topic: "t"}, FormatText, testLogger())
	assert.Error(t, err)
	_, err = NewKafkaSource(KafkaConfig{Brokers: []string{"localhost:9092"}}, FormatText, testLogger())
	assert.Error(t, err)
}

func TestDecodeMessageRejectsShortFrame(t *testing.T) {
	_, err := decodeMessage(1, []byte{1, 2}, FormatBinary)
	assert.Error(t, err)

	rec, err := decodeMessage(2, []byte("9 R a 1"), FormatText)
	require.NoError(t, err)
	assert.Equal(t, int64(9), rec.Event.Timestamp)
}

func TestLive(t *testing.T) {
	assert.False(t, Live("testdata/sample.txt"))
	assert.False(t, Live("-"))
	assert.False(t, Live("s3://bucket/key"))
	assert.True(t, Live("kafka://events"))
	assert.True(t, Live("redis://events"))
}
