package anvil

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/anvil/testutil"
)

func chunkPayload(status string) []byte {
	return testutil.EncodeRoot("", testutil.Compound{
		{Name: "DataVersion", Value: int32(3465)},
		{Name: "Status", Value: status},
	})
}

func TestOpenTruncatedHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
	}{
		{name: "empty", size: 0},
		{name: "partial locations", size: 100},
		{name: "locations only", size: 4096},
		{name: "one byte short", size: 8191},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(testutil.NewSource(make([]byte, tt.size)))
			assert.ErrorIs(t, err, ErrTruncatedHeader)
		})
	}
}

func TestOpenEmptyRegion(t *testing.T) {
	t.Parallel()

	r, err := Open(testutil.NewRegionBuilder().BuildSource())
	require.NoError(t, err)

	for _, coord := range [][2]int{{0, 0}, {31, 31}, {17, 3}} {
		ok, err := r.Generated(coord[0], coord[1])
		require.NoError(t, err)
		assert.False(t, ok)

		chunk, err := r.Chunk(coord[0], coord[1])
		require.NoError(t, err)
		assert.Nil(t, chunk)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	t.Parallel()

	payload := chunkPayload("full")
	source := testutil.NewRegionBuilder().
		Add(3, 7, testutil.SchemeZlib, payload).
		BuildSource()

	r, err := Open(source)
	require.NoError(t, err)

	chunk, err := r.Chunk(3, 7)
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, 3, chunk.X)
	assert.Equal(t, 7, chunk.Z)
	assert.Equal(t, SchemeZlib, chunk.Scheme)
	assert.False(t, chunk.External)

	data, err := chunk.Decompress()
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	tag, err := chunk.Decode()
	require.NoError(t, err)
	status, err := tag.GetString("Status")
	require.NoError(t, err)
	assert.Equal(t, "full", status)

	// Extraction is idempotent.
	again, err := r.Chunk(3, 7)
	require.NoError(t, err)
	assert.Equal(t, chunk.Payload, again.Payload)
}

func TestChunkOutOfRange(t *testing.T) {
	t.Parallel()

	r, err := Open(testutil.NewRegionBuilder().BuildSource())
	require.NoError(t, err)

	for _, coord := range [][2]int{{-1, 0}, {0, -1}, {32, 0}, {0, 32}, {100, 100}} {
		_, err := r.Chunk(coord[0], coord[1])
		assert.ErrorIs(t, err, ErrOutOfRange, "coord %v", coord)

		_, err = r.Timestamp(coord[0], coord[1])
		assert.ErrorIs(t, err, ErrOutOfRange, "coord %v", coord)

		_, err = r.Generated(coord[0], coord[1])
		assert.ErrorIs(t, err, ErrOutOfRange, "coord %v", coord)
	}
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	source := testutil.NewRegionBuilder().
		Add(1, 2, testutil.SchemeZlib, chunkPayload("full")).
		SetTimestamp(1, 2, 1712345678).
		BuildSource()

	r, err := Open(source)
	require.NoError(t, err)

	ts, err := r.Timestamp(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1712345678), ts)

	// Unwritten slots report the zero timestamp.
	ts, err = r.Timestamp(0, 0)
	require.NoError(t, err)
	assert.Zero(t, ts)
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	image := testutil.NewRegionBuilder().
		Add(0, 0, testutil.SchemeGzip, chunkPayload("full")).
		Build()

	path := filepath.Join(t.TempDir(), "r.0.0.mca")
	require.NoError(t, os.WriteFile(path, image, 0o644))

	r, err := OpenFile(path)
	require.NoError(t, err)

	chunk, err := r.Chunk(0, 0)
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Equal(t, SchemeGzip, chunk.Scheme)

	require.NoError(t, r.Close())

	// The payload was copied out, so it survives the close.
	_, err = chunk.Decode()
	assert.NoError(t, err)
}

func TestOpenFileMissing(t *testing.T) {
	t.Parallel()

	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.mca"))
	assert.Error(t, err)
}

func TestOpenWarnsOnUnalignedLength(t *testing.T) {
	t.Parallel()

	image := testutil.NewRegionBuilder().
		Add(0, 0, testutil.SchemeZlib, chunkPayload("full")).
		Build()
	image = append(image, 0xAA) // stray trailing byte

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r, err := Open(testutil.NewSource(image), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "not sector aligned")

	// The stray byte does not affect chunk access.
	chunk, err := r.Chunk(0, 0)
	require.NoError(t, err)
	require.NotNil(t, chunk)
}
