package httpsource_test

import (
	"bytes"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/anvil"
	"github.com/meigma/anvil/httpsource"
	"github.com/meigma/anvil/testutil"
)

func serveBytes(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "r.0.0.mca", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSourceReadAt(t *testing.T) {
	t.Parallel()

	data := []byte("hello region bytes")
	server := serveBytes(t, data)

	src, err := httpsource.New(server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), src.Size())

	buf := make([]byte, 6)
	n, err := src.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "region", string(buf))

	// Reads past the end return what exists plus EOF.
	edge := make([]byte, 10)
	n, err = src.ReadAt(edge, int64(len(data)-5))
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "bytes", string(edge[:n]))

	_, err = src.ReadAt(buf, int64(len(data)))
	assert.Equal(t, io.EOF, err)
}

func TestSourceRegionRoundTrip(t *testing.T) {
	t.Parallel()

	payload := testutil.EncodeRoot("", testutil.Compound{
		{Name: "DataVersion", Value: int32(3465)},
		{Name: "Status", Value: "full"},
	})
	image := testutil.NewRegionBuilder().
		Add(2, 9, testutil.SchemeZlib, payload).
		Build()
	server := serveBytes(t, image)

	src, err := httpsource.New(server.URL)
	require.NoError(t, err)

	region, err := anvil.Open(src)
	require.NoError(t, err)

	chunk, err := region.Chunk(2, 9)
	require.NoError(t, err)
	require.NotNil(t, chunk)

	tag, err := chunk.Decode()
	require.NoError(t, err)
	status, err := tag.GetString("Status")
	require.NoError(t, err)
	assert.Equal(t, "full", status)

	// Ungenerated slots stay cheap: only the header was fetched.
	missing, err := region.Chunk(0, 0)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSourceNoRangeSupport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte("full body"))
	}))
	t.Cleanup(server.Close)

	_, err := httpsource.New(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range requests not supported")
}

func TestSourceCustomHeader(t *testing.T) {
	t.Parallel()

	var gotAuth string
	data := []byte("0123456789")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotAuth = r.Header.Get("Authorization")
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	src, err := httpsource.New(server.URL, httpsource.WithHeader("Authorization", "Bearer token"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", gotAuth)

	buf := make([]byte, 4)
	_, err = src.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", gotAuth)
}
