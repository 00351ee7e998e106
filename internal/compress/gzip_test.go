package compress

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzipWriter_CompressesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewGzipWriter(rec)
	_, err := w.Write([]byte(`{"step":"review"}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"step":"review"}`, string(body))
}

func TestGzipReader_Decompresses(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("lavender"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := NewGzipReader(io.NopCloser(&buf))
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "lavender", string(body))
	assert.NoError(t, r.Close())

	_, err = NewGzipReader(io.NopCloser(bytes.NewBufferString("plain")))
	assert.Error(t, err)
}

func TestGzipWriter_NoContentIsPlain(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewGzipWriter(rec)
	w.WriteHeader(http.StatusNoContent)
	require.NoError(t, w.Close())

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Zero(t, rec.Body.Len())
}
