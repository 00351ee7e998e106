package compress

import (
	"compress/gzip"
	"io"
	"net/http"
)

// GzipWriter implements http.ResponseWriter, compressing the response body.
type GzipWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	wroteHeader bool
	plain       bool
}

// NewGzipWriter creates a new GzipWriter on top of w.
func NewGzipWriter(w http.ResponseWriter) *GzipWriter {
	return &GzipWriter{
		w:  w,
		zw: gzip.NewWriter(w),
	}
}

func (c *GzipWriter) Header() http.Header {
	return c.w.Header()
}

// Write writes compressed data to the underlying response.
func (c *GzipWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.plain {
		return c.w.Write(p)
	}
	return c.zw.Write(p)
}

func (c *GzipWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	// responses without a body are sent as is
	if !bodyAllowed(statusCode) {
		c.plain = true
		c.w.WriteHeader(statusCode)
		return
	}
	c.w.Header().Set("Content-Encoding", "gzip")
	c.w.Header().Del("Content-Length")
	c.w.WriteHeader(statusCode)
}

// Close flushes the gzip stream. Nothing is written when the response
// has no body.
func (c *GzipWriter) Close() error {
	if !c.wroteHeader || c.plain {
		return nil
	}
	return c.zw.Close()
}

func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

// GzipReader implements io.ReadCloser, decompressing a request body.
type GzipReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewGzipReader creates a new GzipReader over r.
func NewGzipReader(r io.ReadCloser) (*GzipReader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}

	return &GzipReader{
		r:  r,
		zr: zr,
	}, nil
}

// Read reads decompressed data.
func (c GzipReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip stream and the original body.
func (c *GzipReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}
