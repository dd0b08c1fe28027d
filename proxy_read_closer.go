package httpauth

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ProxyReadCloser defines an interface that holds a copy of bytes
// written to it, returnable as a new io.ReadCloser.  Paired with an
// io.MultiWriter, it's possible to clone an http.Request Body, or
// to process the body without losing access to the data if a request
// Body is a streaming source.
type ProxyReadCloser interface {
	Write(p []byte) (n int, err error)
	Close() (err error)
	ReadCloser() (rc io.ReadCloser, err error)
}

// MemFileReadCloser implements ProxyReadCloser, keeping its copy
// buffer in memory unless a limit is exceeded, then falling back to
// copying the bytes
// to a temporary file on disk.
type MemFileReadCloser struct {
	limit int
	buf   *bytes.Buffer
	fh    *os.File
	dir   string
	used  bool
}

// NewMemFileReadCloser returns a MemFileReadCLoser that will write
// a temporary file to dir if more than limit bytes are written to
// it.  If the specified dir is an empty string,
// the OS temporary directory will be used.
func NewMemFileReadCloser(dir string, limit int) *MemFileReadCloser {
	return &MemFileReadCloser{
		limit: limit,
		buf:   &bytes.Buffer{},
		fh:    nil,
		dir:   dir,
		used:  false,
	}
}

// Write copies bytes from p, returning the number of bytes written
// and any error encountered.
func (w *MemFileReadCloser) Write(p []byte) (n int, err error) {
	if w.fh != nil {
		return w.fh.Write(p)
	}

	n, err = w.buf.Write(p)
	if err != nil || w.limit < 0 || w.buf.Len() <= w.limit {
		return n, err
	}

	// buf length has exceeded limit, write to temp file
	w.fh, err = os.CreateTemp(w.dir, "MemFileReadCloser")
	if err != nil {
		return n, err
	}

	_, err = w.fh.Write(w.buf.Bytes())
	if err == nil {
		w.buf.Reset()
	} else {
		w.fh.Close()
		os.Remove(w.fh.Name())
		w.fh = nil
	}

	return n, err
}

// Close indicates that the caller has finished writing bytes to the
// MemFileReadCloser.
func (w *MemFileReadCloser) Close() (err error) {
	if w.fh != nil {
		err = w.fh.Close()
	}
	return err
}

// ReadCloser returns an io.ReadCloser
// that will return any bytes written
// to it.  Only one call to ReadCloser is
// allowed.
func (w *MemFileReadCloser) ReadCloser() (rc io.ReadCloser, err error) {
	if w.used {
		err = fmt.Errorf("ReadCloser has already been used")
		return nil, err
	} else {
		w.used = true
	}

	var fh *os.File
	if w.fh != nil {
		fh, err = os.Open(w.fh.Name())
	}

	rc = &readCloser{
		buf: w.buf,
		fh:  fh,
	}

	return rc, err
}

// readCloser implements io.ReadCloser, selecting its bytes from
// either fh or buf, depending on what is available.
type readCloser struct {
	buf *bytes.Buffer
	fh  *os.File
}

// Read returns bytes from its filehandle if available, otherwise it
// returns them from its in-memory buffer.
func (rc *readCloser) Read(p []byte) (n int, err error) {
	if rc.fh != nil {
		return rc.fh.Read(p)
	}
	return rc.buf.Read(p)
}

// Close indicates that the caller has finished reading bytes.  If
// the underlying filehandle has been allocated, it will be closed
// and the file unlinked.
func (rc *readCloser) Close() (err error) {
	if rc.fh != nil {
		e1 := rc.fh.Close()
		e2 := os.Remove(rc.fh.Name())
		if e1 != nil {
			err = e1
		} else {
			err = e2
		}
	}
	return err
}

// duplicateBody makes n independent io.ReadCloser copies of rc's
// contents via an io.MultiWriter over n MemFileReadClosers, closing rc
// when done. It lets Client.AuthDo re-send a request body across
// multiple challenge attempts without holding the whole thing
// unboundedly in memory (spec.md §4.6 "request body duplication").
func duplicateBody(rc io.ReadCloser, n int, dir string, limit int) (clone []io.ReadCloser, err error) {
	defer rc.Close()

	prc := make([]ProxyReadCloser, n)
	for i := 0; i < n; i++ {
		prc[i] = NewMemFileReadCloser(dir, limit)
	}

	writers := make([]io.Writer, n)
	for i := 0; i < n; i++ {
		writers[i] = prc[i].(io.Writer)
	}

	mw := io.MultiWriter(writers...)

	_, err = io.Copy(mw, rc)
	if err != nil {
		return nil, fmt.Errorf("error cloning request body: %v", err)
	}

	for i := 0; i < n; i++ {
		if err = prc[i].Close(); err != nil {
			return nil, fmt.Errorf("error cloning request body: %v", err)
		}
	}

	clone = make([]io.ReadCloser, n)
	for i := 0; i < n; i++ {
		clone[i], err = prc[i].ReadCloser()
		if err != nil {
			for j := 0; j < i; j++ {
				clone[j].Close()
			}
			return nil, fmt.Errorf("error cloning request body: %v", err)
		}
	}

	return clone, nil
}
