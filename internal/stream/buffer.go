// Package stream implements the buffered byte-stream adapters of
// spec §4.4: a user-sized input buffer exposing fill_buf/consume, a
// matching output buffer with write_all/flush, a limited input
// stream enforcing a byte budget, and a pipe primitive driving both
// until EOF.
package stream

import (
	"io"
)

const defaultBufSize = 4096

// InputBuffer wraps an io.Reader with a user-sized buffer, exposing
// FillBuf/Consume instead of Read so callers can inspect bytes without
// copying them out.
type InputBuffer struct {
	r     io.Reader
	buf   []byte
	start int
	end   int
	eof   bool
}

// NewInputBuffer wraps r with a buffer of size bytes (defaultBufSize
// if size <= 0).
func NewInputBuffer(r io.Reader, size int) *InputBuffer {
	if size <= 0 {
		size = defaultBufSize
	}
	return &InputBuffer{r: r, buf: make([]byte, size)}
}

// FillBuf returns the currently buffered, unconsumed bytes, reading
// more from the underlying reader if the buffer is empty. A
// zero-length, nil-error return means EOF.
func (b *InputBuffer) FillBuf() ([]byte, error) {
	if b.start < b.end {
		return b.buf[b.start:b.end], nil
	}
	if b.eof {
		return nil, nil
	}

	n, err := b.r.Read(b.buf)
	if n > 0 {
		b.start = 0
		b.end = n
	}
	if err != nil {
		if err == io.EOF {
			b.eof = true
			if n == 0 {
				return nil, nil
			}
			return b.buf[b.start:b.end], nil
		}
		return nil, err
	}
	if n == 0 {
		// Non-EOF, zero-byte read: try again rather than spinning the
		// caller through a busy FillBuf/Consume(0) loop.
		return b.FillBuf()
	}
	return b.buf[b.start:b.end], nil
}

// Consume advances past n bytes previously returned by FillBuf.
func (b *InputBuffer) Consume(n int) {
	b.start += n
	if b.start > b.end {
		b.start = b.end
	}
}

// Read implements io.Reader atop FillBuf/Consume so InputBuffer can be
// used anywhere an io.Reader is expected (e.g. as the body source for
// httpmsg.Request).
func (b *InputBuffer) Read(p []byte) (int, error) {
	buf, err := b.FillBuf()
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, buf)
	b.Consume(n)
	return n, nil
}

// OutputBuffer wraps an io.Writer with a fixed-size buffer, flushing
// automatically when full.
type OutputBuffer struct {
	w   io.Writer
	buf []byte
	n   int
}

// NewOutputBuffer wraps w with a buffer of size bytes (defaultBufSize
// if size <= 0).
func NewOutputBuffer(w io.Writer, size int) *OutputBuffer {
	if size <= 0 {
		size = defaultBufSize
	}
	return &OutputBuffer{w: w, buf: make([]byte, size)}
}

// WriteAll copies p into the buffer, flushing whenever it fills, so
// that all of p is eventually handed to the underlying writer.
func (b *OutputBuffer) WriteAll(p []byte) error {
	for len(p) > 0 {
		n := copy(b.buf[b.n:], p)
		b.n += n
		p = p[n:]
		if b.n == len(b.buf) {
			if err := b.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write implements io.Writer in terms of WriteAll.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	if err := b.WriteAll(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes any buffered bytes to the underlying writer.
func (b *OutputBuffer) Flush() error {
	if b.n == 0 {
		return nil
	}
	_, err := b.w.Write(b.buf[:b.n])
	b.n = 0
	return err
}
