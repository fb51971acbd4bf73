package stream

// LimitedReader wraps an *InputBuffer with a byte budget, reporting
// EOF once n bytes have been delivered regardless of whether the
// underlying stream has more. This is how the connection driver caps
// a request body at Content-Length (spec §4.7).
type LimitedReader struct {
	src       *InputBuffer
	remaining int64
}

// NewLimitedReader caps reads from src at n bytes.
func NewLimitedReader(src *InputBuffer, n int64) *LimitedReader {
	if n < 0 {
		n = 0
	}
	return &LimitedReader{src: src, remaining: n}
}

// FillBuf returns up to the remaining budget of unconsumed bytes. A
// budget of zero returns EOF immediately without touching src.
func (l *LimitedReader) FillBuf() ([]byte, error) {
	if l.remaining <= 0 {
		return nil, nil
	}
	buf, err := l.src.FillBuf()
	if err != nil || len(buf) == 0 {
		return buf, err
	}
	if int64(len(buf)) > l.remaining {
		buf = buf[:l.remaining]
	}
	return buf, nil
}

// Consume advances both the limited view and the underlying buffer.
func (l *LimitedReader) Consume(n int) {
	l.src.Consume(n)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.remaining = 0
	}
}

// Remaining reports how many bytes may still be read before EOF.
func (l *LimitedReader) Remaining() int64 { return l.remaining }

// Read implements io.Reader atop FillBuf/Consume.
func (l *LimitedReader) Read(p []byte) (int, error) {
	buf, err := l.FillBuf()
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, errEOF
	}
	n := copy(p, buf)
	l.Consume(n)
	return n, nil
}
