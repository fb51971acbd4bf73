package httpmsg

import (
	"fmt"
	"io"

	"github.com/wrknet/warpgate/internal/stream"
)

// reasonPhrases covers the status codes this gateway itself emits;
// spec §6 makes the reason phrase optional on send, so anything not
// listed here is sent with an empty reason.
var reasonPhrases = map[int]string{
	200: "OK",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	404: "Not Found",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
}

// ReasonPhrase returns the conventional reason phrase for code, or ""
// if none is known.
func ReasonPhrase(code int) string { return reasonPhrases[code] }

// NewResponse builds a Response with the conventional reason phrase
// for code and an empty header map.
func NewResponse(code int) *Response {
	return &Response{Code: code, Reason: ReasonPhrase(code), Headers: NewHeaders()}
}

func writeHeaderBlock(w *stream.OutputBuffer, h *Headers) error {
	var err error
	h.Each(func(key, value string) {
		if err != nil {
			return
		}
		err = w.WriteAll([]byte(key + ": " + value + "\r\n"))
	})
	if err != nil {
		return err
	}
	return w.WriteAll([]byte("\r\n"))
}

// WriteRequest serializes req's request line and headers to w. Used
// by the proxy handler to forward the client's request upstream.
func WriteRequest(w *stream.OutputBuffer, req *Request) error {
	line := fmt.Sprintf("%s %s %s\r\n", req.Method, req.Target, req.Version)
	if err := w.WriteAll([]byte(line)); err != nil {
		return err
	}
	return writeHeaderBlock(w, req.Headers)
}

// writeResponseLine serializes resp's status line and headers to w.
func writeResponseLine(w *stream.OutputBuffer, resp *Response) error {
	reason := resp.Reason
	if reason == "" {
		reason = ReasonPhrase(resp.Code)
	}
	line := fmt.Sprintf("HTTP/1.1 %d %s\r\n", resp.Code, reason)
	if err := w.WriteAll([]byte(line)); err != nil {
		return err
	}
	return writeHeaderBlock(w, resp.Headers)
}

// ResponseWriter is the single-use response emitter of spec §3/§4.7:
// Send may be invoked at most once and returns a body-writer stream.
type ResponseWriter struct {
	out  *stream.OutputBuffer
	sent bool
}

// NewResponseWriter wraps out as a fresh, unused ResponseWriter.
func NewResponseWriter(out *stream.OutputBuffer) *ResponseWriter {
	return &ResponseWriter{out: out}
}

// Sent reports whether Send has already been called.
func (w *ResponseWriter) Sent() bool { return w.sent }

// Send writes resp's status line and headers, and returns the
// underlying stream for writing the body. Calling Send a second time
// returns an error without writing anything.
func (w *ResponseWriter) Send(resp *Response) (io.Writer, error) {
	if w.sent {
		return nil, errBadRequest("response already sent")
	}
	w.sent = true
	if err := writeResponseLine(w.out, resp); err != nil {
		return nil, err
	}
	return w.out, nil
}
