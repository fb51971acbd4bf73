package httpmsg

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/wrknet/warpgate/internal/stream"
)

func readLine(f stream.Filler, maxLen int) ([]byte, error) {
	var line []byte
	for {
		buf, err := f.FillBuf()
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			if len(line) == 0 {
				return nil, io.EOF
			}
			return nil, errBadRequest("unexpected EOF while reading a line")
		}

		if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
			line = append(line, buf[:idx]...)
			f.Consume(idx + 1)
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			return line, nil
		}

		line = append(line, buf...)
		f.Consume(len(buf))
		if maxLen > 0 && len(line) > maxLen {
			return nil, errHeaderTooLarge("request line too long")
		}
	}
}

// ParseRequest parses a request line and headers off f. The body is
// left unread; the caller is expected to wrap f (or its remainder) in
// a stream.LimitedReader sized to Content-Length and assign it to
// Request.Body, per spec §4.7.
func ParseRequest(f stream.Filler, limits Limits) (*Request, error) {
	line, err := readLine(f, limits.MaxKeyLength+limits.MaxValueLength+64)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return nil, errBadRequest("malformed request line")
	}
	method, target, version := parts[0], parts[1], parts[2]
	if method == "" || target == "" || !strings.HasPrefix(version, "HTTP/") {
		return nil, errBadRequest("malformed request line")
	}

	req := &Request{Method: method, Target: target, Version: version, Headers: NewHeaders()}

	path, query := target, ""
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		path, query = target[:idx], target[idx+1:]
	}
	req.Path = path
	req.Query = query

	if err := parseHeaderBlock(f, req.Headers, limits); err != nil {
		return nil, err
	}

	return req, nil
}

// parseHeaderBlock reads "Key: Value" lines until an empty line,
// enforcing limits exactly as spec §4.5 specifies.
func parseHeaderBlock(f stream.Filler, headers *Headers, limits Limits) error {
	count := 0
	for {
		line, err := readLine(f, limits.MaxKeyLength+limits.MaxValueLength+4)
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return errBadRequest("malformed header line")
		}
		key := strings.TrimSpace(string(line[:colon]))
		value := strings.TrimSpace(string(line[colon+1:]))

		if limits.MaxKeyLength > 0 && len(key) > limits.MaxKeyLength {
			return errHeaderTooLarge("header key too long")
		}
		if limits.MaxValueLength > 0 && len(value) > limits.MaxValueLength {
			return errHeaderTooLarge("header value too long")
		}

		count++
		if limits.MaxHeaderCount > 0 && count > limits.MaxHeaderCount {
			return errHeaderTooLarge("too many headers")
		}

		headers.Set(key, value)
	}
}

// ParseCGIHeaders parses a CGI-style header block (no request/status
// line) off f, stopping at the empty-line terminator, per spec §4.9.
func ParseCGIHeaders(f stream.Filler, limits Limits) (*Headers, error) {
	headers := NewHeaders()
	if err := parseHeaderBlock(f, headers, limits); err != nil {
		return nil, err
	}
	return headers, nil
}

// Response is a parsed or to-be-serialized HTTP response status line
// plus headers.
type Response struct {
	Code    int
	Reason  string
	Headers *Headers
}

// ParseResponse parses a status line and headers off f, used by the
// proxy handler to read the upstream's response (spec §4.10).
func ParseResponse(f stream.Filler, limits Limits) (*Response, error) {
	line, err := readLine(f, limits.MaxKeyLength+limits.MaxValueLength+64)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return nil, errBadRequest("malformed status line")
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errBadRequest("malformed status code")
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	resp := &Response{Code: code, Reason: reason, Headers: NewHeaders()}
	if err := parseHeaderBlock(f, resp.Headers, limits); err != nil {
		return nil, err
	}
	return resp, nil
}
