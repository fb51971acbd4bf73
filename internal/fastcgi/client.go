package fastcgi

import (
	"encoding/binary"
	"io"
)

// EndRequest is the decoded body of an END_REQUEST record.
type EndRequest struct {
	AppStatus      uint32
	ProtocolStatus byte
}

func decodeEndRequest(body []byte) EndRequest {
	var e EndRequest
	if len(body) >= 5 {
		e.AppStatus = binary.BigEndian.Uint32(body[:4])
		e.ProtocolStatus = body[4]
	}
	return e
}

func encodeBeginRequest(role byte, keepConn bool) []byte {
	body := make([]byte, 8)
	binary.BigEndian.PutUint16(body[0:2], uint16(role))
	if keepConn {
		body[2] = 1
	}
	return body
}

// Client drives one FastCGI request over conn: BEGIN_REQUEST, a
// PARAMS stream, a STDIN stream, and the demultiplexed STDOUT/STDERR
// response streams, per spec §4.9/§6.
type Client struct {
	conn      io.ReadWriter
	requestID uint16

	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	end chan EndRequest
}

// NewClient wraps conn (already connected to the FastCGI backend) for
// one request identified by requestID.
func NewClient(conn io.ReadWriter, requestID uint16) *Client {
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	return &Client{
		conn:      conn,
		requestID: requestID,
		stdoutR:   stdoutR,
		stdoutW:   stdoutW,
		stderrR:   stderrR,
		stderrW:   stderrW,
		end:       make(chan EndRequest, 1),
	}
}

// Stdout is the backend's demultiplexed STDOUT stream, readable as the
// records forwarded by Demux arrive.
func (c *Client) Stdout() io.Reader { return c.stdoutR }

// Stderr is the backend's demultiplexed STDERR stream.
func (c *Client) Stderr() io.Reader { return c.stderrR }

// BeginRequest sends the BEGIN_REQUEST record, selecting the responder
// role (the only role this gateway uses) and not requesting the
// backend keep the connection open past this request.
func (c *Client) BeginRequest() error {
	return WriteRecord(c.conn, TypeBeginRequest, c.requestID, encodeBeginRequest(RoleResponder, false))
}

// WriteParams sends env as a complete, terminated PARAMS stream.
func (c *Client) WriteParams(env []Param) error {
	return WriteStream(c.conn, TypeParams, c.requestID, EncodeParams(env))
}

// StdinWriter returns a stream the body-pump task copies the request
// body into; Close sends the empty STDIN terminator record.
func (c *Client) StdinWriter() io.WriteCloser {
	return &stdinWriter{c: c}
}

type stdinWriter struct{ c *Client }

func (s *stdinWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		n := len(p)
		if n > maxContentLen {
			n = maxContentLen
		}
		if err := WriteRecord(s.c.conn, TypeStdin, s.c.requestID, p[:n]); err != nil {
			return total - len(p), err
		}
		p = p[n:]
	}
	return total, nil
}

func (s *stdinWriter) Close() error {
	return WriteRecord(s.c.conn, TypeStdin, s.c.requestID, nil)
}

// Demux is the response task's read loop: it reads records off conn,
// forwarding STDOUT/STDERR content to their respective streams until
// each direction's empty terminator record arrives, and returns once
// END_REQUEST is observed. The caller must still call Drain afterward
// to consume any stray frames (e.g. a STDERR record racing
// END_REQUEST), per the original implementation's poll loop.
func (c *Client) Demux() (EndRequest, error) {
	for {
		hdr, body, err := ReadRecord(c.conn)
		if err != nil {
			c.stdoutW.CloseWithError(err)
			c.stderrW.CloseWithError(err)
			return EndRequest{}, err
		}
		if hdr.RequestID != c.requestID {
			continue
		}

		switch hdr.Type {
		case TypeStdout:
			if len(body) == 0 {
				c.stdoutW.Close()
				continue
			}
			if _, err := c.stdoutW.Write(body); err != nil {
				return EndRequest{}, err
			}
		case TypeStderr:
			if len(body) == 0 {
				c.stderrW.Close()
				continue
			}
			if _, err := c.stderrW.Write(body); err != nil {
				return EndRequest{}, err
			}
		case TypeEndRequest:
			end := decodeEndRequest(body)
			c.stdoutW.Close()
			c.stderrW.Close()
			return end, nil
		}
	}
}

// Drain reads and discards any records remaining on conn after Demux
// has returned, forwarding STDERR content to onStderr (e.g. the
// gateway's Warn-level logger), until the backend closes the
// connection. This restores the original implementation's poll()
// drain loop, which the spec's distillation omitted.
func (c *Client) Drain(onStderr func(string)) error {
	for {
		hdr, body, err := ReadRecord(c.conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if hdr.Type == TypeStderr && len(body) > 0 && onStderr != nil {
			onStderr(string(body))
		}
	}
}
