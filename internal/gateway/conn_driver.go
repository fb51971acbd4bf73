package gateway

import (
	"crypto/tls"
	"net"
	"strings"

	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/gwerr"
	"github.com/wrknet/warpgate/internal/handler"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/stream"
)

// handleConnection runs the parse/match/dispatch sequence described in
// spec §2 exactly once per connection: no keep-alive loop. conn is
// closed on return regardless of outcome.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	in := stream.NewInputBuffer(conn, 0)
	out := stream.NewOutputBuffer(conn, 0)
	writer := httpmsg.NewResponseWriter(out)

	if err := s.serveOne(conn, in, writer); err != nil {
		s.respondError(writer, err)
	}
	out.Flush()
}

func (s *Server) serveOne(conn net.Conn, in *stream.InputBuffer, writer *httpmsg.ResponseWriter) error {
	serverName, err := connServerName(conn)
	if err != nil {
		return err
	}

	req, err := httpmsg.ParseRequest(in, s.Limits)
	if err != nil {
		return err
	}

	if !req.OriginForm() {
		return gwerr.New(gwerr.BadRequest, "gateway.serveOne", "request-target is not origin-form")
	}

	if serverName == "" {
		if host, ok := req.Headers.Get("Host"); ok {
			serverName, err = filter.NormalizeServerName(stripPort(host))
			if err != nil {
				return err
			}
		}
	}

	normalizedPath, err := filter.NormalizePath(req.Path)
	if err != nil {
		return err
	}

	node := filter.Match(s.Root(), serverName, normalizedPath, req.Method)
	if node == nil || node.Handler == nil {
		return gwerr.New(gwerr.NotFound, "gateway.serveOne", "no filter matched the request")
	}

	contentLength, err := req.ContentLength()
	if err != nil {
		return err
	}
	body := stream.NewLimitedReader(in, contentLength)
	req.Body = body

	ctx := &handler.Context{
		Executor:         s.Executor,
		Logger:           s.Logger,
		Request:          req,
		Body:             body,
		Writer:           writer,
		ResidualSegments: filter.ResidualSegments(node, normalizedPath),
	}

	return handler.Handle(ctx, node.Handler)
}

// connServerName reports the TLS SNI server name of conn, or "" for a
// plain TCP connection. The handshake is driven explicitly here since
// ConnectionState().ServerName is only populated once it completes.
func connServerName(conn net.Conn) (string, error) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return "", nil
	}
	if err := tlsConn.Handshake(); err != nil {
		return "", gwerr.Wrap(gwerr.IO, "gateway.connServerName", err)
	}
	return filter.NormalizeServerName(tlsConn.ConnectionState().ServerName)
}

func stripPort(host string) string {
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 && !strings.Contains(host[idx+1:], "]") {
		return host[:idx]
	}
	return host
}

// respondError maps err to the response code table of spec §7 and
// emits it if the handler's writer has not already sent a response;
// otherwise the error is only logged, since the client has already
// received a status line it can't be walked back from. Per the
// table, Timeout and Io propagate to a closed connection with no
// response of their own, and InvalidArgument marks a programming
// error rather than something to answer to the client at all.
func (s *Server) respondError(writer *httpmsg.ResponseWriter, err error) {
	kind := gwerr.KindOf(err)

	if kind == gwerr.InvalidArgument {
		s.Logger.Error("gateway: programming error: %v", err)
		return
	}
	if kind == gwerr.Timeout || kind == gwerr.IO {
		s.Logger.Warn("gateway: %v", err)
		return
	}

	if writer.Sent() {
		s.Logger.Error("gateway: error after response sent: %v", err)
		return
	}

	code := statusForError(kind)
	resp := httpmsg.NewResponse(code)
	resp.Headers.Set("Content-Length", "0")
	resp.Headers.Set("Connection", "close")
	if _, sendErr := writer.Send(resp); sendErr != nil {
		s.Logger.Error("gateway: failed to send error response: %v", sendErr)
	}
	if code >= 500 {
		s.Logger.Error("gateway: %v", err)
	} else {
		s.Logger.Warn("gateway: %v", err)
	}
}

func statusForError(kind gwerr.Kind) int {
	switch kind {
	case gwerr.BadRequest:
		return 400
	case gwerr.HeaderTooLarge:
		return 431
	case gwerr.NotFound:
		return 404
	default:
		return 500
	}
}
