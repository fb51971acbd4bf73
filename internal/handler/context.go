// Package handler implements the five backend handlers of spec
// §4.8–§4.11 — static, CGI, FastCGI, proxy, and redirect — dispatched
// by the connection driver once the filter tree has selected a node.
package handler

import (
	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/logging"
	"github.com/wrknet/warpgate/internal/stream"
)

// Context carries everything a handler needs beyond its own
// filter.Handler descriptor: the parsed request, its body stream
// (already wrapped in a stream.LimitedReader sized to Content-Length
// by the connection driver), the single-use response writer, the
// executor backend I/O tasks run on, and the residual path segments
// left after the matched filter's MatchCount.
type Context struct {
	Executor         async.Executor
	Logger           *logging.Logger
	Request          *httpmsg.Request
	Body             *stream.LimitedReader
	Writer           *httpmsg.ResponseWriter
	ResidualSegments []string
}

// Handle dispatches ctx to the backend handler named by h.Kind.
func Handle(ctx *Context, h *filter.Handler) error {
	switch h.Kind {
	case filter.HandlerStatic:
		return Static(ctx, h)
	case filter.HandlerCGI:
		return CGI(ctx, h)
	case filter.HandlerFastCGI:
		return FastCGI(ctx, h)
	case filter.HandlerProxy:
		return Proxy(ctx, h)
	case filter.HandlerRedirect:
		return Redirect(ctx, h)
	default:
		return notFound("handler.Handle", "filter node has no handler")
	}
}
