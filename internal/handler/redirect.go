package handler

import (
	"path"

	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/stream"
)

// Redirect sends h.RedirectCode with a Location header computed from
// h.RedirectLocation concatenated with the residual path, per spec
// §4.11.
func Redirect(ctx *Context, h *filter.Handler) error {
	location := h.RedirectLocation
	if len(ctx.ResidualSegments) > 0 {
		location = path.Join(location, path.Join(ctx.ResidualSegments...))
	}

	resp := httpmsg.NewResponse(h.RedirectCode)
	resp.Headers.Set("Location", location)
	out, err := ctx.Writer.Send(resp)
	if err != nil {
		return ioErr("handler.Redirect", err)
	}
	if ob, ok := out.(*stream.OutputBuffer); ok {
		return ioErr("handler.Redirect", ob.Flush())
	}
	return nil
}
