package handler

import (
	"os"

	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/stream"
)

// notFoundBody is served for a static miss. Per spec §9's Open
// Question resolution, this substitutes a local error body for the
// original's external-service fetch (see DESIGN.md).
const notFoundBody = "404 Not Found\n"

// Static serves the first opening candidate from h.TryFiles (resolved
// against h.Root and the request's residual path) with status 200,
// or a local 404 body if none open, per spec §4.8.
func Static(ctx *Context, h *filter.Handler) error {
	candidates := StaticTryFiles(h.Root, ctx.ResidualSegments, h.TryFiles)

	for _, candidate := range candidates {
		f, err := os.Open(candidate)
		if err != nil {
			continue
		}

		in := stream.NewInputBuffer(f, 0)
		resp := httpmsg.NewResponse(200)
		resp.Headers.Set("Content-Type", "application/octet-stream")
		out, err := ctx.Writer.Send(resp)
		if err != nil {
			f.Close()
			return ioErr("handler.Static", err)
		}
		_, err = stream.Pipe(in, out)
		f.Close()
		if err != nil {
			return ioErr("handler.Static", err)
		}
		if ob, ok := out.(*stream.OutputBuffer); ok {
			return ioErr("handler.Static", ob.Flush())
		}
		return nil
	}

	resp := httpmsg.NewResponse(404)
	resp.Headers.Set("Content-Type", "text/plain")
	out, err := ctx.Writer.Send(resp)
	if err != nil {
		return ioErr("handler.Static", err)
	}
	if _, err := out.Write([]byte(notFoundBody)); err != nil {
		return ioErr("handler.Static", err)
	}
	if ob, ok := out.(*stream.OutputBuffer); ok {
		return ioErr("handler.Static", ob.Flush())
	}
	return nil
}
