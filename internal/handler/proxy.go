package handler

import (
	"context"
	"net"

	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/stream"
)

type closeWriter interface {
	CloseWrite() error
}

// Proxy opens a TCP connection to h's upstream and, in parallel, pipes
// the inbound body upstream (shutting down the write side when done)
// while parsing the upstream's response and relaying it to the
// client, per spec §4.10.
func Proxy(ctx *Context, h *filter.Handler) error {
	network := h.UpstreamNetwork
	if network == "" {
		network = "tcp"
	}
	conn, err := net.Dial(network, h.UpstreamAddress)
	if err != nil {
		return ioErr("handler.Proxy", err)
	}
	defer conn.Close()

	upstreamOut := stream.NewOutputBuffer(conn, 0)
	req := &httpmsg.Request{
		Method:  ctx.Request.Method,
		Target:  ctx.Request.Target,
		Version: ctx.Request.Version,
		Headers: ctx.Request.Headers,
	}
	if err := httpmsg.WriteRequest(upstreamOut, req); err != nil {
		return ioErr("handler.Proxy", err)
	}
	if err := upstreamOut.Flush(); err != nil {
		return ioErr("handler.Proxy", err)
	}

	bodyTask := async.Schedule(ctx.Executor, func() (struct{}, error) {
		if _, err := stream.Pipe(ctx.Body, upstreamOut); err != nil {
			return struct{}{}, err
		}
		if err := upstreamOut.Flush(); err != nil {
			return struct{}{}, err
		}
		if cw, ok := conn.(closeWriter); ok {
			return struct{}{}, cw.CloseWrite()
		}
		return struct{}{}, nil
	})

	respTask := async.Schedule(ctx.Executor, func() (struct{}, error) {
		upstreamIn := stream.NewInputBuffer(conn, 0)
		upstreamResp, err := httpmsg.ParseResponse(upstreamIn, httpmsg.DefaultLimits)
		if err != nil {
			return struct{}{}, err
		}

		resp := &httpmsg.Response{Code: upstreamResp.Code, Reason: upstreamResp.Reason, Headers: upstreamResp.Headers}
		out, err := ctx.Writer.Send(resp)
		if err != nil {
			return struct{}{}, err
		}
		if _, err := stream.Pipe(upstreamIn, out); err != nil {
			return struct{}{}, err
		}
		if ob, ok := out.(*stream.OutputBuffer); ok {
			return struct{}{}, ob.Flush()
		}
		return struct{}{}, nil
	})

	if _, err := bodyTask.Wait(context.Background()); err != nil {
		return ioErr("handler.Proxy", err)
	}
	if _, err := respTask.Wait(context.Background()); err != nil {
		return ioErr("handler.Proxy", err)
	}
	return nil
}
