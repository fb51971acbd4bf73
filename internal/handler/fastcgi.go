package handler

import (
	"context"
	"io"
	"net"

	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/fastcgi"
	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/stream"
)

// FastCGI iterates h's try-files candidates, opening a FastCGI 1.0
// connection to h's upstream per candidate and driving the same
// Start -> Spawn -> (BodyPump || HeaderParse) -> Decide -> Drain ->
// End state machine CGI uses, over the multiplexed wire protocol
// instead of pipes.
func FastCGI(ctx *Context, h *filter.Handler) error {
	candidates := BackendTryFiles(h.Root, h.TryFiles)

	for i, candidate := range candidates {
		isLast := i == len(candidates)-1
		outcome, err := runFastCGIAttempt(ctx, h, candidate, isLast)
		if err != nil {
			return ioErr("handler.FastCGI", err)
		}
		if outcome.forwarded {
			return nil
		}
	}

	return notFound("handler.FastCGI", "no try-files candidate served the request")
}

const fastCGIRequestID = 1

func runFastCGIAttempt(ctx *Context, h *filter.Handler, scriptPath string, isLast bool) (cgiOutcome, error) {
	network := h.UpstreamNetwork
	if network == "" {
		network = "tcp"
	}
	conn, err := net.Dial(network, h.UpstreamAddress)
	if err != nil {
		return cgiOutcome{}, err
	}
	defer conn.Close()

	client := fastcgi.NewClient(conn, fastCGIRequestID)
	if err := client.BeginRequest(); err != nil {
		return cgiOutcome{}, err
	}
	if err := client.WriteParams(CGIParams(ctx, scriptPath, ctx.Request.Path)); err != nil {
		return cgiOutcome{}, err
	}

	demuxTask := async.Schedule(ctx.Executor, func() (fastcgi.EndRequest, error) {
		return client.Demux()
	})

	bodyTask := async.Schedule(ctx.Executor, func() (struct{}, error) {
		stdin := client.StdinWriter()
		out := stream.NewOutputBuffer(stdin, 0)
		if _, err := stream.Pipe(ctx.Body, out); err != nil {
			return struct{}{}, err
		}
		if err := out.Flush(); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, stdin.Close()
	})

	respTask := async.Schedule(ctx.Executor, func() (cgiOutcome, error) {
		return decodeCGIResponse(ctx, stream.NewInputBuffer(client.Stdout(), 0), isLast)
	})

	if _, err := bodyTask.Wait(context.Background()); err != nil {
		return cgiOutcome{}, err
	}
	outcome, err := respTask.Wait(context.Background())
	if err != nil {
		return cgiOutcome{}, err
	}
	if _, err := demuxTask.Wait(context.Background()); err != nil {
		return cgiOutcome{}, err
	}

	// Restores the original implementation's poll() drain loop (see
	// SPEC_FULL.md's SUPPLEMENTED FEATURES): consume any stray frames
	// racing END_REQUEST, forwarding stderr content to the logger.
	if err := client.Drain(func(msg string) {
		if ctx.Logger != nil {
			ctx.Logger.Warn("fastcgi stderr: %s", msg)
		}
	}); err != nil && err != io.EOF {
		return cgiOutcome{}, err
	}

	return outcome, nil
}
