package handler

import (
	"context"
	"io"
	"os/exec"

	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/stream"
)

// cgiOutcome is the result of one try-files attempt's response task:
// whether the response was forwarded to the client (Forward) or
// discarded so the caller can retry the next candidate (Fallback).
type cgiOutcome struct {
	forwarded bool
}

// CGI iterates h's try-files candidates, running h.CGIPath as a forked
// subprocess per candidate and driving the state machine of spec
// §4.9: Start -> Spawn -> (BodyPump || HeaderParse) -> Decide ->
// Drain -> End.
//
// Per the §9 Design Note, the subprocess exit wait runs as a Task on
// ctx.Executor rather than blocking whatever goroutine drives the
// event loop — the loop itself never learns about child processes.
func CGI(ctx *Context, h *filter.Handler) error {
	candidates := BackendTryFiles(h.Root, h.TryFiles)

	for i, candidate := range candidates {
		isLast := i == len(candidates)-1
		outcome, err := runCGIAttempt(ctx, h, candidate, isLast)
		if err != nil {
			return ioErr("handler.CGI", err)
		}
		if outcome.forwarded {
			return nil
		}
	}

	return notFound("handler.CGI", "no try-files candidate served the request")
}

func runCGIAttempt(ctx *Context, h *filter.Handler, scriptPath string, isLast bool) (cgiOutcome, error) {
	args := append(append([]string{}, h.CGIArgs...), scriptPath)
	cmd := exec.Command(h.CGIPath, args...)
	cmd.Env = CGIEnviron(CGIParams(ctx, scriptPath, ctx.Request.Path))

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return cgiOutcome{}, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return cgiOutcome{}, err
	}
	if err := cmd.Start(); err != nil {
		return cgiOutcome{}, err
	}

	bodyTask := async.Schedule(ctx.Executor, func() (struct{}, error) {
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
		return decodeCGIResponse(ctx, stream.NewInputBuffer(stdout, 0), isLast)
	})

	if _, err := bodyTask.Wait(context.Background()); err != nil {
		return cgiOutcome{}, err
	}
	outcome, err := respTask.Wait(context.Background())
	if err != nil {
		return cgiOutcome{}, err
	}

	// cmd.Wait closes the stdout pipe, so it is scheduled only once
	// respTask has finished reading from it.
	waitTask := async.Schedule(ctx.Executor, func() (struct{}, error) {
		return struct{}{}, cmd.Wait()
	})
	if _, err := waitTask.Wait(context.Background()); err != nil {
		return cgiOutcome{}, err
	}
	return outcome, nil
}

// decodeCGIResponse parses the CGI-style header block off in, derives
// the status code from "Status:", and either forwards the response
// (consuming ctx.Writer) or drains the remaining body and reports a
// fallback so the caller retries the next candidate, per spec §4.9's
// DecideForward/Fallback transition.
func decodeCGIResponse(ctx *Context, in *stream.InputBuffer, isLast bool) (cgiOutcome, error) {
	headers, err := httpmsg.ParseCGIHeaders(in, httpmsg.DefaultLimits)
	if err != nil {
		return cgiOutcome{}, err
	}

	code := 200
	if status, ok := headers.Get("Status"); ok {
		code = statusCode(status)
	}

	if code != 404 || isLast {
		resp := httpmsg.NewResponse(code)
		if loc, ok := headers.Get("Location"); ok {
			resp.Headers.Set("Location", loc)
		}
		if ct, ok := headers.Get("Content-Type"); ok {
			resp.Headers.Set("Content-Type", ct)
		}

		out, err := ctx.Writer.Send(resp)
		if err != nil {
			return cgiOutcome{}, err
		}
		if _, err := stream.Pipe(in, out); err != nil {
			return cgiOutcome{}, err
		}
		if ob, ok := out.(*stream.OutputBuffer); ok {
			if err := ob.Flush(); err != nil {
				return cgiOutcome{}, err
			}
		}
		return cgiOutcome{forwarded: true}, nil
	}

	// Fallback: drain this candidate's remaining stdout (through in, so
	// bytes already buffered from the header read aren't lost) so the
	// process exits cleanly, then retry the next candidate with
	// ctx.Writer untouched.
	if _, err := stream.Pipe(in, io.Discard); err != nil {
		return cgiOutcome{}, err
	}
	return cgiOutcome{}, nil
}
