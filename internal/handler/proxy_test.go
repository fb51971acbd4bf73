package handler

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/wrknet/warpgate/internal/async"
	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/stream"
)

// echoUpstream accepts one connection, reads the request line and
// headers, then echoes the request body back as the response body —
// scenario 5 of the end-to-end properties.
func echoUpstream(t *testing.T, ln net.Listener) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	contentLength := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(trimmed), "content-length:") {
			parts := strings.SplitN(trimmed, ":", 2)
			n := 0
			for _, c := range strings.TrimSpace(parts[1]) {
				n = n*10 + int(c-'0')
			}
			contentLength = n
		}
	}

	body := make([]byte, contentLength)
	if contentLength > 0 {
		if _, err := r.Read(body); err != nil {
			return
		}
	}

	resp := "HTTP/1.1 200 OK\r\nContent-Length: " + itoa(len(body)) + "\r\n\r\n"
	conn.Write([]byte(resp))
	conn.Write(body)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func TestProxyRelaysBodyRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go echoUpstream(t, ln)

	pool := async.NewThreadPoolExecutor(2)
	defer pool.Close()

	bodyContent := "hello"
	headers := httpmsg.NewHeaders()
	headers.Set("Content-Length", itoa(len(bodyContent)))

	buf, writer := newTestWriter()
	ctx := &Context{
		Executor: pool,
		Request:  &httpmsg.Request{Method: "POST", Target: "/x", Version: "HTTP/1.1", Headers: headers},
		Body:     stream.NewLimitedReader(stream.NewInputBuffer(strings.NewReader(bodyContent), 0), int64(len(bodyContent))),
		Writer:   writer,
	}
	h := &filter.Handler{Kind: filter.HandlerProxy, UpstreamNetwork: "tcp", UpstreamAddress: ln.Addr().String()}

	if err := Proxy(ctx, h); err != nil {
		t.Fatalf("Proxy: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "HTTP/1.1 200") {
		t.Fatalf("expected 200 status line, got %q", got)
	}
	if !strings.HasSuffix(got, bodyContent) {
		t.Fatalf("expected body %q, got %q", bodyContent, got)
	}
}
