package handler

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/httpmsg"
	"github.com/wrknet/warpgate/internal/stream"
)

func newTestWriter() (*bytes.Buffer, *httpmsg.ResponseWriter) {
	var buf bytes.Buffer
	out := stream.NewOutputBuffer(&buf, 256)
	return &buf, httpmsg.NewResponseWriter(out)
}

func TestStaticServesIndexFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	buf, writer := newTestWriter()
	ctx := &Context{Writer: writer}
	h := &filter.Handler{Kind: filter.HandlerStatic, Root: dir, TryFiles: []string{"index.html"}}

	if err := Static(ctx, h); err != nil {
		t.Fatalf("Static: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "HTTP/1.1 200") {
		t.Fatalf("expected 200 status line, got %q", got)
	}
	if !strings.Contains(got, "hello world") {
		t.Fatalf("expected file contents in response, got %q", got)
	}
}

func TestStaticServes404OnMiss(t *testing.T) {
	dir := t.TempDir()

	buf, writer := newTestWriter()
	ctx := &Context{Writer: writer, ResidualSegments: []string{"missing.txt"}}
	h := &filter.Handler{Kind: filter.HandlerStatic, Root: dir, TryFiles: []string{"index.html"}}

	if err := Static(ctx, h); err != nil {
		t.Fatalf("Static: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "HTTP/1.1 404") {
		t.Fatalf("expected 404 status line, got %q", got)
	}
}
