package handler

import (
	"strings"
	"testing"

	"github.com/wrknet/warpgate/internal/filter"
)

func TestRedirectAppendsResidualPathToLocation(t *testing.T) {
	buf, writer := newTestWriter()
	ctx := &Context{Writer: writer, ResidualSegments: []string{"x"}}
	h := &filter.Handler{Kind: filter.HandlerRedirect, RedirectCode: 301, RedirectLocation: "/v2/api"}

	if err := Redirect(ctx, h); err != nil {
		t.Fatalf("Redirect: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "HTTP/1.1 301") {
		t.Fatalf("expected 301 status line, got %q", got)
	}
	if !strings.Contains(got, "Location: /v2/api/x\r\n") {
		t.Fatalf("expected Location header with residual path, got %q", got)
	}
}
