package handler

import (
	"testing"

	"github.com/wrknet/warpgate/internal/httpmsg"
)

func newTestContext(method, target, query string) *Context {
	headers := httpmsg.NewHeaders()
	headers.Set("Content-Type", "text/plain")
	headers.Set("X-Custom", "value")
	return &Context{
		Request: &httpmsg.Request{Method: method, Target: target, Path: target, Query: query, Headers: headers},
	}
}

func TestCGIParamsIncludesRequiredFields(t *testing.T) {
	ctx := newTestContext("GET", "/app.php", "a=1")
	params := CGIParams(ctx, "/srv/app.php", "/app.php")

	byName := make(map[string]string, len(params))
	for _, p := range params {
		byName[p.Name] = p.Value
	}

	if byName["REQUEST_METHOD"] != "GET" {
		t.Errorf("REQUEST_METHOD = %q", byName["REQUEST_METHOD"])
	}
	if byName["SCRIPT_FILENAME"] != "/srv/app.php" {
		t.Errorf("SCRIPT_FILENAME = %q", byName["SCRIPT_FILENAME"])
	}
	if byName["PATH_INFO"] != "/app.php" {
		t.Errorf("PATH_INFO = %q", byName["PATH_INFO"])
	}
	if byName["REDIRECT_STATUS"] != "200" {
		t.Errorf("REDIRECT_STATUS = %q", byName["REDIRECT_STATUS"])
	}
	if byName["QUERY_STRING"] != "a=1" {
		t.Errorf("QUERY_STRING = %q", byName["QUERY_STRING"])
	}
	if byName["HTTP_X_CUSTOM"] != "value" {
		t.Errorf("HTTP_X_CUSTOM = %q", byName["HTTP_X_CUSTOM"])
	}
}

func TestStatusCodeParsesLeadingDigits(t *testing.T) {
	cases := map[string]int{
		"200 OK":      200,
		"404":         404,
		"404 Missing": 404,
		"":            200,
		"bogus":       200,
	}
	for in, want := range cases {
		if got := statusCode(in); got != want {
			t.Errorf("statusCode(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestHTTPEnvName(t *testing.T) {
	if got := httpEnvName("X-Forwarded-For"); got != "HTTP_X_FORWARDED_FOR" {
		t.Errorf("got %q", got)
	}
}
