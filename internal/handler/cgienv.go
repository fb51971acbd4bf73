package handler

import (
	"strconv"
	"strings"

	"github.com/wrknet/warpgate/internal/fastcgi"
)

// CGIParams builds the CGI/FastCGI environment for one try-files
// candidate, per spec §6's environment table.
func CGIParams(ctx *Context, scriptPath, uriPath string) []fastcgi.Param {
	params := []fastcgi.Param{
		{Name: "REQUEST_METHOD", Value: ctx.Request.Method},
		{Name: "SCRIPT_FILENAME", Value: scriptPath},
		{Name: "PATH_INFO", Value: uriPath},
		{Name: "REDIRECT_STATUS", Value: "200"},
	}

	if ctx.Request.Query != "" {
		params = append(params, fastcgi.Param{Name: "QUERY_STRING", Value: ctx.Request.Query})
	}
	if v, ok := ctx.Request.Headers.Get("Content-Length"); ok {
		params = append(params, fastcgi.Param{Name: "CONTENT_LENGTH", Value: v})
	}
	if v, ok := ctx.Request.Headers.Get("Content-Type"); ok {
		params = append(params, fastcgi.Param{Name: "CONTENT_TYPE", Value: v})
	}

	ctx.Request.Headers.Each(func(key, value string) {
		params = append(params, fastcgi.Param{Name: httpEnvName(key), Value: value})
	})

	return params
}

// CGIEnviron renders params as "KEY=VALUE" strings suitable for
// exec.Cmd.Env, for the CGI (forked subprocess) backend.
func CGIEnviron(params []fastcgi.Param) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Name+"="+p.Value)
	}
	return out
}

func httpEnvName(key string) string {
	var b strings.Builder
	b.WriteString("HTTP_")
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '-' {
			b.WriteByte('_')
		} else if c >= 'a' && c <= 'z' {
			b.WriteByte(c - ('a' - 'A'))
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// statusCode parses the leading 3-digit code from a CGI "Status:"
// header value ("200 OK" -> 200), defaulting to 200 when absent or
// malformed, per spec §4.9.
func statusCode(status string) int {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return 200
	}
	n, err := strconv.Atoi(status[:3])
	if err != nil {
		return 200
	}
	return n
}
