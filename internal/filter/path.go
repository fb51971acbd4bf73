package filter

import (
	"strings"

	"github.com/wrknet/warpgate/internal/gwerr"
)

// NormalizePath resolves "." and ".." segments lexically, collapses
// duplicate slashes, and rejects any traversal above the root, per
// spec §4.6. The result always starts with "/".
func NormalizePath(path string) (string, error) {
	if path == "" || path[0] != '/' {
		return "", gwerr.New(gwerr.BadRequest, "filter.NormalizePath", "path must be absolute")
	}

	raw := strings.Split(path, "/")
	var stack []string
	for _, seg := range raw {
		switch seg {
		case "", ".":
			// skip empty (from collapsed slashes) and no-op segments
		case "..":
			if len(stack) == 0 {
				return "", gwerr.New(gwerr.BadRequest, "filter.NormalizePath", "path traversal above root")
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}

	if len(stack) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(stack, "/"), nil
}

// Segments splits an already-normalized absolute path into its
// non-empty components.
func Segments(normalized string) []string {
	trimmed := strings.Trim(normalized, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
