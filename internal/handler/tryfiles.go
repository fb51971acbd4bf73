package handler

import "path"

// StaticTryFiles builds the static handler's try-files candidate list,
// restoring the original implementation's root+index join (see
// SPEC_FULL.md's SUPPLEMENTED FEATURES) generalized to a configurable
// index slice: a residual path that resolves to nothing beyond the
// matched filter (a directory request) tries each configured index
// name under root; any other residual tries exactly the one literal
// path it names.
func StaticTryFiles(root string, residualSegments []string, index []string) []string {
	if len(residualSegments) == 0 {
		if len(index) == 0 {
			return []string{root}
		}
		out := make([]string, 0, len(index))
		for _, name := range index {
			out = append(out, path.Join(root, name))
		}
		return out
	}

	residual := path.Join(residualSegments...)
	return []string{path.Join(root, residual)}
}

// BackendTryFiles builds the CGI/FastCGI handler's try-files candidate
// list: each configured try-files entry resolved against root, tried
// in declaration order regardless of the residual path (PATH_INFO
// carries the full request URI path instead, per spec §6's environment
// table).
func BackendTryFiles(root string, tryFiles []string) []string {
	if len(tryFiles) == 0 {
		return []string{root}
	}
	out := make([]string, 0, len(tryFiles))
	for _, name := range tryFiles {
		out = append(out, path.Join(root, name))
	}
	return out
}
