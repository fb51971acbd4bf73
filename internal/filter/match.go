package filter

// Match walks the tree depth-first from root and returns the deepest
// node matching serverName (already-normalized Host/SNI), normalized
// path, and method, per spec §4.6. A matching child is preferred over
// its parent even when its prefix adds no segments (e.g. "/"); among
// matching siblings the first in declaration order wins unless a later
// one consumes more segments. It returns nil if root itself does not
// match (e.g. a method or server-name mismatch at the top level).
//
// path must already be normalized (see NormalizePath); serverName
// should already be normalized (see NormalizeServerName).
func Match(root *Node, serverName, path, method string) *Node {
	segs := Segments(path)
	return matchFrom(root, segs, serverName, method)
}

func matchFrom(node *Node, segs []string, serverName, method string) *Node {
	if !nodeMatches(node, segs, serverName, method) {
		return nil
	}

	best := node
	for _, child := range node.Children {
		m := matchFrom(child, segs, serverName, method)
		if m == nil {
			continue
		}
		// The first matching child always wins over node itself, even
		// when it adds no segments; a later sibling replaces it only by
		// consuming strictly more segments.
		if best == node || m.MatchCount > best.MatchCount {
			best = m
		}
	}
	return best
}

func nodeMatches(node *Node, segs []string, serverName, method string) bool {
	if len(node.ServerNames) > 0 {
		if _, ok := node.ServerNames[serverName]; !ok {
			return false
		}
	}

	start := node.MatchCount - len(node.Segments)
	if start < 0 || start+len(node.Segments) > len(segs) {
		return false
	}
	for i, want := range node.Segments {
		if segs[start+i] != want {
			return false
		}
	}

	if len(node.Methods) > 0 {
		if _, ok := node.Methods[method]; !ok {
			return false
		}
	}

	return true
}

// ResidualSegments returns the path segments of segs after the
// node's MatchCount, i.e. the portion of the path not yet consumed by
// any filter — what try-files and CGI PATH_INFO computations need.
func ResidualSegments(node *Node, path string) []string {
	segs := Segments(path)
	if node.MatchCount >= len(segs) {
		return nil
	}
	return segs[node.MatchCount:]
}
