package filter

import "testing"

func buildTestTree(t *testing.T) *Node {
	t.Helper()
	spec := NodeSpec{
		Children: []NodeSpec{
			{
				PathPrefix: "/",
				Handler:    &Handler{Kind: HandlerStatic, Root: "/var/www", TryFiles: []string{"index.html"}},
			},
			{
				PathPrefix: "/api",
				Handler:    &Handler{Kind: HandlerRedirect, RedirectCode: 301, RedirectLocation: "/v2/api"},
				Children: []NodeSpec{
					{
						PathPrefix: "/internal",
						Methods:    []string{"POST"},
						Handler:    &Handler{Kind: HandlerProxy, UpstreamNetwork: "tcp", UpstreamAddress: "127.0.0.1:9000"},
					},
				},
			},
		},
	}
	root, err := Build(spec)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return root
}

func TestMatchFilterPrecedence(t *testing.T) {
	root := buildTestTree(t)

	path, err := NormalizePath("/api/x")
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	m := Match(root, "", path, "GET")
	if m == nil || m.Handler == nil || m.Handler.Kind != HandlerRedirect {
		t.Fatalf("expected redirect match, got %+v", m)
	}

	residual := ResidualSegments(m, path)
	if len(residual) != 1 || residual[0] != "x" {
		t.Errorf("expected residual [x], got %v", residual)
	}
}

func TestMatchDeepestWins(t *testing.T) {
	root := buildTestTree(t)

	path, err := NormalizePath("/api/internal")
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	m := Match(root, "", path, "POST")
	if m == nil || m.Handler == nil || m.Handler.Kind != HandlerProxy {
		t.Fatalf("expected proxy match (deepest), got %+v", m)
	}
}

func TestMatchMethodMismatchFallsBackToParent(t *testing.T) {
	root := buildTestTree(t)

	path, err := NormalizePath("/api/internal")
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	// GET doesn't satisfy the /api/internal node's POST-only method set,
	// so the match should fall back to the shallower /api redirect node.
	m := Match(root, "", path, "GET")
	if m == nil || m.Handler == nil || m.Handler.Kind != HandlerRedirect {
		t.Fatalf("expected redirect fallback, got %+v", m)
	}
}

func TestMatchOtherPathFallsBackToStatic(t *testing.T) {
	root := buildTestTree(t)

	path, err := NormalizePath("/other")
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	m := Match(root, "", path, "GET")
	if m == nil || m.Handler == nil || m.Handler.Kind != HandlerStatic {
		t.Fatalf("expected static match, got %+v", m)
	}
}

func TestNormalizePathRejectsTraversalAboveRoot(t *testing.T) {
	if _, err := NormalizePath("/../escape"); err == nil {
		t.Fatal("expected error for traversal above root")
	}
}

func TestNormalizePathCollapsesAndResolves(t *testing.T) {
	got, err := NormalizePath("/a//b/./c/../d")
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	if want := "/a/b/d"; got != want {
		t.Errorf("NormalizePath = %q, want %q", got, want)
	}
}

func TestNormalizeServerNameLowercases(t *testing.T) {
	got, err := NormalizeServerName("Example.COM")
	if err != nil {
		t.Fatalf("NormalizeServerName: %v", err)
	}
	if got != "example.com" {
		t.Errorf("got %q", got)
	}
}
