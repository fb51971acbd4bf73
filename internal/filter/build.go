package filter

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/wrknet/warpgate/internal/gwerr"
)

// NodeSpec is the config-shaped description of one filter node, decoded
// from YAML by the config package and handed to Build. It exists so
// internal/filter has no dependency on internal/config (config depends
// on filter, not the reverse).
type NodeSpec struct {
	ServerNames []string
	PathPrefix  string // e.g. "/api/v2"; "" or "/" contributes no segments
	Methods     []string
	Handler     *Handler
	Children    []NodeSpec
}

var idnaProfile = idna.New(idna.MapForLookup(), idna.BidiRule())

// NormalizeServerName lower-cases and idna-normalizes a server name so
// it can be compared against a Node's ServerNames set; an empty input
// normalizes to "".
func NormalizeServerName(name string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", nil
	}
	normalized, err := idnaProfile.ToASCII(lower)
	if err != nil {
		return "", gwerr.Wrap(gwerr.InvalidArgument, "filter.Build", err)
	}
	return normalized, nil
}

func splitSegments(prefix string) []string {
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Build compiles a NodeSpec tree (as decoded from configuration) into a
// matchable *Node tree, normalizing server names via idna and computing
// MatchCount along the way.
func Build(spec NodeSpec) (*Node, error) {
	return buildNode(spec, 0)
}

func buildNode(spec NodeSpec, inherited int) (*Node, error) {
	names := make(map[string]struct{}, len(spec.ServerNames))
	for _, raw := range spec.ServerNames {
		n, err := NormalizeServerName(raw)
		if err != nil {
			return nil, err
		}
		if n != "" {
			names[n] = struct{}{}
		}
	}
	if len(names) == 0 {
		names = nil
	}

	segments := splitSegments(spec.PathPrefix)
	node := &Node{
		ServerNames: names,
		Segments:    segments,
		Methods:     stringSet(spec.Methods),
		Handler:     spec.Handler,
		MatchCount:  inherited + len(segments),
	}

	for _, childSpec := range spec.Children {
		child, err := buildNode(childSpec, node.MatchCount)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	return node, nil
}
