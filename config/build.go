package config

import (
	"crypto/tls"
	"fmt"
	"io"

	"github.com/wrknet/warpgate/internal/filter"
	"github.com/wrknet/warpgate/internal/gateway"
	"github.com/wrknet/warpgate/internal/logging"
)

// FilterTree compiles the decoded filter list into a matchable
// *filter.Node tree, wrapping the top-level entries under a synthetic
// root since filter.Build expects a single root NodeSpec.
func (c *Config) FilterTree() (*filter.Node, error) {
	spec := filter.NodeSpec{Children: toNodeSpecs(c.Filters)}
	return filter.Build(spec)
}

func toNodeSpecs(filters []FilterConfig) []filter.NodeSpec {
	specs := make([]filter.NodeSpec, len(filters))
	for i, f := range filters {
		specs[i] = filter.NodeSpec{
			ServerNames: f.ServerNames,
			PathPrefix:  f.PathPrefix,
			Methods:     f.Methods,
			Handler:     toHandler(f.Handler),
			Children:    toNodeSpecs(f.Children),
		}
	}
	return specs
}

func toHandler(h *HandlerConfig) *filter.Handler {
	if h == nil {
		return nil
	}
	return &filter.Handler{
		Kind:             handlerKind(h.Kind),
		Root:             h.Root,
		TryFiles:         h.TryFiles,
		CGIPath:          h.CGIPath,
		CGIArgs:          h.CGIArgs,
		UpstreamNetwork:  h.UpstreamNetwork,
		UpstreamAddress:  h.UpstreamAddress,
		RedirectCode:     h.RedirectCode,
		RedirectLocation: h.RedirectLocation,
	}
}

func handlerKind(kind string) filter.HandlerKind {
	switch kind {
	case "static":
		return filter.HandlerStatic
	case "cgi":
		return filter.HandlerCGI
	case "fastcgi":
		return filter.HandlerFastCGI
	case "proxy":
		return filter.HandlerProxy
	case "redirect":
		return filter.HandlerRedirect
	default:
		return filter.HandlerNone
	}
}

// ListenConfigs builds one gateway.ListenConfig per configured listen
// address, loading each TLS context's certificate/key pair.
func (c *Config) ListenConfigs() ([]gateway.ListenConfig, error) {
	out := make([]gateway.ListenConfig, len(c.Listen))
	for i, l := range c.Listen {
		contexts := make([]gateway.TLSContext, len(l.TLS))
		for j, t := range l.TLS {
			cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("config: loading TLS context %q for %s: %w", t.ServerName, l.Address, err)
			}
			contexts[j] = gateway.TLSContext{
				ServerName: t.ServerName,
				Config:     &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
			}
		}
		out[i] = gateway.ListenConfig{Network: l.Network, Address: l.Address, TLS: contexts}
	}
	return out, nil
}

// Logger builds the leveled logger this configuration describes,
// writing to w (typically os.Stderr).
func (c *Config) Logger(w io.Writer) *logging.Logger {
	return logging.New(w, logging.ParseLevel(c.Logging.Level))
}
