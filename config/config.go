// Package config decodes the gateway's YAML configuration tree
// (logging level, listen addresses, TLS contexts, and a nested location
// filter tree) into the structures internal/filter and internal/gateway
// consume, per spec §6's config/CLI paragraph.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the decoded configuration tree; Load validates it before
// returning it.
type Config struct {
	Logging LoggingConfig  `mapstructure:"logging"`
	Listen  []ListenConfig `mapstructure:"listen" validate:"required,min=1,dive"`
	Filters []FilterConfig `mapstructure:"filters" validate:"required,min=1,dive"`
}

// LoggingConfig controls the gateway's leveled logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// TLSContextConfig is one entry of a listen address's SNI dispatch
// table; ServerName == "" is the default/no-SNI context.
type TLSContextConfig struct {
	ServerName string `mapstructure:"server_name"`
	CertFile   string `mapstructure:"cert_file" validate:"required"`
	KeyFile    string `mapstructure:"key_file" validate:"required"`
}

// ListenConfig describes one configured listen address.
type ListenConfig struct {
	Network string             `mapstructure:"network"`
	Address string             `mapstructure:"address" validate:"required"`
	TLS     []TLSContextConfig `mapstructure:"tls" validate:"dive"`
}

// HandlerConfig is the decoded handler descriptor attached to a
// filter node, per spec §4.6's filter-node handler union.
type HandlerConfig struct {
	Kind string `mapstructure:"kind" validate:"required,oneof=static cgi fastcgi proxy redirect"`

	Root     string   `mapstructure:"root"`
	TryFiles []string `mapstructure:"try_files"`

	CGIPath string   `mapstructure:"cgi_path"`
	CGIArgs []string `mapstructure:"cgi_args"`

	UpstreamNetwork string `mapstructure:"upstream_network"`
	UpstreamAddress string `mapstructure:"upstream_address"`

	RedirectCode     int    `mapstructure:"redirect_code"`
	RedirectLocation string `mapstructure:"redirect_location"`
}

// FilterConfig is one node of the decoded location filter tree.
type FilterConfig struct {
	ServerNames []string        `mapstructure:"server_names"`
	PathPrefix  string          `mapstructure:"path_prefix"`
	Methods     []string        `mapstructure:"methods"`
	Handler     *HandlerConfig  `mapstructure:"handler"`
	Children    []FilterConfig `mapstructure:"children" validate:"dive"`
}

var validate = validator.New()

// Load reads path (YAML) through viper, decodes it via mapstructure
// tags, and validates it via go-playground/validator struct tags.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WARPGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	if err := validateFilterKinds(cfg.Filters); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	for i := range cfg.Listen {
		if cfg.Listen[i].Network == "" {
			cfg.Listen[i].Network = "tcp"
		}
	}
	applyHandlerDefaults(cfg.Filters)
}

func applyHandlerDefaults(filters []FilterConfig) {
	for i := range filters {
		h := filters[i].Handler
		if h != nil {
			if h.Kind == "redirect" && h.RedirectCode == 0 {
				h.RedirectCode = 302
			}
			if (h.Kind == "fastcgi" || h.Kind == "proxy") && h.UpstreamNetwork == "" {
				h.UpstreamNetwork = "tcp"
			}
		}
		applyHandlerDefaults(filters[i].Children)
	}
}

// validateFilterKinds enforces the per-kind required-field rules that
// go-playground/validator's flat struct tags can't express across a
// oneof-discriminated union.
func validateFilterKinds(filters []FilterConfig) error {
	for _, f := range filters {
		if h := f.Handler; h != nil {
			switch h.Kind {
			case "static":
				if h.Root == "" {
					return fmt.Errorf("config: static handler requires root")
				}
			case "cgi":
				if h.Root == "" || h.CGIPath == "" || len(h.TryFiles) == 0 {
					return fmt.Errorf("config: cgi handler requires root, cgi_path, and try_files")
				}
			case "fastcgi":
				if h.Root == "" || h.UpstreamAddress == "" || len(h.TryFiles) == 0 {
					return fmt.Errorf("config: fastcgi handler requires root, upstream_address, and try_files")
				}
			case "proxy":
				if h.UpstreamAddress == "" {
					return fmt.Errorf("config: proxy handler requires upstream_address")
				}
			case "redirect":
				if h.RedirectLocation == "" {
					return fmt.Errorf("config: redirect handler requires redirect_location")
				}
			}
		}
		if err := validateFilterKinds(f.Children); err != nil {
			return err
		}
	}
	return nil
}

func formatValidationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("config: %s: validation failed on %q (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
