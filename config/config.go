// Package config loads the TOML file that describes a gatekeeperd instance:
// where to listen, which upstream proxies are available, which one is
// selected, and the inline rule-list text the rule engine is built from.
// Grounded on the teacher's factory-style config loaders (x/examples'
// internal/config, x/config) adapted from Go struct literals/URLs to a TOML
// document, since the design promotes a real parser
// (github.com/BurntSushi/toml) to a load-bearing dependency here.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ProxyMode selects the ambient policy layered under the rule set: "direct"
// sends every connection direct, "proxy" sends every connection through the
// selected upstream, and "auto" follows the rules with the upstream as the
// fallback for a Default decision.
type ProxyMode string

const (
	ProxyModeDirect ProxyMode = "direct"
	ProxyModeProxy  ProxyMode = "proxy"
	ProxyModeAuto   ProxyMode = "auto"
)

// UpstreamProxy describes one named upstream proxy endpoint.
type UpstreamProxy struct {
	Protocol string `toml:"protocol"` // "http", "https", or "socks5"
	Host     string `toml:"host"`
	Port     uint16 `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// IngressAuth describes the optional credentials required of ingress
// clients on either listener.
type IngressAuth struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Config is the immutable, process-lifetime configuration for a
// gatekeeperd instance.
type Config struct {
	HTTPListen   string `toml:"http_listen"`
	SOCKS5Listen string `toml:"socks5_listen"`

	ProxyMode     ProxyMode                `toml:"proxy_mode"`
	Proxies       map[string]UpstreamProxy `toml:"proxies"`
	SelectedProxy string                   `toml:"selected_proxy"`

	Rules []string `toml:"rules"`

	IngressAuth *IngressAuth `toml:"ingress_auth"`
}

// Load parses and validates a TOML config file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPListen == "" && c.SOCKS5Listen == "" {
		return fmt.Errorf("config: at least one of http_listen or socks5_listen must be set")
	}
	switch c.ProxyMode {
	case ProxyModeDirect, ProxyModeProxy, ProxyModeAuto, "":
	default:
		return fmt.Errorf("config: unknown proxy_mode %q", c.ProxyMode)
	}
	if c.ProxyMode == ProxyModeProxy || c.ProxyMode == ProxyModeAuto {
		if c.SelectedProxy == "" {
			return fmt.Errorf("config: proxy_mode %q requires selected_proxy", c.ProxyMode)
		}
		proxy, ok := c.Proxies[c.SelectedProxy]
		if !ok {
			return fmt.Errorf("config: selected_proxy %q is not defined in proxies", c.SelectedProxy)
		}
		switch proxy.Protocol {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("config: proxy %q has unknown protocol %q", c.SelectedProxy, proxy.Protocol)
		}
	}
	return nil
}

// SelectedUpstream returns the upstream proxy descriptor named by
// SelectedProxy, or false if none is selected.
func (c *Config) SelectedUpstream() (UpstreamProxy, bool) {
	if c.SelectedProxy == "" {
		return UpstreamProxy{}, false
	}
	proxy, ok := c.Proxies[c.SelectedProxy]
	return proxy, ok
}
