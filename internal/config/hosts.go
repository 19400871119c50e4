package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// HostConfig holds request settings for one host.
type HostConfig struct {
	// Headers are extra request headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// RuleConfig describes an extra component rule. Exactly one of Body,
// Script or Header must be set.
type RuleConfig struct {
	// Label is the component name reported when the rule matches.
	Label string `yaml:"label"`

	// Body lists substrings searched for in the lowercased body.
	// Any one of them matching is enough.
	Body []string `yaml:"body,omitempty"`

	// Script lists substrings searched for in <script src> references.
	Script []string `yaml:"script,omitempty"`

	// Header names a response header whose presence triggers the rule.
	Header string `yaml:"header,omitempty"`

	// HeaderContains, when set with Header, additionally requires the
	// header value to contain this substring (case-insensitive).
	HeaderContains string `yaml:"headerContains,omitempty"`
}

// File is the structure of .urlscan.yaml.
type File struct {
	// Defaults apply to every host unless overridden under Hosts.
	Defaults HostConfig `yaml:"defaults,omitempty"`

	// Hosts maps a host name (without scheme or port) to its settings.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Rules are appended to the built-in component rules.
	Rules []RuleConfig `yaml:"rules,omitempty"`
}

// NewFile returns an empty File.
func NewFile() *File {
	return &File{Hosts: make(map[string]HostConfig)}
}

// errInvalidRule reports a malformed entry under rules.
var errInvalidRule = errors.New("invalid rule")

// Validate checks the rules section.
func (f *File) Validate() error {
	for i, r := range f.Rules {
		if strings.TrimSpace(r.Label) == "" {
			return fmt.Errorf("%w #%d: label is required", errInvalidRule, i+1)
		}
		set := 0
		if len(r.Body) > 0 {
			set++
		}
		if len(r.Script) > 0 {
			set++
		}
		if r.Header != "" {
			set++
		}
		if set != 1 {
			return fmt.Errorf("%w %q: exactly one of body, script or header is required", errInvalidRule, r.Label)
		}
		if r.HeaderContains != "" && r.Header == "" {
			return fmt.Errorf("%w %q: headerContains requires header", errInvalidRule, r.Label)
		}
	}
	return nil
}

// ForHost returns the merged settings for host. host may include a port,
// which is ignored when the exact "host:port" key is not present.
func (f *File) ForHost(host string) HostConfig {
	result := HostConfig{
		UserAgent: f.Defaults.UserAgent,
		Headers:   copyHeaders(f.Defaults.Headers),
	}

	hc, ok := f.Hosts[strings.ToLower(host)]
	if !ok {
		if h, _, err := net.SplitHostPort(host); err == nil {
			hc, ok = f.Hosts[strings.ToLower(h)]
		}
	}
	if !ok {
		return result
	}

	if hc.UserAgent != "" {
		result.UserAgent = hc.UserAgent
	}
	if len(hc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(hc.Headers))
		}
		for k, v := range hc.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

func copyHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
