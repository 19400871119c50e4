package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig documents the defaults; a failing case means a default
// changed and the change should be intentional.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default concurrency is 30", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 30 {
			t.Errorf("expected Concurrency 30, got %d", cfg.Concurrency)
		}
	})

	t.Run("default timeout is 5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected Timeout 5s, got %v", cfg.Timeout)
		}
	})

	t.Run("default redirect limit is 10", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRedirects != 10 {
			t.Errorf("expected MaxRedirects 10, got %d", cfg.MaxRedirects)
		}
	})

	t.Run("default body limit is 2MB", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxBodySize != 2<<20 {
			t.Errorf("expected MaxBodySize 2MB, got %d", cfg.MaxBodySize)
		}
	})

	t.Run("redirects are not followed by default", func(t *testing.T) {
		t.Parallel()
		if cfg.FollowRedirect {
			t.Error("expected FollowRedirect false")
		}
	})

	t.Run("history is saved by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveHistory {
			t.Error("expected SaveHistory true")
		}
		if cfg.DBDir == "" {
			t.Error("expected non-empty DBDir")
		}
	})

	t.Run("default input format is plain", func(t *testing.T) {
		t.Parallel()
		if cfg.InputFormat != "plain" {
			t.Errorf("expected plain, got %q", cfg.InputFormat)
		}
	})

	t.Run("config file is non-nil", func(t *testing.T) {
		t.Parallel()
		if cfg.File == nil || cfg.File.Hosts == nil {
			t.Error("expected initialized File")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.InputFile = "urls.txt"
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("zero concurrency and timeout are accepted as defaults", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Concurrency = 0
		cfg.Timeout = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "missing input file", modify: func(c *Config) { c.InputFile = " " }, want: ErrNoInputFile},
		{name: "negative concurrency", modify: func(c *Config) { c.Concurrency = -1 }, want: ErrInvalidConcurrency},
		{name: "negative timeout", modify: func(c *Config) { c.Timeout = -time.Second }, want: ErrInvalidTimeout},
		{name: "negative redirect limit", modify: func(c *Config) { c.MaxRedirects = -1 }, want: ErrInvalidMaxRedirects},
		{name: "both report formats", modify: func(c *Config) { c.JSONReport = true; c.MarkdownReport = true }, want: ErrConflictingReportFormats},
		{name: "unknown input format", modify: func(c *Config) { c.InputFormat = "csv" }, want: ErrUnknownInputFormat},
		{name: "negative rate limit", modify: func(c *Config) { c.RateLimit = -1 }, want: ErrInvalidRateLimit},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "tor and proxy together", modify: func(c *Config) { c.UseTor = true; c.ProxyURL = "socks5://127.0.0.1:9050" }, want: ErrConflictingProxies},
		{name: "proxy without host", modify: func(c *Config) { c.ProxyURL = "socks5://" }, want: ErrInvalidProxyURL},
		{name: "proxy with unsupported scheme", modify: func(c *Config) { c.ProxyURL = "ftp://proxy:21" }, want: ErrInvalidProxyURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("socks5 and http proxies are accepted", func(t *testing.T) {
		t.Parallel()
		for _, p := range []string{"socks5://127.0.0.1:1080", "socks5h://proxy:1080", "http://proxy:3128"} {
			cfg := validConfig()
			cfg.ProxyURL = p
			if err := cfg.Validate(); err != nil {
				t.Errorf("proxy %q: unexpected error %v", p, err)
			}
		}
	})
}

func TestFileForHost(t *testing.T) {
	t.Parallel()

	f := &File{
		Defaults: HostConfig{
			UserAgent: "default-agent",
			Headers:   map[string]string{"Accept-Language": "en"},
		},
		Hosts: map[string]HostConfig{
			"example.com": {
				UserAgent: "example-agent",
				Headers:   map[string]string{"X-Trace": "1"},
			},
			"api.example.com:8443": {
				Headers: map[string]string{"Accept-Language": "ja"},
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()
		hc := f.ForHost("other.com")
		if hc.UserAgent != "default-agent" {
			t.Errorf("expected default agent, got %q", hc.UserAgent)
		}
		if hc.Headers["Accept-Language"] != "en" {
			t.Errorf("expected default header, got %v", hc.Headers)
		}
	})

	t.Run("known host merges over defaults", func(t *testing.T) {
		t.Parallel()
		hc := f.ForHost("example.com")
		if hc.UserAgent != "example-agent" {
			t.Errorf("expected example agent, got %q", hc.UserAgent)
		}
		if hc.Headers["X-Trace"] != "1" || hc.Headers["Accept-Language"] != "en" {
			t.Errorf("expected merged headers, got %v", hc.Headers)
		}
	})

	t.Run("host with port falls back to bare host", func(t *testing.T) {
		t.Parallel()
		hc := f.ForHost("example.com:8080")
		if hc.UserAgent != "example-agent" {
			t.Errorf("expected example agent, got %q", hc.UserAgent)
		}
	})

	t.Run("exact host and port key wins", func(t *testing.T) {
		t.Parallel()
		hc := f.ForHost("api.example.com:8443")
		if hc.Headers["Accept-Language"] != "ja" {
			t.Errorf("expected override, got %v", hc.Headers)
		}
	})

	t.Run("merging does not mutate defaults", func(t *testing.T) {
		t.Parallel()
		_ = f.ForHost("example.com")
		if _, ok := f.Defaults.Headers["X-Trace"]; ok {
			t.Error("defaults were mutated")
		}
	})
}

func TestFileValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    RuleConfig
		wantErr bool
	}{
		{name: "body rule is valid", rule: RuleConfig{Label: "Laravel", Body: []string{"laravel_session"}}},
		{name: "header rule is valid", rule: RuleConfig{Label: "Cloudflare", Header: "CF-Ray"}},
		{name: "header contains rule is valid", rule: RuleConfig{Label: "Varnish", Header: "Via", HeaderContains: "varnish"}},
		{name: "missing label is invalid", rule: RuleConfig{Body: []string{"x"}}, wantErr: true},
		{name: "no matcher is invalid", rule: RuleConfig{Label: "Empty"}, wantErr: true},
		{name: "two matchers are invalid", rule: RuleConfig{Label: "Both", Body: []string{"x"}, Script: []string{"y"}}, wantErr: true},
		{name: "headerContains without header is invalid", rule: RuleConfig{Label: "Bad", Body: []string{"x"}, HeaderContains: "y"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := &File{Rules: []RuleConfig{tt.rule}}
			err := f.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		f, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if f != nil {
			t.Error("expected nil file")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  userAgent: "scanner/1.0"
hosts:
  Example.COM:
    headers:
      X-Trace: "on"
rules:
  - label: Laravel
    body: ["laravel_session"]
  - label: Cloudflare
    header: CF-Ray
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Defaults.UserAgent != "scanner/1.0" {
			t.Errorf("expected default user agent, got %q", f.Defaults.UserAgent)
		}
		if f.ForHost("example.com").Headers["X-Trace"] != "on" {
			t.Errorf("expected host keys to be lowercased, got %v", f.Hosts)
		}
		if len(f.Rules) != 2 || f.Rules[1].Header != "CF-Ray" {
			t.Errorf("unexpected rules: %+v", f.Rules)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns error for invalid rule", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("rules:\n  - label: Broken\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(path); !errors.Is(err, errInvalidRule) {
			t.Errorf("expected errInvalidRule, got %v", err)
		}
	})

	t.Run("initializes hosts map", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("defaults:\n  userAgent: x\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Hosts == nil {
			t.Error("expected Hosts map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if XDGDataDir() == "" {
		t.Error("expected non-empty XDG data dir")
	}
	if XDGConfigDir() == "" {
		t.Error("expected non-empty XDG config dir")
	}
}
