package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Server.Name != "localops" {
		t.Errorf("Server.Name = %q, want localops", cfg.Server.Name)
	}
	if cfg.Cache.TTL.Std() != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL.Std())
	}
	if cfg.RateLimit.MaxRequests != 60 {
		t.Errorf("RateLimit.MaxRequests = %d, want 60", cfg.RateLimit.MaxRequests)
	}
	if got := cfg.Categories()[CategoryCommands]; got != 2 {
		t.Errorf("commands ceiling = %d, want 2", got)
	}
	if cfg.Ops.Addr != "127.0.0.1:8181" {
		t.Errorf("Ops.Addr = %q, want a bindable loopback address", cfg.Ops.Addr)
	}
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  name: testops
  version: "1.2.3"
security:
  allowed_dirs: ["` + dir + `"]
cache:
  enabled: true
  max_size: 50
  ttl: 30s
rate_limit:
  enabled: true
  window: 10s
  max_requests: 5
concurrency:
  file_ops: 4
  searches: 2
  commands: 1
  assist: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Name != "testops" {
		t.Errorf("Server.Name = %q, want testops", cfg.Server.Name)
	}
	if cfg.Cache.MaxSize != 50 {
		t.Errorf("Cache.MaxSize = %d, want 50", cfg.Cache.MaxSize)
	}
	if cfg.Cache.TTL.Std() != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL.Std())
	}
	if cfg.RateLimit.Window.Std() != 10*time.Second {
		t.Errorf("RateLimit.Window = %v, want 10s", cfg.RateLimit.Window.Std())
	}
	if cfg.Concurrency.FileOps != 4 {
		t.Errorf("Concurrency.FileOps = %d, want 4", cfg.Concurrency.FileOps)
	}

	// Sections absent from the file keep defaults.
	if cfg.Command.Timeout.Std() != 30*time.Second {
		t.Errorf("Command.Timeout = %v, want default 30s", cfg.Command.Timeout.Std())
	}
	if cfg.Observe.LogLevel != "info" {
		t.Errorf("Observe.LogLevel = %q, want default info", cfg.Observe.LogLevel)
	}
}

func TestLoadFrom_UnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  name: testops
bogus_section:
  value: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty allowed dirs",
			mutate:  func(c *Config) { c.Security.AllowedDirs = nil },
			wantErr: "allowed_dirs",
		},
		{
			name:    "relative allowed dir",
			mutate:  func(c *Config) { c.Security.AllowedDirs = []string{"relative/path"} },
			wantErr: "absolute",
		},
		{
			name:    "zero cache size",
			mutate:  func(c *Config) { c.Cache.MaxSize = 0 },
			wantErr: "cache.max_size",
		},
		{
			name:    "zero rate window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: "rate_limit.window",
		},
		{
			name:    "zero category ceiling",
			mutate:  func(c *Config) { c.Concurrency.Commands = 0 },
			wantErr: "ceiling",
		},
		{
			name: "assist enabled without base url",
			mutate: func(c *Config) {
				c.Assist.Enabled = true
				c.Assist.BaseURL = ""
			},
			wantErr: "assist.base_url",
		},
		{
			name: "ops enabled without addr",
			mutate: func(c *Config) {
				c.Ops.Enabled = true
				c.Ops.Addr = ""
			},
			wantErr: "ops.addr",
		},
		{
			name:    "ops port out of range",
			mutate:  func(c *Config) { c.Ops.Addr = "127.0.0.1:88181" },
			wantErr: "out of range",
		},
		{
			name:    "ops addr without port",
			mutate:  func(c *Config) { c.Ops.Addr = "127.0.0.1" },
			wantErr: "ops.addr",
		},
		{
			name:    "ops port not numeric",
			mutate:  func(c *Config) { c.Ops.Addr = "127.0.0.1:http" },
			wantErr: "not numeric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := Default()
	cfg.Server.Name = "roundtrip"
	cfg.Security.AllowedDirs = []string{dir}
	cfg.Cache.TTL = Duration(42 * time.Second)

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Server.Name != "roundtrip" {
		t.Errorf("Server.Name = %q, want roundtrip", loaded.Server.Name)
	}
	if loaded.Cache.TTL.Std() != 42*time.Second {
		t.Errorf("Cache.TTL = %v, want 42s", loaded.Cache.TTL.Std())
	}
}
