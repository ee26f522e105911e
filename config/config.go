package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appName = "localops"

// Config holds the full server configuration. It is immutable after load;
// components receive copies of the sections they need at construction.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Security    SecurityConfig    `yaml:"security"`
	Cache       CacheConfig       `yaml:"cache"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Command     CommandConfig     `yaml:"command"`
	Assist      AssistConfig      `yaml:"assist"`
	Observe     ObserveConfig     `yaml:"observe"`
	Ops         OpsConfig         `yaml:"ops"`
}

// ServerConfig identifies the server to MCP clients.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// SecurityConfig configures path and command validation.
type SecurityConfig struct {
	AllowedDirs       []string `yaml:"allowed_dirs"`
	BlockedDirs       []string `yaml:"blocked_dirs"`
	BlockedExtensions []string `yaml:"blocked_extensions"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxPathLength     int      `yaml:"max_path_length"`
	DenyAbsolute      bool     `yaml:"deny_absolute"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	MaxSize int      `yaml:"max_size"`
	TTL     Duration `yaml:"ttl"`
}

// RateLimitConfig configures per-identity rate limiting.
type RateLimitConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Window      Duration `yaml:"window"`
	MaxRequests int      `yaml:"max_requests"`
}

// ConcurrencyConfig maps governance categories to concurrency ceilings.
type ConcurrencyConfig struct {
	FileOps  int `yaml:"file_ops"`
	Searches int `yaml:"searches"`
	Commands int `yaml:"commands"`
	Assist   int `yaml:"assist"`
}

// CommandConfig configures command execution.
type CommandConfig struct {
	// ExtraBlocked extends the built-in command blocklist.
	ExtraBlocked []string `yaml:"extra_blocked"`
	Timeout      Duration `yaml:"timeout"`
	MaxOutput    int      `yaml:"max_output"`
}

// AssistConfig configures the AI assist backend.
type AssistConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// APIKeyRef is a secretref or plain env expansion resolved at startup.
	APIKeyRef string   `yaml:"api_key_ref"`
	Timeout   Duration `yaml:"timeout"`
}

// ObserveConfig configures logging, metrics, and tracing.
type ObserveConfig struct {
	LogLevel         string  `yaml:"log_level"`
	MetricsExporter  string  `yaml:"metrics_exporter"`
	TracingExporter  string  `yaml:"tracing_exporter"`
	TracingSamplePct float64 `yaml:"tracing_sample_pct"`
}

// OpsConfig configures the operational HTTP listener (health + metrics).
type OpsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a Config with working defaults. The workspace root
// defaults to the current working directory.
func Default() Config {
	workdir, err := os.Getwd()
	if err != nil {
		workdir = "."
	}

	return Config{
		Server: ServerConfig{
			Name:    appName,
			Version: "dev",
		},
		Security: SecurityConfig{
			AllowedDirs:       []string{workdir},
			BlockedDirs:       []string{"/etc", "/sys", "/proc", "/boot"},
			BlockedExtensions: []string{".exe", ".dll", ".so", ".dylib"},
			MaxPathLength:     4096,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 1000,
			TTL:     Duration(5 * time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Window:      Duration(time.Minute),
			MaxRequests: 60,
		},
		Concurrency: ConcurrencyConfig{
			FileOps:  10,
			Searches: 3,
			Commands: 2,
			Assist:   1,
		},
		Command: CommandConfig{
			Timeout:   Duration(30 * time.Second),
			MaxOutput: 1 << 20,
		},
		Assist: AssistConfig{
			Enabled: false,
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: Duration(60 * time.Second),
		},
		Observe: ObserveConfig{
			LogLevel:         "info",
			MetricsExporter:  "none",
			TracingExporter:  "none",
			TracingSamplePct: 1.0,
		},
		Ops: OpsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8181",
		},
	}
}

// Path returns the standard config file location for the current platform.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// Load reads the config from the standard location. A missing file is not
// an error: defaults are returned.
func Load() (Config, error) {
	path := Path()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("stat config file: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from a specific path. Values not present in
// the file keep their defaults.
func LoadFrom(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config to a specific path with restrictive permissions.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for inconsistencies.
func (c Config) Validate() error {
	if len(c.Security.AllowedDirs) == 0 {
		return fmt.Errorf("config: security.allowed_dirs must not be empty")
	}
	for _, dir := range c.Security.AllowedDirs {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("config: allowed dir %q must be absolute", dir)
		}
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("config: cache.max_size must be positive")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("config: cache.ttl must not be negative")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: rate_limit.window must be positive")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("config: rate_limit.max_requests must be positive")
	}
	for name, ceiling := range c.Categories() {
		if ceiling <= 0 {
			return fmt.Errorf("config: concurrency ceiling for %s must be positive", name)
		}
	}
	if c.Command.Timeout <= 0 {
		return fmt.Errorf("config: command.timeout must be positive")
	}
	if c.Command.MaxOutput <= 0 {
		return fmt.Errorf("config: command.max_output must be positive")
	}
	if c.Assist.Enabled && c.Assist.BaseURL == "" {
		return fmt.Errorf("config: assist.base_url is required when assist is enabled")
	}
	if c.Ops.Enabled && c.Ops.Addr == "" {
		return fmt.Errorf("config: ops.addr is required when the ops listener is enabled")
	}
	if c.Ops.Addr != "" {
		if err := validateAddr(c.Ops.Addr); err != nil {
			return fmt.Errorf("config: ops.addr: %w", err)
		}
	}
	return nil
}

// validateAddr rejects listen addresses that can never bind, so a bad
// ops.addr fails at load time instead of inside the listener goroutine.
func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port %q is not numeric", port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port %d is out of range", n)
	}
	return nil
}

// Categories returns the concurrency ceilings keyed by governance category.
func (c Config) Categories() map[string]int {
	return map[string]int{
		CategoryFileOps:  c.Concurrency.FileOps,
		CategorySearches: c.Concurrency.Searches,
		CategoryCommands: c.Concurrency.Commands,
		CategoryAssist:   c.Concurrency.Assist,
	}
}

// Governance category names shared by config, services, and handlers.
const (
	CategoryFileOps  = "file_ops"
	CategorySearches = "searches"
	CategoryCommands = "commands"
	CategoryAssist   = "assist"
)
