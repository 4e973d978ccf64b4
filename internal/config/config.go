// ABOUTME: Configuration loading and parsing for toolgate
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults, and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete toolgate configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Transports TransportsConfig `yaml:"transports" toml:"transports"`
	Dispatch   DispatchConfig   `yaml:"dispatch" toml:"dispatch"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Tailscale  TailscaleConfig  `yaml:"tailscale" toml:"tailscale"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener addresses and the identity reported by /health
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"` // empty disables the gRPC health service
	Name     string `yaml:"name" toml:"name"`
	Version  string `yaml:"version" toml:"version"`
}

// TransportsConfig selects and tunes the two transports
type TransportsConfig struct {
	Stdio StdioConfig `yaml:"stdio" toml:"stdio"`
	SSE   SSEConfig   `yaml:"sse" toml:"sse"`
}

// StdioConfig configures the newline-delimited JSON transport on stdin/stdout
type StdioConfig struct {
	Enabled       bool `yaml:"enabled" toml:"enabled"`
	ExitOnEOF     bool `yaml:"exit_on_eof" toml:"exit_on_eof"`
	MaxFrameBytes int  `yaml:"max_frame_bytes" toml:"max_frame_bytes"`
}

// SSEConfig configures the HTTP + Server-Sent-Events transport
type SSEConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Path      string `yaml:"path" toml:"path"`
	QueueSize int    `yaml:"queue_size" toml:"queue_size"`

	IdleTimeout       time.Duration `yaml:"-" toml:"-"`
	KeepaliveInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	IdleTimeoutRaw       string `yaml:"idle_timeout" toml:"idle_timeout"`
	KeepaliveIntervalRaw string `yaml:"keepalive_interval" toml:"keepalive_interval"`
}

// DispatchConfig holds dispatcher timing
type DispatchConfig struct {
	HandlerTimeout    time.Duration `yaml:"-" toml:"-"`
	HandlerTimeoutRaw string        `yaml:"handler_timeout" toml:"handler_timeout"`
}

// DatabaseConfig holds the audit database location. Empty disables auditing.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
// Both transports are enabled; auditing and gRPC are off.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8081",
			Name:     "toolgate",
		},
		Transports: TransportsConfig{
			Stdio: StdioConfig{
				Enabled:       true,
				ExitOnEOF:     true,
				MaxFrameBytes: 1 << 20,
			},
			SSE: SSEConfig{
				Enabled:              true,
				Path:                 "/mcp",
				QueueSize:            64,
				IdleTimeout:          30 * time.Minute,
				KeepaliveInterval:    15 * time.Second,
				IdleTimeoutRaw:       "30m",
				KeepaliveIntervalRaw: "15s",
			},
		},
		Dispatch: DispatchConfig{
			HandlerTimeout:    30 * time.Second,
			HandlerTimeoutRaw: "30s",
		},
		Tailscale: TailscaleConfig{
			Hostname: "toolgate",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Fields absent from the file keep their Default values.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
// The bool reports whether a file was read.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	return nil, false, err
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	stdio, sse := c.Transports.Stdio, c.Transports.SSE

	if !stdio.Enabled && !sse.Enabled {
		return fmt.Errorf("at least one of transports.stdio or transports.sse must be enabled")
	}

	if stdio.Enabled && stdio.MaxFrameBytes <= 0 {
		return fmt.Errorf("transports.stdio.max_frame_bytes must be positive")
	}

	if sse.Enabled {
		// HTTP address is required unless Tailscale provides the listener
		if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required for the sse transport (or enable tailscale)")
		}
		if !strings.HasPrefix(sse.Path, "/") {
			return fmt.Errorf("transports.sse.path must start with '/', got %q", sse.Path)
		}
		if sse.Path == "/" || sse.Path == "/health" {
			return fmt.Errorf("transports.sse.path %q collides with a built-in route", sse.Path)
		}
		if sse.QueueSize <= 0 {
			return fmt.Errorf("transports.sse.queue_size must be positive")
		}
		if sse.IdleTimeout < 0 || sse.KeepaliveInterval < 0 {
			return fmt.Errorf("transports.sse durations must not be negative")
		}
	}

	if c.Dispatch.HandlerTimeout <= 0 {
		return fmt.Errorf("dispatch.handler_timeout must be positive")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// ParseLevel maps a logging.level value to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", s)
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Transports.SSE.IdleTimeoutRaw != "" {
		cfg.Transports.SSE.IdleTimeout, err = time.ParseDuration(cfg.Transports.SSE.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Transports.SSE.IdleTimeoutRaw, err)
		}
	}

	if cfg.Transports.SSE.KeepaliveIntervalRaw != "" {
		cfg.Transports.SSE.KeepaliveInterval, err = time.ParseDuration(cfg.Transports.SSE.KeepaliveIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing keepalive_interval %q: %w", cfg.Transports.SSE.KeepaliveIntervalRaw, err)
		}
	}

	if cfg.Dispatch.HandlerTimeoutRaw != "" {
		cfg.Dispatch.HandlerTimeout, err = time.ParseDuration(cfg.Dispatch.HandlerTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing handler_timeout %q: %w", cfg.Dispatch.HandlerTimeoutRaw, err)
		}
	}

	return nil
}
