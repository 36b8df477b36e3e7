// Package config loads the proxy's settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/graphproxy/internal/registry"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
	Otel     OtelConfig     `yaml:"otel"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Pretty       bool          `yaml:"pretty"`
	// Timeout bounds each request. 0 leaves the transport's deadline.
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type RegistryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Mode     string `yaml:"mode"`
	// Timeout bounds each registry call. 0 leaves only the request deadline.
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type OtelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Registry: RegistryConfig{Endpoint: registry.DefaultEndpoint, Mode: registry.ModeIntrospection.String()},
		Log:      LogConfig{Level: "info", Format: "json"},
		Otel:     OtelConfig{Service: "graphproxy"},
		Metrics:  MetricsConfig{Path: "/metrics"},
	}
}

// Load reads the YAML file at path over the defaults. ${VAR} references are
// expanded from the environment before parsing. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(cfg, data)
}

// Parse decodes data over base.
func Parse(base Config, data []byte) (Config, error) {
	expanded := os.Expand(string(data), os.Getenv)
	if err := yaml.Unmarshal([]byte(expanded), &base); err != nil {
		return base, fmt.Errorf("failed to parse config: %w", err)
	}
	return base, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment, skipping files that do not exist. Variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// RegistryMode returns the parsed registry mode.
func (c Config) RegistryMode() (registry.Mode, error) {
	return registry.ParseMode(c.Registry.Mode)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is every problem Validate found.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate reports all invalid settings at once.
func (c Config) Validate() error {
	var errs ValidationErrors
	if c.Server.Addr == "" {
		errs = append(errs, ValidationError{Field: "server.addr", Message: "is required"})
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "server.timeout", Message: "must not be negative"})
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, ValidationError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}
	if c.Registry.Endpoint == "" {
		errs = append(errs, ValidationError{Field: "registry.endpoint", Message: "is required"})
	}
	if _, err := c.RegistryMode(); err != nil {
		errs = append(errs, ValidationError{Field: "registry.mode", Message: "must be introspection or document"})
	}
	if c.Registry.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "registry.timeout", Message: "must not be negative"})
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{Field: "log.format", Message: "must be json or console"})
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, ValidationError{Field: "metrics.path", Message: "must start with /"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
