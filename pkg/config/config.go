// Package config loads the tradfri YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/germanamz/tradfri/pkg/coap"
)

// Defaults applied by Load for empty fields.
const (
	DefaultUser    = "tradfri"
	DefaultKeyFile = ".env"
)

// Config is the top-level configuration.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Transport TransportConfig `yaml:"transport"`
	KeyFile   string          `yaml:"key_file"`
	LogLevel  string          `yaml:"log_level"`
}

// GatewayConfig identifies the gateway and the client identity.
type GatewayConfig struct {
	Address      string `yaml:"address"`
	SecurityCode string `yaml:"security_code"` //nolint:gosec // configuration field, not a hardcoded secret
	User         string `yaml:"user"`
}

// TransportConfig controls the coap-client invocation.
type TransportConfig struct {
	Command string   `yaml:"command"`
	Timeout Duration `yaml:"timeout"`
}

// Duration is a time.Duration read from a string such as "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)

	return nil
}

// Default returns a Config with every default applied.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads a YAML file and returns a Config with defaults applied.
// Environment variables referenced as ${VAR} or $VAR are expanded before
// parsing, so the security code can stay in a .env file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML data. See Load.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Gateway.User == "" {
		c.Gateway.User = DefaultUser
	}
	if c.Transport.Command == "" {
		c.Transport.Command = coap.DefaultCommand
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = Duration(coap.DefaultTimeout)
	}
	if c.KeyFile == "" {
		c.KeyFile = DefaultKeyFile
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the configuration can be used to reach a gateway.
func (c Config) Validate() error {
	if c.Gateway.Address == "" {
		return errors.New("config: gateway.address is required")
	}
	if strings.ContainsAny(c.Gateway.Address, "/ ") {
		return fmt.Errorf("config: gateway.address %q must be a host or IP", c.Gateway.Address)
	}
	if c.Transport.Timeout < 0 {
		return errors.New("config: transport.timeout must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return lvl, nil
}
