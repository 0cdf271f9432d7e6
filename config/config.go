// Package config provides YAML configuration parsing for the smart plug
// collector.
//
// The file is looked up as hs110.conf in netdata's user configuration
// directory unless a path is given explicitly.
//
// Example configuration:
//
//	hosts:
//	  - 192.168.0.124
//	  - ${KITCHEN_PLUG:-192.168.0.156}
//
//	port: 9999
//	max_concurrency: 0
//	listen: ":19110"
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the configuration file name inside the config directory.
	FileName = "hs110.conf"

	// DirEnv names the environment variable netdata sets for plugins.
	DirEnv = "NETDATA_USER_CONFIG_DIR"

	// FallbackDir is used when DirEnv is not set.
	FallbackDir = "/usr/local/etc/netdata"

	// DefaultPort is the smart plug TCP port.
	DefaultPort = 9999
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Hosts lists the plug addresses in display order. Each entry may carry
	// its own port ("10.0.0.5:10000"). Supports ${VAR} and ${VAR:-default}.
	Hosts []string `yaml:"hosts"`

	// Port is the TCP port used for hosts without one. Defaults to 9999.
	Port int `yaml:"port"`

	// MaxConcurrency caps in-flight device queries. 0 queries every device
	// at once.
	MaxConcurrency int `yaml:"max_concurrency"`

	// ResolveTimeout bounds alias resolution at startup. 0 uses the
	// per-device poll deadline.
	ResolveTimeout Duration `yaml:"resolve_timeout"`

	// Listen is an optional HTTP address for /metrics and the readings API.
	// Empty disables the HTTP server. Supports environment substitution.
	Listen string `yaml:"listen"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
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

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultPath returns the configuration path netdata expects.
//
// If DirEnv is unset, the path under FallbackDir is returned together with a
// non-nil warning; the warning is informational and never fatal.
func DefaultPath() (string, error) {
	dir, ok := os.LookupEnv(DirEnv)
	if !ok || strings.TrimSpace(dir) == "" {
		return filepath.Join(FallbackDir, FileName),
			fmt.Errorf("%s is not set, using %s", DirEnv, FallbackDir)
	}
	return filepath.Join(dir, FileName), nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in hosts and listen are expanded after parsing.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if len(c.Hosts) == 0 {
		return errors.New("at least one host has to be specified")
	}

	seen := make(map[string]int, len(c.Hosts))
	for i, h := range c.Hosts {
		expanded, err := expandEnvVars(h)
		if err != nil {
			return fmt.Errorf("hosts[%d] (%s): %w", i, h, err)
		}
		expanded = strings.TrimSpace(expanded)
		if expanded == "" {
			return fmt.Errorf("hosts[%d]: host is required", i)
		}
		if strings.ContainsAny(expanded, " \t/") {
			return fmt.Errorf("hosts[%d] (%s): host must be an address, not a URL", i, expanded)
		}
		if j, dup := seen[expanded]; dup {
			return fmt.Errorf("hosts[%d] (%s): duplicate of hosts[%d]", i, expanded, j)
		}
		seen[expanded] = i
		c.Hosts[i] = expanded
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if c.ResolveTimeout.Duration() < 0 {
		return fmt.Errorf("resolve_timeout cannot be negative, got %s", c.ResolveTimeout.Duration())
	}

	if c.Listen != "" {
		expanded, err := expandEnvVars(c.Listen)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		if expanded != "" {
			if _, _, err := net.SplitHostPort(expanded); err != nil {
				return fmt.Errorf("listen (%s): %w", expanded, err)
			}
		}
		c.Listen = expanded
	}

	return nil
}
