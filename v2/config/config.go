// Package config provides configuration loading and defaults for the
// GraphQL HTTP transport.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvEndpoint    = "GQLUPLOAD_ENDPOINT"
	EnvToken       = "GQLUPLOAD_TOKEN"
	EnvTimeout     = "GQLUPLOAD_TIMEOUT"
	defaultTimeout = 30
)

// Config holds connection details for a GraphQL endpoint.
type Config struct {
	Endpoint    string            `yaml:"endpoint"`
	BearerToken string            `yaml:"bearer_token"`
	Headers     map[string]string `yaml:"headers"`
	// Timeout is the HTTP request timeout in seconds.
	Timeout          int  `yaml:"timeout"`
	CloseRequestBody bool `yaml:"close_request_body"`
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a new Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:8080/graphql",
		Timeout:  defaultTimeout,
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnvOverrides updates cfg in place from the environment.
// Recognized variables:
//   - GQLUPLOAD_ENDPOINT overrides cfg.Endpoint
//   - GQLUPLOAD_TOKEN overrides cfg.BearerToken
//   - GQLUPLOAD_TIMEOUT overrides cfg.Timeout (seconds)
func ApplyEnvOverrides(cfg *Config) error {
	if endpoint := os.Getenv(EnvEndpoint); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if token := os.Getenv(EnvToken); token != "" {
		cfg.BearerToken = token
	}
	if timeout := os.Getenv(EnvTimeout); timeout != "" {
		seconds, err := strconv.Atoi(timeout)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTimeout, timeout, err)
		}
		cfg.Timeout = seconds
	}
	return nil
}

// Validate reports configuration that cannot produce a working transport.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	return nil
}
