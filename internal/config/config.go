// Package config holds the server configuration, merged from an optional
// YAML file and command line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Addr          string        `yaml:"addr"`
	Workdir       string        `yaml:"workdir"`
	DocExpiry     time.Duration `yaml:"doc_expiry"`
	SessionExpiry time.Duration `yaml:"session_expiry"`
	LogLevel      string        `yaml:"log_level"`
	LogPretty     bool          `yaml:"log_pretty"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Addr:          ":8080",
		Workdir:       "docserve.workdir",
		DocExpiry:     90 * time.Minute,
		SessionExpiry: 12 * time.Hour,
		LogLevel:      "info",
	}
}

// Load reads a YAML configuration file over the defaults. Keys absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// UnmarshalYAML decodes the configuration, parsing durations from strings
// like "90m" and leaving unset keys untouched.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Addr          string `yaml:"addr"`
		Workdir       string `yaml:"workdir"`
		DocExpiry     string `yaml:"doc_expiry"`
		SessionExpiry string `yaml:"session_expiry"`
		LogLevel      string `yaml:"log_level"`
		LogPretty     *bool  `yaml:"log_pretty"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Addr != "" {
		c.Addr = raw.Addr
	}
	if raw.Workdir != "" {
		c.Workdir = raw.Workdir
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.LogPretty != nil {
		c.LogPretty = *raw.LogPretty
	}
	if raw.DocExpiry != "" {
		d, err := time.ParseDuration(raw.DocExpiry)
		if err != nil {
			return fmt.Errorf("doc_expiry: %w", err)
		}
		c.DocExpiry = d
	}
	if raw.SessionExpiry != "" {
		d, err := time.ParseDuration(raw.SessionExpiry)
		if err != nil {
			return fmt.Errorf("session_expiry: %w", err)
		}
		c.SessionExpiry = d
	}
	return nil
}
