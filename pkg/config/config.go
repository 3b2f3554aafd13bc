package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Addr returns the ops HTTP address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = 9090
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// LoadFile reads and parses a YAML config file.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML config bytes.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring an
// explicitly set flag, then the environment.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATSHARD_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
