// internal/config/load.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/pv-reporter/internal/fault"
)

// Load reads a YAML config file, expands ${VAR} references from the
// environment, then normalizes and validates it.
// Every returned error is a fault.Configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.New(fault.Configuration, path, fmt.Errorf("read config: %w", err))
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fault.New(fault.Configuration, path, err)
	}
	return cfg, nil
}

// Parse decodes, normalizes and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	Normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
