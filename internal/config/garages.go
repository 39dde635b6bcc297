package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GarageConfig describes one garage in garages.yaml.
type GarageConfig struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	IsActive bool   `yaml:"is_active"`
}

// GaragesConfig is the root of garages.yaml.
type GaragesConfig struct {
	Garages []GarageConfig `yaml:"garages"`
}

// LoadGaragesConfig loads and validates the garages file.
func LoadGaragesConfig(path string) (*GaragesConfig, error) {
	if path == "" {
		path = "configs/garages.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read garages config: %w", err)
	}

	var cfg GaragesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse garages config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate garages config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *GaragesConfig) Validate() error {
	if len(c.Garages) == 0 {
		return fmt.Errorf("no garages defined")
	}

	ids := make(map[int64]bool)
	names := make(map[string]bool)

	for i, g := range c.Garages {
		if g.ID <= 0 {
			return fmt.Errorf("garage[%d]: id must be positive, got %d", i, g.ID)
		}
		if ids[g.ID] {
			return fmt.Errorf("garage[%d]: duplicate id %d", i, g.ID)
		}
		ids[g.ID] = true

		if g.Name == "" {
			return fmt.Errorf("garage[%d]: name is required", i)
		}
		if names[g.Name] {
			return fmt.Errorf("garage[%d]: duplicate name '%s'", i, g.Name)
		}
		names[g.Name] = true
	}
	return nil
}
