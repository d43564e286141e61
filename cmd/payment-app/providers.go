package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ProviderEnvironment is a named provider endpoint operators can pick from
// when creating configuration entries.
type ProviderEnvironment struct {
	Name        string `yaml:"name" json:"name"`
	BaseURL     string `yaml:"base_url" json:"base_url"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	IsDefault   bool   `yaml:"is_default,omitempty" json:"is_default,omitempty"`
}

type providersFile struct {
	Environments []ProviderEnvironment `yaml:"environments"`
}

// LoadProviderEnvironments reads the provider environment catalog from a
// YAML file.
func LoadProviderEnvironments(path string) ([]ProviderEnvironment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	for i, env := range file.Environments {
		if env.Name == "" || env.BaseURL == "" {
			return nil, fmt.Errorf("provider environment %d is missing name or base_url", i)
		}
	}

	return file.Environments, nil
}
