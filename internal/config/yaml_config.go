package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of the config.yaml file.
type YAMLConfig struct {
	Links []SeedLink `yaml:"links"`
}

// SeedLink is a link inserted by `mako migrate --seed` when the table is empty.
type SeedLink struct {
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Icon        string `yaml:"icon,omitempty"`
	Priority    *int   `yaml:"priority,omitempty"`
	Active      *bool  `yaml:"active,omitempty"`
}

// LoadYAMLConfig loads the YAML configuration file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	return LoadYAMLConfigFile(getEnv("CONFIG_FILE", "config.yaml"))
}

// LoadYAMLConfigFile loads the YAML configuration at path.
func LoadYAMLConfigFile(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SeedLinks returns the configured seed links, or nil for a nil config.
func (c *YAMLConfig) SeedLinks() []SeedLink {
	if c == nil {
		return nil
	}
	return c.Links
}
