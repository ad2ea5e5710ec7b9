package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML or TOML file over Default() and validates the result.
// The format is chosen by extension (.yaml, .yml, .toml).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	case ".toml":
		if err := decodeTOML(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse toml %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("config: unsupported file extension %q", ext)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decodeTOML normalizes a TOML document through the YAML decoder so both
// formats share one set of keys and the same duration parsing.
func decodeTOML(data []byte, cfg *Config) error {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return err
	}
	bridged, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bridged, cfg)
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
