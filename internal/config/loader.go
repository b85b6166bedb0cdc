package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*PipelineConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.pipetide/config.json
// Project: .pipetide/config.json (relative to cwd)
func LoadDefault() (*PipelineConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".pipetide", "config.json")
	projectPath := filepath.Join(".pipetide", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
// Scalars override when set; a non-empty stage list replaces the base list.
func mergeConfigFile(base *PipelineConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded PipelineConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Name != "" {
		base.Name = loaded.Name
	}
	if loaded.Slots > 0 {
		base.Slots = loaded.Slots
	}
	if len(loaded.Grid.Command) > 0 {
		base.Grid.Command = loaded.Grid.Command
	}
	if loaded.Grid.Queue != "" {
		base.Grid.Queue = loaded.Grid.Queue
	}
	if len(loaded.Stages) > 0 {
		base.Stages = loaded.Stages
	}

	return nil
}

// Validate checks structural invariants: unique stage names, scripts present.
func (c *PipelineConfig) Validate() error {
	seen := make(map[string]bool, len(c.Stages))
	for i, stage := range c.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage %d: missing name", i)
		}
		if seen[stage.Name] {
			return fmt.Errorf("stage %q: duplicate name", stage.Name)
		}
		seen[stage.Name] = true
		if stage.Script == "" {
			return fmt.Errorf("stage %q: missing script", stage.Name)
		}
	}
	return nil
}
