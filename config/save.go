package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveUserConfig writes cfg to the user config file, creating the
// directory if needed. It uses atomicWriteFile so a crash mid-write never
// leaves a truncated config behind.
func SaveUserConfig(cfg *Config) error {
	path, err := UserConfigPath()
	if err != nil {
		return err
	}
	return saveYAML(path, cfg)
}

// SaveProjectConfig writes cfg to the project config file under
// projectRoot.
func SaveProjectConfig(projectRoot string, cfg *Config) error {
	return saveYAML(ProjectConfigPath(projectRoot), cfg)
}

func saveYAML(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return atomicWriteFile(path, data, 0644)
}
