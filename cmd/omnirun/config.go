package main

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig holds the defaults read from ~/.omnirun.yaml. Flags override
// every field.
type fileConfig struct {
	Backend    string            `yaml:"backend"`
	Model      string            `yaml:"model"`
	WorkDir    string            `yaml:"work_dir"`
	Permission string            `yaml:"permission"`
	CLIPaths   map[string]string `yaml:"cli_paths"`
	Env        map[string]string `yaml:"env"`
}

// loadConfig reads the config file; a missing file is not an error.
func loadConfig() (fileConfig, error) {
	var cfg fileConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Join(home, ".omnirun.yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
