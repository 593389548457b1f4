package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessConfig describes an agent runtime launched as an external process.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of runtimes.yaml.
type ConfigFile struct {
	Runtimes []ProcessConfig `yaml:"runtimes" json:"runtimes"`
}

// LoadRuntimes reads a configuration file (YAML or JSON) and returns the runtimes by name.
// A missing file yields an empty registry.
func LoadRuntimes(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read runtimes config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	runtimes := make(map[string]ProcessConfig)
	for _, rt := range cfg.Runtimes {
		if rt.Name == "" {
			continue
		}
		if rt.Command == "" {
			return nil, fmt.Errorf("runtime %q has no command", rt.Name)
		}
		runtimes[rt.Name] = rt
	}
	return runtimes, nil
}
