package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine's on-disk configuration: a small YAML document
// read once at startup.
type Config struct {
	NumHTEntries int    `yaml:"num_ht_entries"`
	NumBuf       int    `yaml:"num_buf"`
	DataDir      string `yaml:"data_dir"`
}

// LoadConfig reads and parses a Config from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config %s: %w", path, err)
	}
	return cfg, nil
}
