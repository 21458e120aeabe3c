package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr            string `json:"addr" yaml:"addr" toml:"addr"`
	CacheRoot       string `json:"cache_root" yaml:"cache_root" toml:"cache_root"`
	HubEndpoint     string `json:"hub_endpoint" yaml:"hub_endpoint" toml:"hub_endpoint"`
	Token           string `json:"token" yaml:"token" toml:"token"`
	RuntimeBaseURL  string `json:"runtime_base_url" yaml:"runtime_base_url" toml:"runtime_base_url"`
	ListingTTLHours int    `json:"listing_ttl_hours" yaml:"listing_ttl_hours" toml:"listing_ttl_hours"`
	Device          string `json:"device" yaml:"device" toml:"device"`
	EnableVulkan    bool   `json:"enable_vulkan" yaml:"enable_vulkan" toml:"enable_vulkan"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
