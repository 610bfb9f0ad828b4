package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ToolServerFileConfig is the standalone tool-servers.json listing
// out-of-process tool endpoints. Nothing in this repository loads the file
// or dials its entries; it is a load/save helper only.
type ToolServerFileConfig struct {
	Servers []ToolServerEntry `json:"servers"`
}

// ToolServerEntry is one tool server endpoint.
type ToolServerEntry struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Enabled  bool   `json:"enabled"`
}

// LoadToolServers loads the tool-server list from <configDir>/tool-servers.json.
// If the file does not exist, it creates an empty one (best-effort) and
// returns an empty list.
func LoadToolServers(configDir string) (*ToolServerFileConfig, string, error) {
	path := filepath.Join(configDir, "tool-servers.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &ToolServerFileConfig{Servers: []ToolServerEntry{}}
			if mkErr := os.MkdirAll(configDir, 0755); mkErr != nil {
				return cfg, path, nil
			}
			_ = SaveToolServers(path, cfg)
			return cfg, path, nil
		}
		return nil, path, err
	}

	var cfg ToolServerFileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// SaveToolServers writes the tool-server list to disk.
func SaveToolServers(path string, cfg *ToolServerFileConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
