// Package config loads and saves the app's JSON settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	appDirName = "limitswatch"
	fileName   = "config.json"
)

// Config is the persisted user settings.
type Config struct {
	RefreshInterval string          `json:"refresh_interval"`
	Enabled         map[string]bool `json:"enabled_providers"`
	Notifications   bool            `json:"notifications"`
}

// Default returns the settings used when no config file exists. Providers
// start disabled; the user opts in per provider.
func Default() Config {
	return Config{
		RefreshInterval: "5m",
		Enabled:         make(map[string]bool),
		Notifications:   true,
	}
}

// Dir returns the per-OS config directory for this app.
func Dir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA not set")
		}
		return filepath.Join(appData, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// Load reads the config from dir, falling back to defaults when the file
// is missing. Unknown fields are ignored; missing fields keep defaults.
func Load(dir string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Enabled == nil {
		cfg.Enabled = make(map[string]bool)
	}
	return cfg, nil
}

// Save writes the config to dir, creating it if needed.
func Save(dir string, cfg Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
