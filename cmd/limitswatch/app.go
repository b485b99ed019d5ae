package main

import (
	"fmt"

	"github.com/limitswatch/limitswatch/internal/cache"
	"github.com/limitswatch/limitswatch/internal/config"
	"github.com/limitswatch/limitswatch/internal/core"
	"github.com/limitswatch/limitswatch/internal/providers"
	"github.com/limitswatch/limitswatch/internal/secrets"
)

// app carries the shared wiring every subcommand needs.
type app struct {
	configDir string
	cfg       config.Config
	registry  *providers.Registry
	cache     *cache.Manager
	store     core.SecretStore
}

func newApp(configDir string, cfg config.Config) *app {
	store := secrets.NewKeyring()
	registry := providers.New(providers.All(store)...)
	for id, enabled := range cfg.Enabled {
		registry.SetEnabled(id, enabled)
	}
	return &app{
		configDir: configDir,
		cfg:       cfg,
		registry:  registry,
		cache:     cache.New(configDir),
		store:     store,
	}
}

// saveConfig persists the current enabled flags and settings.
func (a *app) saveConfig() error {
	a.cfg.Enabled = make(map[string]bool)
	for _, id := range a.registry.AllIDs() {
		a.cfg.Enabled[id] = a.registry.IsEnabled(id)
	}
	if err := config.Save(a.configDir, a.cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
