// Package cache persists the last known usage snapshot per provider so a
// restart starts from recent data instead of blank panels.
package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/limitswatch/limitswatch/internal/core"
)

const fileName = "usage_cache.json"

type cacheFile struct {
	Providers map[string]core.UsageData `json:"providers"`
}

// Manager is a mutex-guarded snapshot map backed by a JSON file.
type Manager struct {
	mu        sync.Mutex
	path      string
	providers map[string]core.UsageData
}

// New loads the cache from dir. A missing or unparseable file starts an
// empty cache; stale data is worse than none.
func New(dir string) *Manager {
	m := &Manager{
		path:      filepath.Join(dir, fileName),
		providers: make(map[string]core.UsageData),
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return m
	}
	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Printf("[cache] ignoring corrupt cache file %s: %v", m.path, err)
		return m
	}
	if file.Providers != nil {
		m.providers = file.Providers
	}
	return m
}

func (m *Manager) Get(providerID string) (core.UsageData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.providers[providerID]
	return data, ok
}

func (m *Manager) Set(providerID string, data core.UsageData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[providerID] = data
}

// GetAll returns a copy of every cached snapshot.
func (m *Manager) GetAll() map[string]core.UsageData {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]core.UsageData, len(m.providers))
	for id, data := range m.providers {
		out[id] = data
	}
	return out
}

func (m *Manager) Clear(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.providers, providerID)
}

func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = make(map[string]core.UsageData)
}

// Save writes the cache atomically via temp-then-rename so a crash
// mid-write leaves the previous file intact.
func (m *Manager) Save() error {
	m.mu.Lock()
	file := cacheFile{Providers: make(map[string]core.UsageData, len(m.providers))}
	for id, data := range m.providers {
		file.Providers[id] = data
	}
	m.mu.Unlock()

	out, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming cache: %w", err)
	}
	return nil
}
