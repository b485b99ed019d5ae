// Package secrets provides the credential-storage collaborators: an OS
// keychain store, an in-memory store for tests, and an encrypted blob file
// for bulk data.
package secrets

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

// ServiceName identifies this app's entries in the OS keychain.
const ServiceName = "com.limitswatch"

// Keyring stores credentials in the OS keychain (Keychain on macOS,
// Credential Manager on Windows, Secret Service on Linux).
type Keyring struct {
	service string
}

func NewKeyring() *Keyring {
	return &Keyring{service: ServiceName}
}

func (k *Keyring) Set(key, value string) error {
	return keyring.Set(k.service, key, value)
}

func (k *Keyring) Get(key string) (string, bool, error) {
	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (k *Keyring) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Memory is an in-process secret store for tests and dry runs.
type Memory struct {
	mu sync.Mutex
	m  map[string]string

	// FailSet forces the next Set to fail, for all-or-nothing persistence
	// tests.
	FailSet error
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSet != nil {
		err := s.FailSet
		s.FailSet = nil
		return err
	}
	s.m[key] = value
	return nil
}

func (s *Memory) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *Memory) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
