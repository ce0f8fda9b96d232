// Package prefs is the durable per-device key/value store holding
// session flags between runs. Values live in one YAML file; every put
// rewrites it via a temp-file rename so a crash never leaves a torn
// document.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Store struct {
	mu   sync.Mutex
	path string
	data map[string]any
}

// Open loads the store at path. A missing file yields an empty store;
// a malformed one is an error rather than silent data loss.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs: path required")
	}
	s := &Store{path: path, data: make(map[string]any)}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("prefs: parse %s: %w", path, err)
	}
	if s.data == nil {
		s.data = make(map[string]any)
	}
	return s, nil
}

func (s *Store) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.data[key].(string)
	return v
}

func (s *Store) PutString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.persistLocked()
}

func (s *Store) GetBool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.data[key].(bool)
	return v
}

func (s *Store) PutBool(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.persistLocked()
}

// Clear drops every key. Invoked at sign-out.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	b, err := yaml.Marshal(s.data)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
