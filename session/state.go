package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// StateStore is a flat key/value JSON file used to pass small pieces of
// state across process restarts. It is not used by the core turn loop.
type StateStore struct {
	path string
}

// NewStateStore creates a store backed by the given file path. An empty
// path defaults to .parley/state.json under the working directory.
func NewStateStore(path string) *StateStore {
	if path == "" {
		path = filepath.Join(".parley", "state.json")
	}
	return &StateStore{path: path}
}

func (s *StateStore) load() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("could not read state file %s: %w", s.path, err)
	}
	state := map[string]interface{}{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("could not parse state file %s: %w", s.path, err)
	}
	return state, nil
}

func (s *StateStore) save(state map[string]interface{}) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create state directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// Set stores a value under key.
func (s *StateStore) Set(key string, value interface{}) error {
	state, err := s.load()
	if err != nil {
		return err
	}
	state[key] = value
	return s.save(state)
}

// Get retrieves the value for key. The second return value reports
// whether the key was present.
func (s *StateStore) Get(key string) (interface{}, bool, error) {
	state, err := s.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := state[key]
	return v, ok, nil
}

// Keys returns all stored keys in sorted order.
func (s *StateStore) Keys() ([]string, error) {
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes a single key. Removing an absent key is not an error.
func (s *StateStore) Delete(key string) error {
	state, err := s.load()
	if err != nil {
		return err
	}
	delete(state, key)
	return s.save(state)
}

// Clear removes the state file entirely.
func (s *StateStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not remove state file: %w", err)
	}
	return nil
}
