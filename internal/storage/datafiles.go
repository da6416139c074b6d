package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"hisab/internal/core"
)

var dataName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// DataStore keeps named JSON documents (UI state, drafts, exported views) as
// files under one directory.
type DataStore struct {
	dir string
}

func NewDataStore(dir string) (*DataStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &DataStore{dir: dir}, nil
}

func (s *DataStore) path(name string) (string, error) {
	if !dataName.MatchString(name) {
		return "", fmt.Errorf("%w: invalid data name %q", core.ErrValidation, name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Save writes data atomically. data must be valid JSON.
func (s *DataStore) Save(name string, data json.RawMessage) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: data for %q is not valid JSON", core.ErrValidation, name)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Load returns the stored document or core.ErrNotFound.
func (s *DataStore) Load(name string) (json.RawMessage, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("data %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return b, nil
}
