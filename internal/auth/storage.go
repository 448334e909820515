package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoBundle indicates no credential bundle is stored.
var ErrNoBundle = errors.New("no stored credentials")

// Storage persists a single credential bundle as a permission-restricted
// JSON file. Tokens are short-lived, so file permissions (0600) are the
// protection boundary rather than encryption.
type Storage struct {
	path string
}

// NewStorage creates a storage backed by the given file path.
func NewStorage(path string) *Storage {
	return &Storage{path: path}
}

// Store writes the bundle, fully replacing any previous one.
func (s *Storage) Store(b *Bundle) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	// WriteFile does not change the mode of an existing file.
	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("restrict credentials: %w", err)
	}
	return nil
}

// Load reads the current bundle. Returns ErrNoBundle if none is stored.
func (s *Storage) Load() (*Bundle, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoBundle
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &b, nil
}

// Clear removes the stored bundle. Clearing when absent is not an error.
func (s *Storage) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
