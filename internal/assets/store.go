// Package assets persists generated artifacts as content-addressed files
// under a single directory. Writes are append-only: an existing file is
// never mutated in place.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store writes and reads artifacts by cache key.
type Store struct {
	dir string
}

// NewStore creates the assets directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("assets directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Save writes data to <dir>/<key>.<ext> and returns the filename. If the
// file already exists it is left untouched.
func (s *Store) Save(key, ext string, data []byte) (string, error) {
	name := s.filename(key, ext)
	path := filepath.Join(s.dir, name)

	if _, err := os.Stat(path); err == nil {
		return name, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return name, nil
}

// Load reads the artifact for key, reporting os.ErrNotExist when the
// backing file has been removed so callers can evict their index entry.
func (s *Store) Load(key, ext string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, s.filename(key, ext)))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Exists reports whether the artifact file for key is still on disk.
func (s *Store) Exists(key, ext string) bool {
	_, err := os.Stat(filepath.Join(s.dir, s.filename(key, ext)))
	return err == nil
}

func (s *Store) filename(key, ext string) string {
	return key + "." + strings.TrimPrefix(ext, ".")
}
