package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/vnykmshr/invcache-go/internal/store"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store keeps each slot in its own file under a directory. Writes go to a
// temporary file that is renamed into place, so a crash mid-write leaves the
// previous snapshot intact.
type Store struct {
	dir string
}

var _ store.Store = (*Store)(nil)

// New creates a file store rooted at dir, creating it if needed
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, unsafeChars.ReplaceAllString(name, "_")+".json")
}

// Get reads the slot file
func (s *Store) Get(_ context.Context, name string) (string, bool, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", name, err)
	}
	return string(data), true, nil
}

// Set atomically replaces the slot file
func (s *Store) Set(_ context.Context, name, value string) error {
	tmp, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write slot %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync slot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close slot %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("failed to replace slot %s: %w", name, err)
	}
	return nil
}

// Delete removes the slot file
func (s *Store) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete slot %s: %w", name, err)
	}
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
