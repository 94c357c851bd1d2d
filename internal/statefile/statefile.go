// Package statefile persists small single-line values that must survive a
// crash, such as the number of the pull request currently waiting on CI.
package statefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// WriteAtomic writes data to a file atomically using a temp file in the same
// directory plus rename, so the file is never observed half-written.
func WriteAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmpFile, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// The temp file is removed on any failure before the rename.
	defer func() {
		_ = fs.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	return nil
}

// Store reads and writes one single-line value at a fixed path.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a Store for path on the given filesystem.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Save atomically writes value as the file's single line.
func (s *Store) Save(value string) error {
	return WriteAtomic(s.fs, s.path, []byte(value+"\n"))
}

// Load returns the stored value. ok is false when the file does not exist or
// holds only whitespace.
func (s *Store) Load() (value string, ok bool, err error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", s.path, err)
	}

	value = strings.TrimSpace(string(data))
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Clear removes the file. Clearing an absent file is not an error.
func (s *Store) Clear() error {
	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}

// SaveInt stores an integer value.
func (s *Store) SaveInt(n int) error {
	return s.Save(strconv.Itoa(n))
}

// LoadInt returns the stored value parsed as an integer.
func (s *Store) LoadInt() (n int, ok bool, err error) {
	value, ok, err := s.Load()
	if err != nil || !ok {
		return 0, ok, err
	}

	n, err = strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return n, true, nil
}
