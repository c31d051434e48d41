// Package atomicfile replaces files without ever leaving the previous good
// copy unrecoverable: data goes to <path>.tmp, the current file is rotated to
// <path>.bak, then the temp file is renamed into place.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	backup := path + ".bak"
	if _, err := os.Stat(path); err == nil {
		os.Remove(backup)
		if err := os.Rename(path, backup); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to rotate backup: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		os.Remove(tmp)
		return fmt.Errorf("failed to stat target: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		// put the previous file back so readers still find a good copy
		if _, statErr := os.Stat(backup); statErr == nil {
			_ = os.Rename(backup, path)
		}
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return nil
}

// ReadFile reads path, falling back to <path>.bak when the primary file is
// missing (an interrupted write between rotate and rename).
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	bak, bakErr := os.ReadFile(path + ".bak")
	if bakErr != nil {
		return nil, err
	}
	return bak, nil
}
