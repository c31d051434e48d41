package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gravitas-games/storagehub/internal/atomicfile"
)

// FileStore keeps one YAML file per key under <dir>/<world>/<character>.yaml.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing key.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.dir, safeName(key.WorldID), safeName(key.CharacterID)+".yaml")
}

// Load reads the record for key.
func (s *FileStore) Load(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	data, err := atomicfile.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return NewRecord(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}

	rec := NewRecord()
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", key, err)
	}
	rec.Normalize()
	return rec, nil
}

// Save writes the record for key.
func (s *FileStore) Save(ctx context.Context, key Key, rec *Record) error {
	if err := key.Validate(); err != nil {
		return err
	}
	c := rec.Clone()
	c.Normalize()
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}
	if err := atomicfile.WriteFile(s.Path(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// safeName maps an id onto a single path element.
func safeName(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
