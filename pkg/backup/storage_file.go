package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// snapshotExt is appended to snapshot names that carry no extension, so
// every stored file is recognizable as a JSON document.
const snapshotExt = ".json"

// FileStorage keeps snapshots as flat JSON files in one directory.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// fileName flattens any path components in name and normalizes the
// extension. Snapshot names can never escape the storage directory.
func (fs *FileStorage) fileName(name string) string {
	name = filepath.Base(name)
	if filepath.Ext(name) == "" {
		name += snapshotExt
	}
	return name
}

// Save writes the snapshot through a temp file and renames it into place,
// so a crashed save never leaves a half-written snapshot behind.
func (fs *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	tmp, err := os.CreateTemp(fs.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(fs.dir, fs.fileName(name))); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", name, err)
	}
	return nil
}

func (fs *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(fs.dir, fs.fileName(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", name, err)
	}
	return file, nil
}

// List returns stored snapshot names with the given prefix. Dotfiles are
// skipped; they are either in-flight temp files or not ours.
func (fs *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (fs *FileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(fs.dir, fs.fileName(name)))
}
