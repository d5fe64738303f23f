// Package uploads stores user-supplied documents on disk, one directory per collection.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"edurag/internal/collection"
	"edurag/internal/loader"
	"edurag/internal/storage"
)

// ErrInvalidFilename is returned for names that cannot be stored safely.
var ErrInvalidFilename = errors.New("invalid filename")

// SavedFile describes a stored upload.
type SavedFile struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
	Path       string `json:"-"`
	Size       int64  `json:"size"`
}

// Manager resolves collection directories under a single uploads root.
type Manager struct {
	root        string
	collections storage.CollectionStore
}

// NewManager creates the uploads root if needed. collections may be nil; when set,
// saving a file registers its collection.
func NewManager(root string, collections storage.CollectionStore) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &Manager{root: abs, collections: collections}, nil
}

// Root returns the absolute uploads directory.
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the directory of the named collection.
func (m *Manager) Dir(collectionName string) (string, error) {
	key, err := collection.Key(collectionName)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.root, key), nil
}

// Save writes r to the collection's directory under the base name of filename,
// replacing any earlier file with that name. The write goes through a temporary
// file so a failed upload never leaves a truncated document behind.
func (m *Manager) Save(ctx context.Context, collectionName, filename string, r io.Reader) (SavedFile, error) {
	name, err := cleanName(filename)
	if err != nil {
		return SavedFile{}, err
	}
	if !loader.IsSupported(name) {
		return SavedFile{}, fmt.Errorf("%w: %s (supported: %s)",
			loader.ErrUnsupportedFormat, name, strings.Join(loader.SupportedExtensions(), ", "))
	}
	dir, err := m.Dir(collectionName)
	if err != nil {
		return SavedFile{}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return SavedFile{}, fmt.Errorf("failed to create collection dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return SavedFile{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return SavedFile{}, fmt.Errorf("failed to write upload: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return SavedFile{}, fmt.Errorf("failed to store upload: %w", err)
	}

	key := filepath.Base(dir)
	if m.collections != nil {
		if _, err := m.collections.GetOrCreate(ctx, key); err != nil {
			return SavedFile{}, fmt.Errorf("failed to register collection: %w", err)
		}
	}
	return SavedFile{Collection: key, Name: name, Path: path, Size: size}, nil
}

// Resolve returns the paths of previously saved files of a collection.
func (m *Manager) Resolve(collectionName string, names []string) ([]string, error) {
	dir, err := m.Dir(collectionName)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(names))
	for _, n := range names {
		name, err := cleanName(n)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("file %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Collections lists the collection directories present under the root.
func (m *Manager) Collections() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads dir: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}

// cleanName reduces filename to a safe base name.
func cleanName(filename string) (string, error) {
	name := filepath.Base(filepath.Clean(strings.ReplaceAll(filename, "\\", "/")))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return name, nil
}
