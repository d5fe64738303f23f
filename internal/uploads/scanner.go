package uploads

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"edurag/internal/loader"
)

// ScannedFile represents a supported document found in a collection directory.
type ScannedFile struct {
	Collection string
	Name       string // Base name, used as the source ID
	AbsPath    string
}

// Scan lists the supported documents of a collection in name order. A collection
// without a directory has no files.
func (m *Manager) Scan(ctx context.Context, collectionName string) ([]ScannedFile, error) {
	dir, err := m.Dir(collectionName)
	if err != nil {
		return nil, err
	}
	key := filepath.Base(dir)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection %s: %w", key, err)
	}

	var files []ScannedFile
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Skip directories, hidden files and in-flight uploads
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !loader.IsSupported(e.Name()) {
			continue
		}
		files = append(files, ScannedFile{
			Collection: key,
			Name:       e.Name(),
			AbsPath:    filepath.Join(dir, e.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Paths returns the absolute paths of files.
func Paths(files []ScannedFile) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.AbsPath
	}
	return paths
}
