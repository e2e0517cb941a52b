// Package fileutil provides case-insensitive file lookup over real and embedded file systems.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive returns the path of the file in dir whose name
// matches filename ignoring case. Directories are skipped.
//
//	p, err := FindFileCaseInsensitive("/songs", "Theme.MID") // finds "theme.mid"
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	if name, ok := matchEntry(entries, filename); ok {
		return filepath.Join(dir, name), nil
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", fs.ErrNotExist, filename, dir)
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive over an fs.FS
// (embed.FS, os.DirFS, fstest.MapFS). Returned paths use forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	if name, ok := matchEntry(entries, filename); ok {
		return path.Join(dir, name), nil
	}
	return "", fmt.Errorf("%w: %s (searched in %s)", fs.ErrNotExist, filename, dir)
}

func matchEntry(entries []fs.DirEntry, filename string) (string, bool) {
	want := strings.ToLower(filename)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == want {
			return entry.Name(), true
		}
	}
	return "", false
}
