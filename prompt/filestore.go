package prompt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

type fileStore struct {
	dir string
}

// NewFileStore creates a Store over the Markdown files in dir. Keys are
// /-separated paths relative to dir and cannot resolve outside it.
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir}
}

// List returns the .md keys under the store directory, sorted. Hidden
// files and directories are skipped; a missing directory lists nothing.
func (s *fileStore) List(_ context.Context) ([]string, error) {
	root, err := os.OpenRoot(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer root.Close()

	var keys []string
	err = fs.WalkDir(root.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && path.Ext(p) == ".md" {
			keys = append(keys, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	slices.Sort(keys)
	return keys, nil
}

func (s *fileStore) Load(_ context.Context, keys ...string) ([]Entry, error) {
	root, err := os.OpenRoot(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		if len(keys) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keys[0])
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer root.Close()

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		data, err := root.ReadFile(filepath.FromSlash(key))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		case err != nil:
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
		}
		entries = append(entries, Entry{Key: key, Value: data})
	}
	return entries, nil
}

// Save writes each entry to a sibling temporary file and renames it into
// place, so a reader sees either the old template or the new one.
func (s *fileStore) Save(_ context.Context, entries ...Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	defer root.Close()

	for _, e := range entries {
		name := filepath.FromSlash(e.Key)
		tmp := filepath.Join(filepath.Dir(name), "."+filepath.Base(name)+".tmp")

		if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		if err := root.WriteFile(tmp, e.Value, 0o644); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		if err := root.Rename(tmp, name); err != nil {
			root.Remove(tmp)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
	}
	return nil
}
