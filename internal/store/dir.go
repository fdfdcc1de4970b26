package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DirStore keeps one document per file in a directory. The file name is both the
// id and the name of an entry.
type DirStore struct {
	dir string
}

// NewDirStore opens dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create schema dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// List returns the stored documents sorted by name.
func (s *DirStore) List(ctx context.Context) ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if _, err := CleanName(f.Name()); err != nil || filepath.Ext(f.Name()) == "" {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: f.Name(), Name: f.Name(), UpdatedAt: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Get reads the document with the given id.
func (s *DirStore) Get(ctx context.Context, id string) (Document, error) {
	name, err := CleanName(id)
	if err != nil || name != id {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Document{Entry: Entry{ID: name, Name: name, UpdatedAt: info.ModTime()}, Data: data}, nil
}

// Put writes doc under name, replacing any existing document. The write goes to a
// temporary file first so readers never see a partial document.
func (s *DirStore) Put(ctx context.Context, name string, doc []byte) (Entry, error) {
	name, err := CleanName(name)
	if err != nil {
		return Entry{}, err
	}

	tmp, err := os.CreateTemp(s.dir, ".put-*")
	if err != nil {
		return Entry{}, fmt.Errorf("write schema: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return Entry{}, fmt.Errorf("write schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Entry{}, fmt.Errorf("write schema: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Entry{}, fmt.Errorf("write schema: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: name, Name: name, UpdatedAt: info.ModTime()}, nil
}

// Delete removes the document with the given id.
func (s *DirStore) Delete(ctx context.Context, id string) error {
	name, err := CleanName(id)
	if err != nil || name != id {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	err = os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
