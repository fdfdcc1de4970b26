// Package store keeps schema documents by name.
//
// Two implementations exist: DirStore (a directory of .json/.yaml files, useful
// for local runs and tests) and PGStore (a PostgreSQL table). Stores hold raw
// documents; parsing them into a schema.Schema is the caller's job.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetguard/internal/schema"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("schema not found")

	// ErrInvalidName is returned for document names that cannot be stored.
	ErrInvalidName = errors.New("invalid schema name")
)

// Entry describes a stored document.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is a stored schema document and its metadata.
type Document struct {
	Entry
	Data []byte
}

// IsYAML reports whether the document was stored under a YAML name.
func (d Document) IsYAML() bool {
	return schema.IsYAMLFile(d.Name)
}

// Schema parses the document.
func (d Document) Schema() (*schema.Schema, error) {
	if d.IsYAML() {
		return schema.ParseYAML(d.Data)
	}
	return schema.Parse(d.Data)
}

// Store is a collection of schema documents.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id string) (Document, error)
	Put(ctx context.Context, name string, doc []byte) (Entry, error)
	Delete(ctx context.Context, id string) error
}

// CleanName validates a document name. Names are plain file names with a .json,
// .yaml or .yml extension; a name without an extension gets ".json".
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return name, nil
	case "":
		return name + ".json", nil
	}
	return "", fmt.Errorf("%w: %q must end in .json, .yaml or .yml", ErrInvalidName, name)
}
