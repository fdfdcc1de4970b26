package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"gopkg.in/yaml.v3"
)

// DBTX is the subset of pgx used by PGStore.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS validation_schemas (
	id         uuid PRIMARY KEY,
	name       text NOT NULL UNIQUE,
	document   jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
)`

const upsertSQL = `
INSERT INTO validation_schemas (id, name, document)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE
SET document = EXCLUDED.document, updated_at = now()
RETURNING id, name, updated_at`

// PGStore keeps documents in the validation_schemas table. Documents are stored
// as jsonb; YAML input is converted to JSON first.
type PGStore struct {
	db DBTX
}

// NewPGStore wraps a pool or transaction.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

// EnsureTable creates the backing table if it does not exist.
func (s *PGStore) EnsureTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create validation_schemas: %w", err)
	}
	return nil
}

// List returns every document's metadata ordered by name.
func (s *PGStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, updated_at FROM validation_schemas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get loads a document by id.
func (s *PGStore) Get(ctx context.Context, id string) (Document, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var (
		doc  Document
		pgID pgtype.UUID
		ts   pgtype.Timestamptz
	)
	err = s.db.QueryRow(ctx,
		`SELECT id, name, updated_at, document FROM validation_schemas WHERE id = $1`, uid,
	).Scan(&pgID, &doc.Name, &ts, &doc.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get schema: %w", err)
	}
	doc.ID = uuid.UUID(pgID.Bytes).String()
	doc.UpdatedAt = ts.Time
	return doc, nil
}

// Put inserts or replaces the document stored under name.
func (s *PGStore) Put(ctx context.Context, name string, doc []byte) (Entry, error) {
	name, err := CleanName(name)
	if err != nil {
		return Entry{}, err
	}

	data := doc
	if (Document{Entry: Entry{Name: name}}).IsYAML() {
		if data, err = yamlToJSON(doc); err != nil {
			return Entry{}, err
		}
	}

	row := s.db.QueryRow(ctx, upsertSQL, uuid.New(), name, data)
	e, err := scanEntry(row)
	if err != nil {
		return Entry{}, fmt.Errorf("put schema: %w", err)
	}
	return e, nil
}

// Delete removes a document by id.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM validation_schemas WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e  Entry
		id pgtype.UUID
		ts pgtype.Timestamptz
	)
	if err := row.Scan(&id, &e.Name, &ts); err != nil {
		return Entry{}, err
	}
	e.ID = uuid.UUID(id.Bytes).String()
	e.UpdatedAt = ts.Time
	return e, nil
}

// yamlToJSON re-encodes a YAML document as JSON for the jsonb column.
func yamlToJSON(doc []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}
