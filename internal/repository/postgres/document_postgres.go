package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"clinicdocs/internal/model"
	"clinicdocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// Payloads live in the JSONB column of collection_documents.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentCols = `collection, id, data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d   model.Document
		raw []byte
	)
	if err := row.Scan(&d.Collection, &d.ID, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Data = model.Fields{}
	if len(raw) > 0 {
		data, err := model.DecodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s payload: %w", d.Collection, d.ID, err)
		}
		d.Data = data
	}
	return &d, nil
}

func encodeFields(f model.Fields) (string, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// FindByKey fetches a single document by its composite key.
func (r *DocumentPostgres) FindByKey(ctx context.Context, collection, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentCols + `
		FROM collection_documents
		WHERE collection = $1 AND id = $2
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, collection, id))
}

// Upsert inserts the document or fully replaces the payload of the existing row.
func (r *DocumentPostgres) Upsert(ctx context.Context, doc *model.Document) (*model.Document, error) {
	data, err := encodeFields(doc.Data)
	if err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO collection_documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
		RETURNING ` + documentCols
	return scanDocument(r.db.QueryRowContext(ctx, q, doc.Collection, doc.ID, data))
}

// Merge overlays the top-level keys of patch onto the stored payload in a single statement.
func (r *DocumentPostgres) Merge(ctx context.Context, collection, id string, patch model.Fields) (*model.Document, error) {
	data, err := encodeFields(patch)
	if err != nil {
		return nil, err
	}
	const q = `
		UPDATE collection_documents
		SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING ` + documentCols
	return scanDocument(r.db.QueryRowContext(ctx, q, collection, id, data))
}

// MergeNested writes data[field][key] = value atomically, so concurrent writers of
// different keys under the same field do not overwrite each other.
func (r *DocumentPostgres) MergeNested(ctx context.Context, collection, id, field, key string, value any) (*model.Document, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s.%s: %w", field, key, err)
	}
	const q = `
		UPDATE collection_documents
		SET data = jsonb_set(
				data,
				ARRAY[$3::text],
				COALESCE(
					CASE WHEN jsonb_typeof(data->$3) = 'object' THEN data->$3 END,
					'{}'::jsonb
				) || jsonb_build_object($4::text, $5::jsonb)
			),
			updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING ` + documentCols
	return scanDocument(r.db.QueryRowContext(ctx, q, collection, id, field, key, string(b)))
}

// Delete removes a document row; a missing row is reported as sql.ErrNoRows.
func (r *DocumentPostgres) Delete(ctx context.Context, collection, id string) error {
	const q = `DELETE FROM collection_documents WHERE collection = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByCollection returns all documents of one collection ordered by creation time, newest first.
func (r *DocumentPostgres) ListByCollection(ctx context.Context, collection string) ([]model.Document, error) {
	const q = `
		SELECT ` + documentCols + `
		FROM collection_documents
		WHERE collection = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
