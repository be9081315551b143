package service

import (
	"context"
	"database/sql"
	"errors"

	"clinicdocs/internal/model"
	"clinicdocs/internal/repository"
)

// DeletePolicy tells what Remove does to a document.
type DeletePolicy string

const (
	// DeleteHard removes the row.
	DeleteHard DeletePolicy = "hard"
	// DeleteDeactivate keeps the row and marks it inactive.
	DeleteDeactivate DeletePolicy = "deactivate"
)

// Collection is the per-collection handler the DocumentStore routes operations to.
// Implementations receive validated ids and payloads and return service sentinel errors.
type Collection interface {
	// Read returns nil, nil when the document does not exist.
	Read(ctx context.Context, id string) (*model.Document, error)
	// Write creates the document or replaces its payload.
	Write(ctx context.Context, id string, fields model.Fields) (*model.Document, error)
	// Patch merges top-level keys into an existing document, ErrNotFound if absent.
	Patch(ctx context.Context, id string, fields model.Fields) (*model.Document, error)
	// MergeField sets key inside the object-valued top-level field, ErrNotFound if absent.
	MergeField(ctx context.Context, id, field, key string, value any) (*model.Document, error)
	// Remove applies the collection's DeletePolicy, ErrNotFound if absent.
	Remove(ctx context.Context, id string) error
	// List returns the collection's documents, newest first.
	List(ctx context.Context) ([]model.Document, error)
	DeletePolicy() DeletePolicy
}

// jsonCollection stores documents as JSON rows in the shared collection_documents table.
type jsonCollection struct {
	name string
	repo repository.DocumentRepository
}

var _ Collection = (*jsonCollection)(nil)

func newJSONCollection(name string, repo repository.DocumentRepository) *jsonCollection {
	return &jsonCollection{name: name, repo: repo}
}

func (c *jsonCollection) Read(ctx context.Context, id string) (*model.Document, error) {
	doc, err := c.repo.FindByKey(ctx, c.name, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateErr("read "+c.name, err)
	}
	return doc, nil
}

func (c *jsonCollection) Write(ctx context.Context, id string, fields model.Fields) (*model.Document, error) {
	if fields == nil {
		fields = model.Fields{}
	}
	doc, err := c.repo.Upsert(ctx, &model.Document{Collection: c.name, ID: id, Data: fields})
	if err != nil {
		return nil, translateErr("write "+c.name, err)
	}
	return doc, nil
}

func (c *jsonCollection) Patch(ctx context.Context, id string, fields model.Fields) (*model.Document, error) {
	if fields == nil {
		fields = model.Fields{}
	}
	doc, err := c.repo.Merge(ctx, c.name, id, fields)
	if err != nil {
		return nil, translateErr("patch "+c.name, err)
	}
	return doc, nil
}

func (c *jsonCollection) MergeField(ctx context.Context, id, field, key string, value any) (*model.Document, error) {
	doc, err := c.repo.MergeNested(ctx, c.name, id, field, key, value)
	if err != nil {
		return nil, translateErr("merge "+c.name+"."+field, err)
	}
	return doc, nil
}

func (c *jsonCollection) Remove(ctx context.Context, id string) error {
	return translateErr("remove "+c.name, c.repo.Delete(ctx, c.name, id))
}

func (c *jsonCollection) List(ctx context.Context) ([]model.Document, error) {
	docs, err := c.repo.ListByCollection(ctx, c.name)
	if err != nil {
		return nil, translateErr("list "+c.name, err)
	}
	return docs, nil
}

func (c *jsonCollection) DeletePolicy() DeletePolicy {
	return DeleteHard
}
