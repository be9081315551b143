package repository

import (
	"context"

	"clinicdocs/internal/model"
)

// DocumentRepository defines data access for generic collection documents stored as JSON rows.
// No business logic here, only persistence.
// Missing rows are reported as sql.ErrNoRows.
type DocumentRepository interface {
	// FindByKey returns the document stored under (collection, id).
	FindByKey(ctx context.Context, collection, id string) (*model.Document, error)

	// Upsert inserts the document or replaces the payload of an existing one.
	// created_at is kept on replace; updated_at is set by the database.
	Upsert(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Merge applies a shallow top-level merge of patch into the stored payload.
	Merge(ctx context.Context, collection, id string, patch model.Fields) (*model.Document, error)

	// MergeNested sets key inside the object stored at top-level field, in one statement,
	// leaving the object's other keys alone. A missing or non-object field starts empty.
	MergeNested(ctx context.Context, collection, id, field, key string, value any) (*model.Document, error)

	// Delete removes the row. It returns sql.ErrNoRows if nothing was deleted.
	Delete(ctx context.Context, collection, id string) error

	// ListByCollection returns every document of a collection, newest first.
	ListByCollection(ctx context.Context, collection string) ([]model.Document, error)
}

// UserRepository defines data access for the typed users table.
type UserRepository interface {
	// Upsert inserts the user or replaces every column of an existing one.
	Upsert(ctx context.Context, u *model.User) (*model.User, error)

	// FindByID returns a user by its ID.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Update overwrites an existing user. It returns sql.ErrNoRows if the user does not exist.
	Update(ctx context.Context, u *model.User) (*model.User, error)

	// Deactivate clears the active flag. It returns sql.ErrNoRows if the user does not exist.
	Deactivate(ctx context.Context, id string) error

	// List returns all users, newest first.
	List(ctx context.Context) ([]model.User, error)
}
