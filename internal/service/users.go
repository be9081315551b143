package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"clinicdocs/internal/model"
	"clinicdocs/internal/repository"
)

// UsersCollection is served by the typed users table instead of the JSON table.
const UsersCollection = "users"

// userCollection presents rows of the users table as documents with the fields
// email, name, role, phone and active. Remove deactivates the account.
type userCollection struct {
	repo repository.UserRepository
}

var _ Collection = (*userCollection)(nil)

// NewUserCollection returns the handler for the "users" collection.
func NewUserCollection(repo repository.UserRepository) Collection {
	return &userCollection{repo: repo}
}

func userDocument(u *model.User) *model.Document {
	return &model.Document{
		Collection: UsersCollection,
		ID:         u.ID,
		Data: model.Fields{
			"email":  u.Email,
			"name":   u.Name,
			"role":   u.Role,
			"phone":  u.Phone,
			"active": u.Active,
		},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// applyUserFields copies recognised keys from fields into u, rejecting unknown keys and wrong types.
func applyUserFields(u *model.User, fields model.Fields) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		var dst *string
		switch k {
		case "email":
			dst = &u.Email
		case "name":
			dst = &u.Name
		case "role":
			dst = &u.Role
		case "phone":
			dst = &u.Phone
		case "active":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("%w: users.active must be a boolean", ErrInvalidPayload)
			}
			u.Active = b
			continue
		default:
			return fmt.Errorf("%w: unknown users field %q", ErrInvalidPayload, k)
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: users.%s must be a string", ErrInvalidPayload, k)
		}
		*dst = s
	}
	if u.Email == "" {
		return fmt.Errorf("%w: users.email is required", ErrInvalidPayload)
	}
	return nil
}

func (c *userCollection) Read(ctx context.Context, id string) (*model.Document, error) {
	u, err := c.repo.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateErr("read users", err)
	}
	return userDocument(u), nil
}

func (c *userCollection) Write(ctx context.Context, id string, fields model.Fields) (*model.Document, error) {
	u := &model.User{ID: id, Active: true}
	if err := applyUserFields(u, fields); err != nil {
		return nil, err
	}
	stored, err := c.repo.Upsert(ctx, u)
	if err != nil {
		return nil, translateErr("write users", err)
	}
	return userDocument(stored), nil
}

func (c *userCollection) Patch(ctx context.Context, id string, fields model.Fields) (*model.Document, error) {
	u, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateErr("patch users", err)
	}
	if err := applyUserFields(u, fields); err != nil {
		return nil, err
	}
	stored, err := c.repo.Update(ctx, u)
	if err != nil {
		return nil, translateErr("patch users", err)
	}
	return userDocument(stored), nil
}

// MergeField is unsupported: user columns are flat.
func (c *userCollection) MergeField(_ context.Context, _, field, _ string, _ any) (*model.Document, error) {
	return nil, fmt.Errorf("%w: users has no nested field %q", ErrInvalidPayload, field)
}

func (c *userCollection) Remove(ctx context.Context, id string) error {
	return translateErr("remove users", c.repo.Deactivate(ctx, id))
}

func (c *userCollection) List(ctx context.Context) ([]model.Document, error) {
	users, err := c.repo.List(ctx)
	if err != nil {
		return nil, translateErr("list users", err)
	}
	docs := make([]model.Document, 0, len(users))
	for i := range users {
		docs = append(docs, *userDocument(&users[i]))
	}
	return docs, nil
}

func (c *userCollection) DeletePolicy() DeletePolicy {
	return DeleteDeactivate
}
