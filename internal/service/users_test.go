package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicdocs/internal/model"
	repoMocks "clinicdocs/internal/repository/mocks"
)

func TestApplyUserFields(t *testing.T) {
	tests := []struct {
		name    string
		fields  model.Fields
		want    model.User
		wantErr string
	}{
		{
			name:   "all fields",
			fields: model.Fields{"email": "a@b.c", "name": "A", "role": "hygienist", "phone": "555", "active": false},
			want:   model.User{Email: "a@b.c", Name: "A", Role: "hygienist", Phone: "555", Active: false},
		},
		{
			name:    "unknown field",
			fields:  model.Fields{"email": "a@b.c", "salary": 1},
			wantErr: `unknown users field "salary"`,
		},
		{
			name:    "wrong type",
			fields:  model.Fields{"email": 42},
			wantErr: "users.email must be a string",
		},
		{
			name:    "active must be bool",
			fields:  model.Fields{"email": "a@b.c", "active": "yes"},
			wantErr: "users.active must be a boolean",
		},
		{
			name:    "email required",
			fields:  model.Fields{"name": "A"},
			wantErr: "users.email is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := model.User{Active: true}
			err := applyUserFields(&u, tt.fields)
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, ErrInvalidPayload)
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u)
		})
	}
}

func TestUserCollection_Patch(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockUserRepository)
	c := NewUserCollection(repo)
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	repo.On("FindByID", ctx, "u1").
		Return(&model.User{ID: "u1", Email: "a@b.c", Name: "Old", Role: "staff", Active: true, CreatedAt: created}, nil)
	repo.On("Update", ctx, mock.MatchedBy(func(u *model.User) bool {
		return u.Name == "New" && u.Role == "staff" && u.Email == "a@b.c"
	})).Return(&model.User{ID: "u1", Email: "a@b.c", Name: "New", Role: "staff", Active: true, CreatedAt: created}, nil)

	doc, err := c.Patch(ctx, "u1", model.Fields{"name": "New"})

	require.NoError(t, err)
	assert.Equal(t, "New", doc.Data["name"])
	assert.Equal(t, "staff", doc.Data["role"])
	assert.Equal(t, created, doc.CreatedAt)
	repo.AssertExpectations(t)
}

func TestUserCollection_PatchMissing(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockUserRepository)
	repo.On("FindByID", ctx, "ghost").Return(nil, sql.ErrNoRows)

	_, err := NewUserCollection(repo).Patch(ctx, "ghost", model.Fields{"name": "x"})

	assert.ErrorIs(t, err, ErrNotFound)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUserCollection_ReadMissing(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockUserRepository)
	repo.On("FindByID", ctx, "ghost").Return(nil, sql.ErrNoRows)

	doc, err := NewUserCollection(repo).Read(ctx, "ghost")

	assert.NoError(t, err)
	assert.Nil(t, doc)
}

func TestUserCollection_RemoveMissing(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockUserRepository)
	repo.On("Deactivate", ctx, "ghost").Return(sql.ErrNoRows)

	err := NewUserCollection(repo).Remove(ctx, "ghost")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCollection_List(t *testing.T) {
	ctx := context.Background()
	repo := new(repoMocks.MockUserRepository)
	repo.On("List", ctx).Return([]model.User{
		{ID: "u2", Email: "b@c.d", Active: true},
		{ID: "u1", Email: "a@c.d", Active: false},
	}, nil)

	docs, err := NewUserCollection(repo).List(ctx)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "users", docs[0].Collection)
	assert.Equal(t, "u2", docs[0].ID)
	assert.Equal(t, false, docs[1].Data["active"])
}
