package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clinicdocs/internal/changefeed"
	"clinicdocs/internal/model"
	"clinicdocs/internal/service"
)

type MockDocumentStore struct {
	mock.Mock
}

var _ service.DocumentStore = (*MockDocumentStore)(nil)

func (m *MockDocumentStore) Read(ctx context.Context, collection, id string) (*model.Document, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentStore) Write(ctx context.Context, collection, id string, fields model.Fields) (*model.Document, error) {
	args := m.Called(ctx, collection, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentStore) Create(ctx context.Context, collection string, fields model.Fields) (*model.Document, error) {
	args := m.Called(ctx, collection, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentStore) Patch(ctx context.Context, collection, id string, fields model.Fields) (*model.Document, error) {
	args := m.Called(ctx, collection, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentStore) MergeField(ctx context.Context, collection, id, field, key string, value any) (*model.Document, error) {
	args := m.Called(ctx, collection, id, field, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentStore) Remove(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

func (m *MockDocumentStore) List(ctx context.Context, collection string) ([]model.Document, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentStore) Listen(ctx context.Context, collection string) (<-chan changefeed.Change, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan changefeed.Change), args.Error(1)
}

func (m *MockDocumentStore) DeletePolicy(collection string) (service.DeletePolicy, error) {
	args := m.Called(collection)
	return args.Get(0).(service.DeletePolicy), args.Error(1)
}

func (m *MockDocumentStore) ReservedCollections() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}
