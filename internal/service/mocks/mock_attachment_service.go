package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"clinicdocs/internal/service"
)

type MockAttachmentService struct {
	mock.Mock
}

var _ service.AttachmentService = (*MockAttachmentService)(nil)

func (m *MockAttachmentService) Upload(ctx context.Context, collection, id, name string, r io.Reader, contentType string, size int64) (*service.Attachment, error) {
	args := m.Called(ctx, collection, id, name, r, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Attachment), args.Error(1)
}

func (m *MockAttachmentService) Open(ctx context.Context, collection, id, name string) (io.ReadCloser, *service.Attachment, error) {
	args := m.Called(ctx, collection, id, name)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*service.Attachment), args.Error(2)
}
