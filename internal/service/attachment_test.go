package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicdocs/internal/model"
	"clinicdocs/internal/service"
	svcMocks "clinicdocs/internal/service/mocks"
	"clinicdocs/internal/storage"
	storeMocks "clinicdocs/internal/storage/mocks"
	"clinicdocs/pkg/logging"
)

func TestAttachmentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader
		wantErr    error
		wantErrMsg string
	}{
		{
			name: "happy path keeps existing attachments",
			setupMocks: func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("scan")
				docs.On("Read", ctx, "lab_cases", "c1").Return(&model.Document{
					Collection: "lab_cases",
					ID:         "c1",
					Data: model.Fields{"attachments": map[string]any{
						"old.pdf": map[string]any{"key": "attachments/lab_cases/c1/old.pdf"},
					}},
				}, nil)
				st.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "attachments/lab_cases/c1/") && strings.HasSuffix(key, ".stl")
				}), r, mock.Anything).
					Return(func(_ context.Context, key string, _ io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key, Size: opt.Size, ContentType: opt.ContentType}
					}, nil)
				docs.On("MergeField", ctx, "lab_cases", "c1", "attachments", "crown.stl", mock.MatchedBy(func(v map[string]any) bool {
					return strings.HasPrefix(v["key"].(string), "attachments/lab_cases/c1/") && v["size"] == int64(4)
				})).Return(&model.Document{ID: "c1"}, nil)
				return r
			},
		},
		{
			name: "re-upload removes the replaced object",
			setupMocks: func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("scan")
				docs.On("Read", ctx, "lab_cases", "c1").Return(&model.Document{
					ID: "c1",
					Data: model.Fields{"attachments": map[string]any{
						"crown.stl": map[string]any{"key": "attachments/lab_cases/c1/first.stl"},
					}},
				}, nil)
				st.On("Put", ctx, mock.Anything, r, mock.Anything).Return(storage.ObjectInfo{Key: "attachments/lab_cases/c1/second.stl", Size: 4}, nil)
				docs.On("MergeField", ctx, "lab_cases", "c1", "attachments", "crown.stl", mock.Anything).Return(&model.Document{ID: "c1"}, nil)
				st.On("Delete", ctx, "attachments/lab_cases/c1/first.stl").Return(nil).Once()
				return r
			},
		},
		{
			name: "nil reader",
			setupMocks: func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader {
				return nil
			},
			wantErr: service.ErrReaderNil,
		},
		{
			name: "document missing",
			setupMocks: func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader {
				docs.On("Read", ctx, "lab_cases", "c1").Return(nil, nil)
				return strings.NewReader("scan")
			},
			wantErr: service.ErrNotFound,
		},
		{
			name: "storage error",
			setupMocks: func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("scan")
				docs.On("Read", ctx, "lab_cases", "c1").Return(&model.Document{ID: "c1", Data: model.Fields{}}, nil)
				st.On("Put", ctx, mock.Anything, r, mock.Anything).Return(storage.ObjectInfo{}, errors.New("bucket gone"))
				return r
			},
			wantErrMsg: "upload to storage: bucket gone",
		},
		{
			name: "patch fails and object is rolled back",
			setupMocks: func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("scan")
				docs.On("Read", ctx, "lab_cases", "c1").Return(&model.Document{ID: "c1", Data: model.Fields{}}, nil)
				st.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(_ context.Context, key string, _ io.Reader, _ storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				docs.On("MergeField", ctx, "lab_cases", "c1", "attachments", "crown.stl", mock.Anything).Return(nil, service.ErrNotFound)
				st.On("Delete", ctx, mock.Anything).Return(nil)
				return r
			},
			wantErr: service.ErrNotFound,
		},
		{
			name: "rollback failure is reported",
			setupMocks: func(docs *svcMocks.MockDocumentStore, st *storeMocks.MockStorage) io.Reader {
				r := strings.NewReader("scan")
				docs.On("Read", ctx, "lab_cases", "c1").Return(&model.Document{ID: "c1", Data: model.Fields{}}, nil)
				st.On("Put", ctx, mock.Anything, r, mock.Anything).Return(storage.ObjectInfo{Key: "k"}, nil)
				docs.On("MergeField", ctx, "lab_cases", "c1", "attachments", "crown.stl", mock.Anything).Return(nil, errors.New("db fail"))
				st.On("Delete", ctx, "k").Return(errors.New("delete fail"))
				return r
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := new(svcMocks.MockDocumentStore)
			st := new(storeMocks.MockStorage)
			svc := service.NewAttachmentService(st, docs, nil)

			r := tt.setupMocks(docs, st)
			att, err := svc.Upload(ctx, "lab_cases", "c1", "crown.stl", r, "model/stl", 4)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrMsg != "":
				assert.ErrorContains(t, err, tt.wantErrMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, "crown.stl", att.Name)
				assert.Equal(t, int64(4), att.Size)
			}
			docs.AssertExpectations(t)
			st.AssertExpectations(t)
		})
	}
}

func TestAttachmentService_UploadKeepsNewObjectWhenCleanupFails(t *testing.T) {
	ctx := context.Background()
	docs := new(svcMocks.MockDocumentStore)
	st := new(storeMocks.MockStorage)
	var logs bytes.Buffer
	svc := service.NewAttachmentService(st, docs, logging.NewWithWriter(&logs, "info"))

	r := strings.NewReader("scan")
	docs.On("Read", ctx, "lab_cases", "c1").Return(&model.Document{
		ID: "c1",
		Data: model.Fields{"attachments": map[string]any{
			"crown.stl": map[string]any{"key": "attachments/lab_cases/c1/first.stl"},
		}},
	}, nil)
	st.On("Put", ctx, mock.Anything, r, mock.Anything).Return(storage.ObjectInfo{Key: "attachments/lab_cases/c1/second.stl", Size: 4}, nil)
	docs.On("MergeField", ctx, "lab_cases", "c1", "attachments", "crown.stl", mock.Anything).Return(&model.Document{ID: "c1"}, nil)
	st.On("Delete", ctx, "attachments/lab_cases/c1/first.stl").Return(errors.New("access denied"))

	att, err := svc.Upload(ctx, "lab_cases", "c1", "crown.stl", r, "model/stl", 4)

	require.NoError(t, err)
	assert.Equal(t, "attachments/lab_cases/c1/second.stl", att.Key)
	assert.Contains(t, logs.String(), `"msg":"attachment_cleanup_failed"`)
	assert.Contains(t, logs.String(), "attachments/lab_cases/c1/first.stl")
	st.AssertNotCalled(t, "Delete", ctx, "attachments/lab_cases/c1/second.stl")
	docs.AssertExpectations(t)
	st.AssertExpectations(t)
}

func TestAttachmentService_UploadInvalidName(t *testing.T) {
	svc := service.NewAttachmentService(new(storeMocks.MockStorage), new(svcMocks.MockDocumentStore), nil)

	_, err := svc.Upload(context.Background(), "notes", "n1", "../etc/passwd", strings.NewReader("x"), "", 1)

	assert.ErrorIs(t, err, service.ErrInvalidPayload)
}

func TestAttachmentService_Open(t *testing.T) {
	ctx := context.Background()
	docs := new(svcMocks.MockDocumentStore)
	st := new(storeMocks.MockStorage)
	svc := service.NewAttachmentService(st, docs, nil)

	docs.On("Read", ctx, "referrals", "r1").Return(&model.Document{
		ID: "r1",
		Data: model.Fields{"attachments": map[string]any{
			"letter.pdf": map[string]any{
				"key":         "attachments/referrals/r1/abc.pdf",
				"contentType": "application/pdf",
				"size":        json.Number("3"),
				"uploadedAt":  "2026-05-01T10:00:00Z",
			},
		}},
	}, nil)
	st.On("Get", ctx, "attachments/referrals/r1/abc.pdf").
		Return(io.NopCloser(strings.NewReader("pdf")), storage.ObjectInfo{ContentType: "application/pdf"}, nil)

	rc, att, err := svc.Open(ctx, "referrals", "r1", "letter.pdf")
	require.NoError(t, err)
	defer rc.Close()

	body, _ := io.ReadAll(rc)
	assert.Equal(t, "pdf", string(body))
	assert.Equal(t, int64(3), att.Size)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, 2026, att.UploadedAt.Year())

	_, _, err = svc.Open(ctx, "referrals", "r1", "missing.pdf")
	assert.ErrorIs(t, err, service.ErrNotFound)
}
