package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinicdocs/internal/model"
	"clinicdocs/internal/storage"
	"clinicdocs/pkg/logging"
)

// attachmentsField is the document key holding attachment metadata, keyed by attachment name.
const attachmentsField = "attachments"

// Attachment is a file stored for a document.
type Attachment struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func (a Attachment) fields() map[string]any {
	return map[string]any{
		"key":         a.Key,
		"contentType": a.ContentType,
		"size":        a.Size,
		"uploadedAt":  a.UploadedAt.Format(time.RFC3339Nano),
	}
}

// AttachmentService stores files for documents in object storage and records them
// in the document's attachments field.
type AttachmentService interface {
	// Upload stores the content and records it on the document. If recording fails the
	// stored object is removed again. Uploading under an existing name replaces the entry
	// and removes the object it pointed to.
	Upload(ctx context.Context, collection, id, name string, r io.Reader, contentType string, size int64) (*Attachment, error)

	// Open streams a previously uploaded attachment.
	Open(ctx context.Context, collection, id, name string) (io.ReadCloser, *Attachment, error)
}

type attachmentService struct {
	store  storage.Storage
	docs   DocumentStore
	logger *logging.Logger
}

// NewAttachmentService constructs a new AttachmentService. A nil logger uses logging.Default.
func NewAttachmentService(store storage.Storage, docs DocumentStore, logger *logging.Logger) AttachmentService {
	if logger == nil {
		logger = logging.Default()
	}
	return &attachmentService{
		store:  store,
		docs:   docs,
		logger: logger.With("component", "attachments"),
	}
}

func validateAttachmentName(name string) error {
	if name == "" || len(name) > maxIDLength || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid attachment name %q", ErrInvalidPayload, name)
	}
	return nil
}

func (s *attachmentService) existing(ctx context.Context, collection, id string) (*model.Document, error) {
	doc, err := s.docs.Read(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return doc, nil
}

func (s *attachmentService) Upload(ctx context.Context, collection, id, name string, r io.Reader, contentType string, size int64) (*Attachment, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if err := validateAttachmentName(name); err != nil {
		return nil, err
	}
	doc, err := s.existing(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	key := path.Join("attachments", collection, id, uuid.NewString()+path.Ext(name))
	info, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	att := &Attachment{
		Name:        name,
		Key:         info.Key,
		ContentType: contentType,
		Size:        info.Size,
		UploadedAt:  time.Now().UTC(),
	}

	// Only attachments.<name> is written; entries added concurrently survive.
	if _, err := s.docs.MergeField(ctx, collection, id, attachmentsField, name, att.fields()); err != nil {
		if delErr := s.store.Delete(ctx, info.Key); delErr != nil {
			return nil, fmt.Errorf("record attachment failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("record attachment failed: %w", err)
	}

	if prev, ok := attachmentFromDocument(doc, name); ok && prev.Key != info.Key {
		if err := s.store.Delete(ctx, prev.Key); err != nil {
			s.logger.Warn("attachment_cleanup_failed",
				"collection", collection,
				"id", id,
				"name", name,
				"key", prev.Key,
				"error", err.Error(),
			)
		}
	}
	return att, nil
}

func (s *attachmentService) Open(ctx context.Context, collection, id, name string) (io.ReadCloser, *Attachment, error) {
	if err := validateAttachmentName(name); err != nil {
		return nil, nil, err
	}
	doc, err := s.existing(ctx, collection, id)
	if err != nil {
		return nil, nil, err
	}
	att, ok := attachmentFromDocument(doc, name)
	if !ok {
		return nil, nil, fmt.Errorf("attachment %q of %s/%s: %w", name, collection, id, ErrNotFound)
	}

	rc, info, err := s.store.Get(ctx, att.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	if att.ContentType == "" {
		att.ContentType = info.ContentType
	}
	return rc, att, nil
}

// attachmentFromDocument decodes an attachment entry. Sizes read back from the
// database arrive as json.Number.
func attachmentFromDocument(doc *model.Document, name string) (*Attachment, bool) {
	all, ok := doc.Data[attachmentsField].(map[string]any)
	if !ok {
		return nil, false
	}
	entry, ok := all[name].(map[string]any)
	if !ok {
		return nil, false
	}
	key, _ := entry["key"].(string)
	if key == "" {
		return nil, false
	}
	att := &Attachment{Name: name, Key: key}
	att.ContentType, _ = entry["contentType"].(string)
	switch v := entry["size"].(type) {
	case json.Number:
		att.Size, _ = v.Int64()
	case float64:
		att.Size = int64(v)
	case int64:
		att.Size = v
	case int:
		att.Size = int64(v)
	}
	if ts, ok := entry["uploadedAt"].(string); ok {
		att.UploadedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return att, true
}
