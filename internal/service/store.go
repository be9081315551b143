package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinicdocs/internal/changefeed"
	"clinicdocs/internal/model"
	"clinicdocs/internal/repository"
	"clinicdocs/pkg/logging"
)

var tracer = otel.Tracer("clinicdocs/internal/service")

// DocumentStore is the document-collection API used by the rest of the application.
// Every operation is routed to the Collection registered for the collection name,
// or to the shared JSON table when no override exists.
type DocumentStore interface {
	// Read returns nil, nil when the document does not exist.
	Read(ctx context.Context, collection, id string) (*model.Document, error)

	// Write creates the document or fully replaces its payload.
	Write(ctx context.Context, collection, id string, fields model.Fields) (*model.Document, error)

	// Create writes a new document under a generated id.
	Create(ctx context.Context, collection string, fields model.Fields) (*model.Document, error)

	// Patch merges the top-level keys of fields into an existing document.
	// It returns ErrNotFound when the document does not exist.
	Patch(ctx context.Context, collection, id string, fields model.Fields) (*model.Document, error)

	// MergeField sets key inside the object stored at the top-level field in a single
	// write, keeping every other key of that object. It returns ErrNotFound when the
	// document does not exist.
	MergeField(ctx context.Context, collection, id, field, key string, value any) (*model.Document, error)

	// Remove deletes or deactivates the document according to the collection's DeletePolicy.
	// It returns ErrNotFound when the document does not exist.
	Remove(ctx context.Context, collection, id string) error

	// List returns all documents of a collection ordered by creation time, newest first.
	List(ctx context.Context, collection string) ([]model.Document, error)

	// Listen streams changes applied to a collection until ctx is done.
	Listen(ctx context.Context, collection string) (<-chan changefeed.Change, error)

	// DeletePolicy reports what Remove does for a collection.
	DeletePolicy(collection string) (DeletePolicy, error)

	// ReservedCollections lists the collection names served by dedicated handlers.
	ReservedCollections() []string
}

// Option configures a DocumentStore.
type Option func(*documentStore)

// WithCollection routes all operations for name to c instead of the JSON table.
func WithCollection(name string, c Collection) Option {
	return func(s *documentStore) {
		s.overrides[name] = c
	}
}

// WithFeed publishes every applied mutation to feed and enables Listen.
func WithFeed(feed changefeed.Feed) Option {
	return func(s *documentStore) {
		s.feed = feed
	}
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l *logging.Logger) Option {
	return func(s *documentStore) {
		if l != nil {
			s.logger = l
		}
	}
}

type documentStore struct {
	docs      repository.DocumentRepository
	overrides map[string]Collection
	feed      changefeed.Feed
	logger    *logging.Logger
	newID     func() string
	now       func() time.Time
}

// NewDocumentStore constructs a DocumentStore over the JSON document repository.
func NewDocumentStore(docs repository.DocumentRepository, opts ...Option) DocumentStore {
	s := &documentStore{
		docs:      docs,
		overrides: make(map[string]Collection),
		logger:    logging.Default(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "docstore")
	return s
}

func (s *documentStore) route(collection string) (Collection, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if c, ok := s.overrides[collection]; ok {
		return c, nil
	}
	return newJSONCollection(collection, s.docs), nil
}

func (s *documentStore) start(ctx context.Context, op, collection, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("docstore.collection", collection)}
	if id != "" {
		attrs = append(attrs, attribute.String("docstore.id", id))
	}
	return tracer.Start(ctx, "DocumentStore."+op, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// publish is best-effort: feed failures never fail the mutation.
func (s *documentStore) publish(ctx context.Context, typ changefeed.ChangeType, collection, id string, data model.Fields) {
	if s.feed == nil {
		return
	}
	change := changefeed.Change{
		Type:       typ,
		Collection: collection,
		ID:         id,
		Data:       data.Clone(),
		At:         s.now().UTC(),
	}
	if err := s.feed.Publish(ctx, change); err != nil {
		s.logger.Warn("change_publish_failed",
			"collection", collection,
			"id", id,
			"type", string(typ),
			"error", err.Error(),
		)
	}
}

func (s *documentStore) Read(ctx context.Context, collection, id string) (*model.Document, error) {
	ctx, span := s.start(ctx, "Read", collection, id)
	defer span.End()

	c, err := s.route(collection)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := validateID(id); err != nil {
		return nil, fail(span, err)
	}
	doc, err := c.Read(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Bool("docstore.found", doc != nil))
	return doc, nil
}

func (s *documentStore) Write(ctx context.Context, collection, id string, fields model.Fields) (*model.Document, error) {
	ctx, span := s.start(ctx, "Write", collection, id)
	defer span.End()

	c, err := s.route(collection)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := validateID(id); err != nil {
		return nil, fail(span, err)
	}
	if err := validateFields(fields); err != nil {
		return nil, fail(span, err)
	}
	doc, err := c.Write(ctx, id, fields)
	if err != nil {
		return nil, fail(span, err)
	}
	s.publish(ctx, changefeed.ChangeSet, collection, doc.ID, doc.Data)
	return doc, nil
}

func (s *documentStore) Create(ctx context.Context, collection string, fields model.Fields) (*model.Document, error) {
	return s.Write(ctx, collection, s.newID(), fields)
}

func (s *documentStore) Patch(ctx context.Context, collection, id string, fields model.Fields) (*model.Document, error) {
	ctx, span := s.start(ctx, "Patch", collection, id)
	defer span.End()

	c, err := s.route(collection)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := validateID(id); err != nil {
		return nil, fail(span, err)
	}
	if err := validateFields(fields); err != nil {
		return nil, fail(span, err)
	}
	doc, err := c.Patch(ctx, id, fields)
	if err != nil {
		return nil, fail(span, err)
	}
	s.publish(ctx, changefeed.ChangePatch, collection, doc.ID, doc.Data)
	return doc, nil
}

func (s *documentStore) MergeField(ctx context.Context, collection, id, field, key string, value any) (*model.Document, error) {
	ctx, span := s.start(ctx, "MergeField", collection, id)
	defer span.End()
	span.SetAttributes(attribute.String("docstore.field", field))

	c, err := s.route(collection)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := validateID(id); err != nil {
		return nil, fail(span, err)
	}
	if field == "" || key == "" {
		return nil, fail(span, fmt.Errorf("%w: empty field or key", ErrInvalidPayload))
	}
	if err := validateFields(model.Fields{key: value}); err != nil {
		return nil, fail(span, err)
	}
	doc, err := c.MergeField(ctx, id, field, key, value)
	if err != nil {
		return nil, fail(span, err)
	}
	s.publish(ctx, changefeed.ChangePatch, collection, doc.ID, doc.Data)
	return doc, nil
}

func (s *documentStore) Remove(ctx context.Context, collection, id string) error {
	ctx, span := s.start(ctx, "Remove", collection, id)
	defer span.End()

	c, err := s.route(collection)
	if err != nil {
		return fail(span, err)
	}
	if err := validateID(id); err != nil {
		return fail(span, err)
	}
	span.SetAttributes(attribute.String("docstore.delete_policy", string(c.DeletePolicy())))
	if err := c.Remove(ctx, id); err != nil {
		return fail(span, err)
	}
	s.publish(ctx, changefeed.ChangeDelete, collection, id, nil)
	return nil
}

func (s *documentStore) List(ctx context.Context, collection string) ([]model.Document, error) {
	ctx, span := s.start(ctx, "List", collection, "")
	defer span.End()

	c, err := s.route(collection)
	if err != nil {
		return nil, fail(span, err)
	}
	docs, err := c.List(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("docstore.count", len(docs)))
	return docs, nil
}

func (s *documentStore) Listen(ctx context.Context, collection string) (<-chan changefeed.Change, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if s.feed == nil {
		return nil, ErrListenUnavailable
	}
	return s.feed.Subscribe(ctx, collection)
}

func (s *documentStore) DeletePolicy(collection string) (DeletePolicy, error) {
	c, err := s.route(collection)
	if err != nil {
		return "", err
	}
	return c.DeletePolicy(), nil
}

func (s *documentStore) ReservedCollections() []string {
	names := make([]string, 0, len(s.overrides))
	for name := range s.overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
