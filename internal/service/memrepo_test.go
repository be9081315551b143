package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"clinicdocs/internal/model"
)

// memDocuments is an in-memory repository.DocumentRepository with a strictly increasing clock.
type memDocuments struct {
	mu    sync.Mutex
	rows  map[string]*model.Document
	clock time.Time
}

func newMemDocuments() *memDocuments {
	return &memDocuments{
		rows:  make(map[string]*model.Document),
		clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func memKey(collection, id string) string { return collection + "\x00" + id }

func (m *memDocuments) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func copyDoc(d *model.Document) *model.Document {
	out := *d
	out.Data = d.Data.Clone()
	return &out
}

func (m *memDocuments) FindByKey(_ context.Context, collection, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[memKey(collection, id)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyDoc(d), nil
}

func (m *memDocuments) Upsert(_ context.Context, doc *model.Document) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	k := memKey(doc.Collection, doc.ID)
	if d, ok := m.rows[k]; ok {
		d.Data = doc.Data.Clone()
		d.UpdatedAt = now
		return copyDoc(d), nil
	}
	d := &model.Document{Collection: doc.Collection, ID: doc.ID, Data: doc.Data.Clone(), CreatedAt: now, UpdatedAt: now}
	m.rows[k] = d
	return copyDoc(d), nil
}

func (m *memDocuments) Merge(_ context.Context, collection, id string, patch model.Fields) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[memKey(collection, id)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	for k, v := range patch {
		d.Data[k] = v
	}
	d.UpdatedAt = m.tick()
	return copyDoc(d), nil
}

func (m *memDocuments) MergeNested(_ context.Context, collection, id, field, key string, value any) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[memKey(collection, id)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	nested := map[string]any{}
	if current, ok := d.Data[field].(map[string]any); ok {
		for k, v := range current {
			nested[k] = v
		}
	}
	nested[key] = value
	d.Data[field] = nested
	d.UpdatedAt = m.tick()
	return copyDoc(d), nil
}

func (m *memDocuments) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(collection, id)
	if _, ok := m.rows[k]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, k)
	return nil
}

func (m *memDocuments) ListByCollection(_ context.Context, collection string) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Document, 0)
	for _, d := range m.rows {
		if d.Collection == collection {
			out = append(out, *copyDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
