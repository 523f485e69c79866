// Package docstore stores a collection of entities inside a CRDT document.
//
// A collection is one JSON array under a fixed key. Every mutation rewrites
// the whole array, so concurrent edits of different entities in the same
// collection on two replicas resolve last-writer-wins for the whole array.
package docstore

import (
	"context"
	"errors"

	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/model"
)

// errUnchanged aborts an update without writing.
var errUnchanged = errors.New("unchanged")

// Store is the collection of T stored under one key of one document.
type Store[T model.Entity] struct {
	m   *document.Manager
	typ document.Type
	key string
}

// New binds a store to a document and key.
func New[T model.Entity](m *document.Manager, typ document.Type, key string) *Store[T] {
	return &Store[T]{m: m, typ: typ, key: key}
}

// Key returns the collection key.
func (s *Store[T]) Key() string { return s.key }

// Type returns the document holding the collection.
func (s *Store[T]) Type() document.Type { return s.typ }

// List returns the whole collection in stored order.
func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	items, _, err := document.LoadData[[]T](ctx, s.m, s.typ, s.key)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get returns the entity with the given id.
func (s *Store[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	items, err := s.List(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if item.EntityID() == id {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// Set replaces the entity with the same id, or appends it.
func (s *Store[T]) Set(ctx context.Context, entity T) error {
	return document.UpdateData(ctx, s.m, s.typ, s.key, func(items []T, _ bool) ([]T, error) {
		return upsert(items, entity), nil
	})
}

// SetAll upserts every entity in one document write.
func (s *Store[T]) SetAll(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	return document.UpdateData(ctx, s.m, s.typ, s.key, func(items []T, _ bool) ([]T, error) {
		for _, e := range entities {
			items = upsert(items, e)
		}
		return items, nil
	})
}

// Delete removes the entity with the given id and reports whether it existed.
// Nothing is written when it did not.
func (s *Store[T]) Delete(ctx context.Context, id string) (bool, error) {
	err := document.UpdateData(ctx, s.m, s.typ, s.key, func(items []T, _ bool) ([]T, error) {
		for i, item := range items {
			if item.EntityID() == id {
				return append(items[:i:i], items[i+1:]...), nil
			}
		}
		return nil, errUnchanged
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteWhere removes every entity for which match returns true in one write and
// returns how many were removed.
func (s *Store[T]) DeleteWhere(ctx context.Context, match func(T) bool) (int, error) {
	removed := 0
	err := document.UpdateData(ctx, s.m, s.typ, s.key, func(items []T, _ bool) ([]T, error) {
		kept := make([]T, 0, len(items))
		for _, item := range items {
			if match(item) {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		if removed == 0 {
			return nil, errUnchanged
		}
		return kept, nil
	})
	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Len returns the number of entities in the collection.
func (s *Store[T]) Len(ctx context.Context) (int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func upsert[T model.Entity](items []T, entity T) []T {
	id := entity.EntityID()
	for i, item := range items {
		if item.EntityID() == id {
			items[i] = entity
			return items
		}
	}
	return append(items, entity)
}
