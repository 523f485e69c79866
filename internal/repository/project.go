package repository

import (
	"context"
	"errors"

	"github.com/varubogu/flequit-sub003/internal/docstore"
	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// ProjectRepository hands out the repository of one project's collection.
// Every operation names the project it works on.
type ProjectRepository[T model.Scoped] struct {
	name  string
	key   string
	docs  *document.Manager
	cache func(projectID string) Cache[T]
	opts  []Option
}

func newProjectRepository[T model.Scoped](name, key string, docs *document.Manager, cache func(string) Cache[T], opts []Option) (*ProjectRepository[T], error) {
	if docs == nil && cache == nil {
		return nil, storeerr.New(storeerr.KindInvalidOperation, "new_repository", ErrNoBackend).WithEntity(name, "")
	}
	return &ProjectRepository[T]{name: name, key: key, docs: docs, cache: cache, opts: opts}, nil
}

// Key returns the collection key inside the project document.
func (p *ProjectRepository[T]) Key() string { return p.key }

// For returns the repository of projectID.
func (p *ProjectRepository[T]) For(projectID string) (*Repository[T], error) {
	if projectID == "" {
		return nil, storeerr.Validation(p.name, errors.New("project_id is required"))
	}
	var cache Cache[T]
	if p.cache != nil {
		cache = p.cache(projectID)
	}
	return New(p.name, p.documents(projectID), cache, p.opts...)
}

// documents returns the document store of projectID, nil when the document
// backend is disabled.
func (p *ProjectRepository[T]) documents(projectID string) *docstore.Store[T] {
	if p.docs == nil {
		return nil
	}
	return docstore.New[T](p.docs, document.Project(projectID), p.key)
}

// Save writes entity into the project it belongs to.
func (p *ProjectRepository[T]) Save(ctx context.Context, entity T) error {
	repo, err := p.For(entity.EntityProjectID())
	if err != nil {
		return err
	}
	return repo.Save(ctx, entity)
}

// SaveAll writes entities that all belong to projectID.
func (p *ProjectRepository[T]) SaveAll(ctx context.Context, projectID string, entities []T) error {
	for _, e := range entities {
		if e.EntityProjectID() != projectID {
			return storeerr.Validation(p.name, errors.New("entity belongs to another project")).WithEntity(p.name, e.EntityID())
		}
	}
	repo, err := p.For(projectID)
	if err != nil {
		return err
	}
	return repo.SaveAll(ctx, entities)
}

// FindByID returns the entity with the given id in projectID.
func (p *ProjectRepository[T]) FindByID(ctx context.Context, projectID, id string) (T, bool, error) {
	repo, err := p.For(projectID)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return repo.FindByID(ctx, id)
}

// FindAll returns every entity of projectID.
func (p *ProjectRepository[T]) FindAll(ctx context.Context, projectID string) ([]T, error) {
	repo, err := p.For(projectID)
	if err != nil {
		return nil, err
	}
	return repo.FindAll(ctx)
}

// FindWhere returns the entities of projectID for which match returns true.
func (p *ProjectRepository[T]) FindWhere(ctx context.Context, projectID string, match func(T) bool) ([]T, error) {
	repo, err := p.For(projectID)
	if err != nil {
		return nil, err
	}
	return repo.FindWhere(ctx, match)
}

// sourceWhere lists matching entities straight from the project document, so
// rows missing from a stale cache are still found. It reads through the
// repository only when the document backend is disabled.
func (p *ProjectRepository[T]) sourceWhere(ctx context.Context, projectID string, match func(T) bool) ([]T, error) {
	docs := p.documents(projectID)
	if docs == nil {
		return p.FindWhere(ctx, projectID, match)
	}
	if projectID == "" {
		return nil, storeerr.Validation(p.name, errors.New("project_id is required"))
	}
	items, err := docs.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, v := range items {
		if match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Exists reports whether the entity exists in projectID.
func (p *ProjectRepository[T]) Exists(ctx context.Context, projectID, id string) (bool, error) {
	_, ok, err := p.FindByID(ctx, projectID, id)
	return ok, err
}

// Count returns the number of entities in projectID.
func (p *ProjectRepository[T]) Count(ctx context.Context, projectID string) (int, error) {
	repo, err := p.For(projectID)
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx)
}

// Delete removes the entity from projectID.
func (p *ProjectRepository[T]) Delete(ctx context.Context, projectID, id string) (bool, error) {
	repo, err := p.For(projectID)
	if err != nil {
		return false, err
	}
	return repo.Delete(ctx, id)
}
