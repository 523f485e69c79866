// Package repository unifies the document and relational backends behind one
// repository per entity.
//
// The document backend is the source of truth. Writes go to it first and are
// then projected into the relational cache; a document failure aborts the
// write, a cache failure after a successful document write is returned to the
// caller but not rolled back. Reads prefer the cache and fall back to the
// documents when the cache misses or fails. Either backend may be disabled.
package repository

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/metrics"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// Collection is the document side of a repository. *docstore.Store
// implements it.
type Collection[T model.Entity] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, bool, error)
	Set(ctx context.Context, entity T) error
	SetAll(ctx context.Context, entities []T) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Cache is the relational side of a repository. *relational.EntityStore
// implements it for unscoped entities.
type Cache[T model.Entity] interface {
	// Check projects the entity without writing it.
	Check(entity T) error
	Save(ctx context.Context, entity T) error
	SaveAll(ctx context.Context, entities []T) error
	FindByID(ctx context.Context, id string) (T, bool, error)
	FindAll(ctx context.Context) ([]T, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ErrNoBackend is returned when a repository is built with neither backend.
var ErrNoBackend = errors.New("repository needs at least one backend")

// Repository is the unified repository of one entity collection.
type Repository[T model.Entity] struct {
	name    string
	docs    Collection[T]
	cache   Cache[T]
	log     *logging.Logger
	metrics *metrics.Recorder
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	log     *logging.Logger
	metrics *metrics.Recorder
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// New builds a repository for the entity called name. A nil docs or cache
// disables that backend.
func New[T model.Entity](name string, docs Collection[T], cache Cache[T], opts ...Option) (*Repository[T], error) {
	if isNil(docs) && isNil(cache) {
		return nil, storeerr.New(storeerr.KindInvalidOperation, "new_repository", ErrNoBackend).WithEntity(name, "")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Discard()
	}

	r := &Repository[T]{name: name, log: o.log, metrics: o.metrics}
	if !isNil(docs) {
		r.docs = docs
	}
	if !isNil(cache) {
		r.cache = cache
	}
	return r, nil
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Name returns the entity name used in errors and metrics.
func (r *Repository[T]) Name() string { return r.name }

// HasDocuments reports whether the document backend is enabled.
func (r *Repository[T]) HasDocuments() bool { return r.docs != nil }

// HasCache reports whether the relational backend is enabled.
func (r *Repository[T]) HasCache() bool { return r.cache != nil }

func (r *Repository[T]) observe(op, backend string, start time.Time, err error) {
	r.metrics.Observe(op, r.name, backend, start, err)
}

// Save validates entity and writes it to both backends.
func (r *Repository[T]) Save(ctx context.Context, entity T) error {
	if err := entity.Validate(); err != nil {
		return storeerr.Validation(r.name, err)
	}
	if r.cache != nil {
		if err := r.cache.Check(entity); err != nil {
			return err
		}
	}

	if r.docs != nil {
		start := time.Now()
		err := r.docs.Set(ctx, entity)
		r.observe("save", metrics.BackendDocument, start, err)
		if err != nil {
			r.failed("save", entity.EntityID(), err)
			return err
		}
	}

	if r.cache != nil {
		start := time.Now()
		err := r.cache.Save(ctx, entity)
		r.observe("save", metrics.BackendRelational, start, err)
		if err != nil {
			r.diverged("save", entity.EntityID(), err)
			return err
		}
	}
	return nil
}

// SaveAll validates every entity and writes them in one operation per backend.
func (r *Repository[T]) SaveAll(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return storeerr.Validation(r.name, err).WithEntity(r.name, e.EntityID())
		}
		if r.cache != nil {
			if err := r.cache.Check(e); err != nil {
				return err
			}
		}
	}

	if r.docs != nil {
		start := time.Now()
		err := r.docs.SetAll(ctx, entities)
		r.observe("save_all", metrics.BackendDocument, start, err)
		if err != nil {
			r.failed("save_all", "", err)
			return err
		}
	}
	if r.cache != nil {
		start := time.Now()
		err := r.cache.SaveAll(ctx, entities)
		r.observe("save_all", metrics.BackendRelational, start, err)
		if err != nil {
			r.diverged("save_all", "", err)
			return err
		}
	}
	return nil
}

// failed logs a write that reached neither backend.
func (r *Repository[T]) failed(op, id string, err error) {
	r.log.Warnf("%s %s %s: document write failed: %v", op, r.name, id, err)
}

func (r *Repository[T]) diverged(op, id string, err error) {
	if r.docs == nil {
		r.log.Warnf("%s %s %s: %v", op, r.name, id, err)
		return
	}
	r.metrics.Divergence(r.name)
	r.log.Warnf("%s %s %s: relational cache is behind the documents: %v", op, r.name, id, err)
}

// FindByID returns the entity with the given id. A missing entity is
// reported through the bool, never as an error.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	if r.cache != nil {
		start := time.Now()
		v, ok, err := r.cache.FindByID(ctx, id)
		r.observe("find_by_id", metrics.BackendRelational, start, err)
		switch {
		case err == nil && ok:
			return v, true, nil
		case r.docs == nil:
			if storeerr.IsNotFound(err) {
				return zero, false, nil
			}
			return zero, false, err
		case err != nil:
			r.log.Debugf("find_by_id %s %s: falling back to documents: %v", r.name, id, err)
		}
		r.metrics.Fallback(r.name)
	}

	start := time.Now()
	v, ok, err := r.docs.Get(ctx, id)
	r.observe("find_by_id", metrics.BackendDocument, start, err)
	if err != nil {
		return zero, false, err
	}
	return v, ok, nil
}

// FindAll returns every entity. An empty or failing cache falls back to the
// documents.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	if r.cache != nil {
		start := time.Now()
		items, err := r.cache.FindAll(ctx)
		r.observe("find_all", metrics.BackendRelational, start, err)
		switch {
		case err == nil && len(items) > 0:
			return items, nil
		case r.docs == nil:
			if err != nil {
				return nil, err
			}
			return items, nil
		case err != nil:
			r.log.Debugf("find_all %s: falling back to documents: %v", r.name, err)
		}
		r.metrics.Fallback(r.name)
	}

	start := time.Now()
	items, err := r.docs.List(ctx)
	r.observe("find_all", metrics.BackendDocument, start, err)
	return items, err
}

// FindWhere returns the entities for which match returns true.
func (r *Repository[T]) FindWhere(ctx context.Context, match func(T) bool) ([]T, error) {
	items, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0:0]
	for _, item := range items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Exists reports whether an entity with the given id exists.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, ok, err := r.FindByID(ctx, id)
	return ok, err
}

// Count returns the number of entities FindAll would return.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	items, err := r.FindAll(ctx)
	return len(items), err
}

// Delete removes the entity from both backends and reports whether either
// held it.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	var found bool

	if r.docs != nil {
		start := time.Now()
		ok, err := r.docs.Delete(ctx, id)
		r.observe("delete", metrics.BackendDocument, start, err)
		if err != nil {
			r.failed("delete", id, err)
			return false, err
		}
		found = ok
	}

	if r.cache != nil {
		start := time.Now()
		ok, err := r.cache.Delete(ctx, id)
		r.observe("delete", metrics.BackendRelational, start, err)
		if err != nil {
			r.diverged("delete", id, err)
			return found, err
		}
		found = found || ok
	}
	return found, nil
}
