package repository

import (
	"context"
	"time"

	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// SettingsRepository stores the single Settings record.
type SettingsRepository struct {
	repo *Repository[model.Settings]
}

// Get returns the stored settings, or the defaults when none were saved.
func (s *SettingsRepository) Get(ctx context.Context) (model.Settings, error) {
	v, ok, err := s.repo.FindByID(ctx, model.SettingsID)
	if err != nil {
		return model.Settings{}, err
	}
	if !ok {
		return model.DefaultSettings(), nil
	}
	return v, nil
}

// Save stores settings. Missing fields take their defaults.
func (s *SettingsRepository) Save(ctx context.Context, settings model.Settings) error {
	settings.SetDefaults()
	return s.repo.Save(ctx, settings)
}

// Update applies fn to the current settings and stores the result.
func (s *SettingsRepository) Update(ctx context.Context, fn func(*model.Settings)) error {
	cur, err := s.Get(ctx)
	if err != nil {
		return err
	}
	fn(&cur)
	cur.UpdatedAt = time.Now().UTC()
	return s.Save(ctx, cur)
}

// Delete always fails: the settings record cannot be removed.
func (s *SettingsRepository) Delete(ctx context.Context) error {
	return storeerr.Newf(storeerr.KindInvalidOperation, "delete", "settings cannot be deleted").WithEntity(s.repo.Name(), model.SettingsID)
}

// LogicalRepository is a repository whose Delete only marks the entity as
// deleted in both backends.
type LogicalRepository[T model.Entity] struct {
	*Repository[T]
	markDeleted func(T, time.Time) T
	isDeleted   func(T) bool
}

// Delete marks the entity deleted and reports whether it exists.
func (l *LogicalRepository[T]) Delete(ctx context.Context, id string) (bool, error) {
	v, ok, err := l.Repository.FindByID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if l.isDeleted(v) {
		return true, nil
	}
	return true, l.Repository.Save(ctx, l.markDeleted(v, time.Now().UTC()))
}

// FindActive returns the entities that are not logically deleted.
func (l *LogicalRepository[T]) FindActive(ctx context.Context) ([]T, error) {
	return l.Repository.FindWhere(ctx, func(v T) bool { return !l.isDeleted(v) })
}

func newAccounts(repo *Repository[model.Account]) *LogicalRepository[model.Account] {
	return &LogicalRepository[model.Account]{
		Repository: repo,
		markDeleted: func(a model.Account, now time.Time) model.Account {
			a.IsDeleted = true
			a.IsActive = false
			a.UpdatedAt = now
			return a
		},
		isDeleted: func(a model.Account) bool { return a.IsDeleted },
	}
}

func newUsers(repo *Repository[model.User]) *LogicalRepository[model.User] {
	return &LogicalRepository[model.User]{
		Repository: repo,
		markDeleted: func(u model.User, now time.Time) model.User {
			u.IsDeleted = true
			u.IsActive = false
			u.UpdatedAt = now
			return u
		},
		isDeleted: func(u model.User) bool { return u.IsDeleted },
	}
}
