package repository

import (
	"context"

	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
)

// projectCache narrows a shared table to the rows of one project.
type projectCache[E model.Scoped, R relational.Row] struct {
	*relational.EntityStore[E, R]
	projectID string
}

func newProjectCache[E model.Scoped, R relational.Row](store *relational.EntityStore[E, R], projectID string) Cache[E] {
	if store == nil {
		return nil
	}
	return &projectCache[E, R]{EntityStore: store, projectID: projectID}
}

func (c *projectCache[E, R]) FindByID(ctx context.Context, id string) (E, bool, error) {
	var zero E
	e, ok, err := c.EntityStore.FindByID(ctx, id)
	if err != nil || !ok || e.EntityProjectID() != c.projectID {
		return zero, false, err
	}
	return e, true, nil
}

func (c *projectCache[E, R]) FindAll(ctx context.Context) ([]E, error) {
	return c.EntityStore.FindByProject(ctx, c.projectID)
}

func (c *projectCache[E, R]) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok, err := c.FindByID(ctx, id); err != nil || !ok {
		return false, err
	}
	return c.EntityStore.Delete(ctx, id)
}

// relationCache adapts a join table to the Cache of one project.
type relationCache struct {
	store     *relational.RelationStore
	projectID string
}

func newRelationCache(store *relational.RelationStore, projectID string) Cache[model.Relation] {
	if store == nil {
		return nil
	}
	return &relationCache{store: store, projectID: projectID}
}

func (c *relationCache) Check(r model.Relation) error {
	return c.store.Check(r)
}

func (c *relationCache) Save(ctx context.Context, r model.Relation) error {
	_, err := c.store.Add(ctx, r)
	return err
}

func (c *relationCache) SaveAll(ctx context.Context, rs []model.Relation) error {
	return c.store.AddAll(ctx, rs)
}

func (c *relationCache) FindByID(ctx context.Context, id string) (model.Relation, bool, error) {
	parentID, childID, err := model.SplitRelationID(id)
	if err != nil {
		return model.Relation{}, false, nil
	}
	rels, err := c.store.FindByParent(ctx, parentID)
	if err != nil {
		return model.Relation{}, false, err
	}
	for _, r := range rels {
		if r.ChildID == childID && r.ProjectID == c.projectID {
			return r, true, nil
		}
	}
	return model.Relation{}, false, nil
}

func (c *relationCache) FindAll(ctx context.Context) ([]model.Relation, error) {
	return c.store.FindByProject(ctx, c.projectID)
}

func (c *relationCache) Delete(ctx context.Context, id string) (bool, error) {
	parentID, childID, err := model.SplitRelationID(id)
	if err != nil {
		return false, nil
	}
	return c.store.Remove(ctx, parentID, childID)
}
