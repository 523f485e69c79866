package repository

import (
	"context"
	"time"

	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
)

// RelationRepository stores one many-to-many relation of a project, such as
// the tags of a task.
type RelationRepository struct {
	*ProjectRepository[model.Relation]
	kind  model.RelationKind
	store *relational.RelationStore
}

// Kind returns the relation kind.
func (r *RelationRepository) Kind() model.RelationKind { return r.kind }

// Add links parentID to childID. Adding an existing link keeps it unchanged.
func (r *RelationRepository) Add(ctx context.Context, projectID, parentID, childID string) error {
	repo, err := r.For(projectID)
	if err != nil {
		return err
	}
	if _, ok, err := repo.FindByID(ctx, model.RelationID(parentID, childID)); err != nil || ok {
		return err
	}
	return repo.Save(ctx, model.Relation{
		ProjectID: projectID,
		ParentID:  parentID,
		ChildID:   childID,
		CreatedAt: time.Now().UTC(),
	})
}

// Remove unlinks parentID from childID and reports whether the link existed.
func (r *RelationRepository) Remove(ctx context.Context, projectID, parentID, childID string) (bool, error) {
	return r.Delete(ctx, projectID, model.RelationID(parentID, childID))
}

// RemoveAll unlinks every child of parentID.
func (r *RelationRepository) RemoveAll(ctx context.Context, projectID, parentID string) (int, error) {
	return r.removeWhere(ctx, projectID, "remove_all", func(rel model.Relation) bool { return rel.ParentID == parentID },
		func(ctx context.Context) (int64, error) { return r.store.RemoveAllByParent(ctx, parentID) })
}

// RemoveAllByChild unlinks every parent of childID, e.g. when a tag is deleted.
func (r *RelationRepository) RemoveAllByChild(ctx context.Context, projectID, childID string) (int, error) {
	return r.removeWhere(ctx, projectID, "remove_all_by_child", func(rel model.Relation) bool { return rel.ChildID == childID },
		func(ctx context.Context) (int64, error) { return r.store.RemoveAllByChild(ctx, childID) })
}

func (r *RelationRepository) removeWhere(ctx context.Context, projectID, op string, match func(model.Relation) bool, cache func(context.Context) (int64, error)) (int, error) {
	repo, err := r.For(projectID)
	if err != nil {
		return 0, err
	}

	removed := 0
	if docs := r.documents(projectID); docs != nil {
		n, err := docs.DeleteWhere(ctx, match)
		if err != nil {
			return 0, err
		}
		removed = n
	}
	if r.store != nil {
		n, err := cache(ctx)
		if err != nil {
			repo.diverged(op, projectID, err)
			return removed, err
		}
		if removed == 0 {
			removed = int(n)
		}
	}
	return removed, nil
}

// FindRelations returns the links of parentID.
func (r *RelationRepository) FindRelations(ctx context.Context, projectID, parentID string) ([]model.Relation, error) {
	return r.FindWhere(ctx, projectID, func(rel model.Relation) bool { return rel.ParentID == parentID })
}

// ChildIDs returns the ids linked to parentID, e.g. the users assigned to a task.
func (r *RelationRepository) ChildIDs(ctx context.Context, projectID, parentID string) ([]string, error) {
	rels, err := r.FindRelations(ctx, projectID, parentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.ChildID)
	}
	return ids, nil
}

// ParentIDs returns the ids linked to childID, e.g. the tasks carrying a tag.
func (r *RelationRepository) ParentIDs(ctx context.Context, projectID, childID string) ([]string, error) {
	rels, err := r.FindWhere(ctx, projectID, func(rel model.Relation) bool { return rel.ChildID == childID })
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.ParentID)
	}
	return ids, nil
}
