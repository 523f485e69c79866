package relational

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// RelationStore is one join table.
type RelationStore struct {
	db     *DB
	kind   model.RelationKind
	def    *TableDef
	parent string
	child  string
}

// NewRelationStore returns the store for the join table of kind.
func NewRelationStore(db *DB, kind model.RelationKind) (*RelationStore, error) {
	def, err := relationTable(kind)
	if err != nil {
		return nil, err
	}
	parent, child := kind.Columns()
	return &RelationStore{db: db, kind: kind, def: def, parent: parent, child: child}, nil
}

// Kind returns the relation kind.
func (s *RelationStore) Kind() model.RelationKind {
	return s.kind
}

// Check projects r onto its row without touching the database.
func (s *RelationStore) Check(r model.Relation) error {
	if _, err := formatTime(r.CreatedAt); err != nil {
		return storeerr.New(storeerr.KindConversion, "check", fmt.Errorf("created_at: %w", err)).WithEntity(s.def.Name, r.EntityID())
	}
	return nil
}

// Add inserts the relation unless it already exists and reports whether a
// row was inserted.
func (s *RelationStore) Add(ctx context.Context, r model.Relation) (bool, error) {
	created, err := formatTime(r.CreatedAt)
	if err != nil {
		return false, storeerr.New(storeerr.KindConversion, "add", fmt.Errorf("created_at: %w", err)).WithEntity(s.def.Name, r.EntityID())
	}

	added := false
	err = s.db.withTx(ctx, "add", func(tx *sql.Tx) error {
		exists, err := s.exists(ctx, tx, r.ParentID, r.ChildID)
		if err != nil || exists {
			return err
		}
		query := fmt.Sprintf("INSERT INTO %s (id, project_id, %s, %s, created_at) VALUES (?, ?, ?, ?, ?)", s.def.Name, s.parent, s.child)
		if _, err := tx.ExecContext(ctx, query, r.EntityID(), r.ProjectID, r.ParentID, r.ChildID, created); err != nil {
			return translateEntity("add", s.def.Name, r.EntityID(), err)
		}
		added = true
		return nil
	})
	return added, err
}

// AddAll inserts every missing relation in one transaction.
func (s *RelationStore) AddAll(ctx context.Context, relations []model.Relation) error {
	return s.db.withTx(ctx, "add_all", func(tx *sql.Tx) error {
		query := fmt.Sprintf("INSERT INTO %s (id, project_id, %s, %s, created_at) VALUES (?, ?, ?, ?, ?)", s.def.Name, s.parent, s.child)
		for _, r := range relations {
			created, err := formatTime(r.CreatedAt)
			if err != nil {
				return storeerr.New(storeerr.KindConversion, "add_all", err).WithEntity(s.def.Name, r.EntityID())
			}
			exists, err := s.exists(ctx, tx, r.ParentID, r.ChildID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.ExecContext(ctx, query, r.EntityID(), r.ProjectID, r.ParentID, r.ChildID, created); err != nil {
				return translateEntity("add_all", s.def.Name, r.EntityID(), err)
			}
		}
		return nil
	})
}

func (s *RelationStore) exists(ctx context.Context, q querier, parentID, childID string) (bool, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ? AND %s = ?", s.def.Name, s.parent, s.child)
	if err := q.QueryRowContext(ctx, query, parentID, childID).Scan(&n); err != nil {
		return false, translateEntity("exists", s.def.Name, model.RelationID(parentID, childID), err)
	}
	return n > 0, nil
}

// Exists reports whether the relation exists.
func (s *RelationStore) Exists(ctx context.Context, parentID, childID string) (bool, error) {
	var found bool
	err := s.db.withConn(ctx, "exists", func(conn *sql.Conn) error {
		var err error
		found, err = s.exists(ctx, conn, parentID, childID)
		return err
	})
	return found, err
}

// Remove deletes one relation and reports whether it existed.
func (s *RelationStore) Remove(ctx context.Context, parentID, childID string) (bool, error) {
	n, err := s.delete(ctx, "remove", fmt.Sprintf("%s = ? AND %s = ?", s.parent, s.child), parentID, childID)
	return n > 0, err
}

// RemoveAllByParent deletes every relation of a task or subtask.
func (s *RelationStore) RemoveAllByParent(ctx context.Context, parentID string) (int64, error) {
	return s.delete(ctx, "remove_all", s.parent+" = ?", parentID)
}

// RemoveAllByChild deletes every relation pointing at a tag or user.
func (s *RelationStore) RemoveAllByChild(ctx context.Context, childID string) (int64, error) {
	return s.delete(ctx, "remove_all", s.child+" = ?", childID)
}

// RemoveAllByProject deletes every relation of a project.
func (s *RelationStore) RemoveAllByProject(ctx context.Context, projectID string) (int64, error) {
	return s.delete(ctx, "remove_all", "project_id = ?", projectID)
}

func (s *RelationStore) delete(ctx context.Context, op, where string, args ...any) (int64, error) {
	var n int64
	err := s.db.withConn(ctx, op, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", s.def.Name, where), args...)
		if err != nil {
			return translateEntity(op, s.def.Name, "", err)
		}
		n, err = res.RowsAffected()
		return translateEntity(op, s.def.Name, "", err)
	})
	return n, err
}

// FindByParent returns the relations of a task or subtask.
func (s *RelationStore) FindByParent(ctx context.Context, parentID string) ([]model.Relation, error) {
	return s.find(ctx, "find_by_parent", s.parent+" = ?", parentID)
}

// FindByChild returns the relations pointing at a tag or user.
func (s *RelationStore) FindByChild(ctx context.Context, childID string) ([]model.Relation, error) {
	return s.find(ctx, "find_by_child", s.child+" = ?", childID)
}

// FindByProject returns every relation of a project.
func (s *RelationStore) FindByProject(ctx context.Context, projectID string) ([]model.Relation, error) {
	return s.find(ctx, "find_by_project", "project_id = ?", projectID)
}

// FindAll returns every relation.
func (s *RelationStore) FindAll(ctx context.Context) ([]model.Relation, error) {
	return s.find(ctx, "find_all", "1 = 1")
}

func (s *RelationStore) find(ctx context.Context, op, where string, args ...any) ([]model.Relation, error) {
	query := fmt.Sprintf("SELECT project_id, %s, %s, created_at FROM %s WHERE %s ORDER BY rowid", s.parent, s.child, s.def.Name, where)

	relations := []model.Relation{}
	err := s.db.withConn(ctx, op, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return translateEntity(op, s.def.Name, "", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r model.Relation
			var created string
			if err := rows.Scan(&r.ProjectID, &r.ParentID, &r.ChildID, &created); err != nil {
				return translateEntity(op, s.def.Name, "", fmt.Errorf("failed to scan relation: %w", err))
			}
			if r.CreatedAt, err = parseTime(created); err != nil {
				return storeerr.New(storeerr.KindConversion, op, err).WithEntity(s.def.Name, r.EntityID())
			}
			relations = append(relations, r)
		}
		if err := rows.Err(); err != nil {
			return translateEntity(op, s.def.Name, "", fmt.Errorf("error iterating relations: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return relations, nil
}

// Count returns the number of relations.
func (s *RelationStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.withConn(ctx, "count", func(conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.def.Name).Scan(&n)
		return translateEntity("count", s.def.Name, "", err)
	})
	return n, err
}
