package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// EntityStore is the table of one entity type.
type EntityStore[E model.Entity, R Row] struct {
	db    *DB
	def   *TableDef
	codec Codec[E, R]

	selectCols string
	insertSQL  string
	updateSQL  string
}

// NewEntityStore binds an entity codec to its table.
func NewEntityStore[E model.Entity, R Row](db *DB, codec Codec[E, R]) (*EntityStore[E, R], error) {
	def, err := Describe[R]()
	if err != nil {
		return nil, err
	}
	if codec.ToRow == nil || codec.FromRow == nil {
		return nil, fmt.Errorf("codec for %s is incomplete", def.Name)
	}

	cols := def.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var sets []string
	for _, c := range cols {
		if c != def.PrimaryKey() {
			sets = append(sets, c+" = ?")
		}
	}

	return &EntityStore[E, R]{
		db:         db,
		def:        def,
		codec:      codec,
		selectCols: strings.Join(cols, ", "),
		insertSQL:  fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", def.Name, strings.Join(cols, ", "), placeholders),
		updateSQL:  fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", def.Name, strings.Join(sets, ", "), def.PrimaryKey()),
	}, nil
}

// Table returns the table descriptor.
func (s *EntityStore[E, R]) Table() *TableDef {
	return s.def
}

// Check projects e onto its row without touching the database.
func (s *EntityStore[E, R]) Check(e E) error {
	_, err := s.toRow("check", e)
	return err
}

func (s *EntityStore[E, R]) toRow(op string, e E) (R, error) {
	row, err := s.codec.ToRow(e)
	if err != nil {
		return row, storeerr.New(storeerr.KindConversion, op, err).WithEntity(s.def.Name, e.EntityID())
	}
	return row, nil
}

// Save inserts e or updates the existing row with the same id.
func (s *EntityStore[E, R]) Save(ctx context.Context, e E) error {
	row, err := s.toRow("save", e)
	if err != nil {
		return err
	}
	return s.db.withTx(ctx, "save", func(tx *sql.Tx) error {
		return s.saveRow(ctx, tx, e.EntityID(), row)
	})
}

// SaveAll saves every entity in one transaction.
func (s *EntityStore[E, R]) SaveAll(ctx context.Context, entities []E) error {
	rows := make([]R, len(entities))
	for i, e := range entities {
		row, err := s.toRow("save_all", e)
		if err != nil {
			return err
		}
		rows[i] = row
	}
	return s.db.withTx(ctx, "save_all", func(tx *sql.Tx) error {
		for i, row := range rows {
			if err := s.saveRow(ctx, tx, entities[i].EntityID(), row); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveRow checks for an existing row first; the driver has no portable upsert
// for every table shape.
func (s *EntityStore[E, R]) saveRow(ctx context.Context, q querier, id string, row R) error {
	exists, err := s.exists(ctx, q, id)
	if err != nil {
		return err
	}

	vals := s.def.values(row)
	if exists {
		args := make([]any, 0, len(vals))
		for i, v := range vals {
			if i != s.def.pk {
				args = append(args, v)
			}
		}
		args = append(args, id)
		if _, err := q.ExecContext(ctx, s.updateSQL, args...); err != nil {
			return translateEntity("save", s.def.Name, id, err)
		}
		return nil
	}

	if _, err := q.ExecContext(ctx, s.insertSQL, vals...); err != nil {
		return translateEntity("save", s.def.Name, id, err)
	}
	return nil
}

func (s *EntityStore[E, R]) exists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", s.def.Name, s.def.PrimaryKey())
	err := q.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, translateEntity("exists", s.def.Name, id, err)
	}
	return true, nil
}

// Exists reports whether a row with the given id exists.
func (s *EntityStore[E, R]) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.db.withConn(ctx, "exists", func(conn *sql.Conn) error {
		var err error
		found, err = s.exists(ctx, conn, id)
		return err
	})
	return found, err
}

// FindByID returns the entity with the given id. A missing row is not an error.
func (s *EntityStore[E, R]) FindByID(ctx context.Context, id string) (E, bool, error) {
	var zero E
	items, err := s.query(ctx, "find_by_id", s.def.PrimaryKey()+" = ?", id)
	if err != nil {
		return zero, false, err
	}
	if len(items) == 0 {
		return zero, false, nil
	}
	return items[0], true, nil
}

// FindAll returns every row in insertion order.
func (s *EntityStore[E, R]) FindAll(ctx context.Context) ([]E, error) {
	return s.query(ctx, "find_all", "")
}

// FindBy returns the rows whose column equals value.
func (s *EntityStore[E, R]) FindBy(ctx context.Context, column string, value any) ([]E, error) {
	if !s.def.HasColumn(column) {
		return nil, storeerr.Newf(storeerr.KindInvalidOperation, "find_by", "%s has no column %q", s.def.Name, column)
	}
	return s.query(ctx, "find_by", column+" = ?", value)
}

// FindByProject returns the rows of one project.
func (s *EntityStore[E, R]) FindByProject(ctx context.Context, projectID string) ([]E, error) {
	return s.FindBy(ctx, "project_id", projectID)
}

// FindByParent returns the rows whose parent column (e.g. list_id, task_id) equals parentID.
func (s *EntityStore[E, R]) FindByParent(ctx context.Context, parentColumn, parentID string) ([]E, error) {
	return s.FindBy(ctx, parentColumn, parentID)
}

// FindByStatus returns the rows with the given status.
func (s *EntityStore[E, R]) FindByStatus(ctx context.Context, status string) ([]E, error) {
	return s.FindBy(ctx, "status", status)
}

// FindArchived returns the rows whose is_archived flag equals archived.
func (s *EntityStore[E, R]) FindArchived(ctx context.Context, archived bool) ([]E, error) {
	return s.FindBy(ctx, "is_archived", boolToInt(archived))
}

func (s *EntityStore[E, R]) query(ctx context.Context, op, where string, args ...any) ([]E, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", s.selectCols, s.def.Name)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY rowid"

	var items []E
	err := s.db.withConn(ctx, op, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return translateEntity(op, s.def.Name, "", err)
		}
		defer rows.Close()

		items, err = s.scan(op, rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// scan is a helper function to convert multiple rows from query results.
func (s *EntityStore[E, R]) scan(op string, rows *sql.Rows) ([]E, error) {
	items := []E{}
	for rows.Next() {
		var row R
		if err := rows.Scan(s.def.targets(&row)...); err != nil {
			return nil, translateEntity(op, s.def.Name, "", fmt.Errorf("failed to scan row: %w", err))
		}
		e, err := s.codec.FromRow(row)
		if err != nil {
			id := s.def.values(row)[s.def.pk].(string)
			return nil, storeerr.New(storeerr.KindConversion, op, err).WithEntity(s.def.Name, id)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEntity(op, s.def.Name, "", fmt.Errorf("error iterating rows: %w", err))
	}
	return items, nil
}

// Delete removes the row with the given id and reports whether it existed.
func (s *EntityStore[E, R]) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.deleteWhere(ctx, "delete", s.def.PrimaryKey()+" = ?", id)
	return n > 0, err
}

// DeleteBy removes every row whose column equals value.
func (s *EntityStore[E, R]) DeleteBy(ctx context.Context, column string, value any) (int64, error) {
	if !s.def.HasColumn(column) {
		return 0, storeerr.Newf(storeerr.KindInvalidOperation, "delete_by", "%s has no column %q", s.def.Name, column)
	}
	return s.deleteWhere(ctx, "delete_by", column+" = ?", value)
}

func (s *EntityStore[E, R]) deleteWhere(ctx context.Context, op, where string, args ...any) (int64, error) {
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

// Count returns the number of rows.
func (s *EntityStore[E, R]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.withConn(ctx, "count", func(conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.def.Name).Scan(&n)
		return translateEntity("count", s.def.Name, "", err)
	})
	return n, err
}

func translateEntity(op, table, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *storeerr.Error
	if errors.As(err, &se) {
		return err
	}
	return storeerr.New(classify(err), op, err).WithEntity(table, id)
}
