package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/varubogu/flequit-sub003/internal/relational"
)

// Step is one idempotent unit of a migration.
type Step interface {
	Apply(ctx context.Context, tx *sql.Tx) error
	String() string
}

// SQL is a DDL statement. Re-applying it is not an error.
type SQL string

func (s SQL) Apply(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, string(s)); err != nil && !relational.IsAlreadyExists(err) {
		return err
	}
	return nil
}

func (s SQL) String() string {
	stmt := strings.Join(strings.Fields(string(s)), " ")
	if len(stmt) > 60 {
		stmt = stmt[:57] + "..."
	}
	return stmt
}

// AddColumn adds a column unless the table already has it. SQLite cannot
// add a column with a non-constant default, so Backfill, when set, is
// written into existing rows after the column is created.
type AddColumn struct {
	Table    string
	Column   string
	Type     string
	Backfill string
}

func (a AddColumn) Apply(ctx context.Context, tx *sql.Tx) error {
	exists, err := columnExists(ctx, tx, a.Table, a.Column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", a.Table, a.Column, a.Type)
	if _, err := tx.ExecContext(ctx, stmt); err != nil && !relational.IsAlreadyExists(err) {
		return err
	}
	if a.Backfill != "" {
		stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL", a.Table, a.Column, a.Backfill, a.Column)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to backfill %s.%s: %w", a.Table, a.Column, err)
		}
	}
	return nil
}

func (a AddColumn) String() string {
	return fmt.Sprintf("add column %s.%s", a.Table, a.Column)
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
