package migrate

import (
	"fmt"

	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
)

// SyncedAtColumn is maintained by triggers on every entity table.
const SyncedAtColumn = "synced_at"

// Generated builds a migration creating the tables and their single-column
// indexes.
func Generated(version int, tables []*relational.TableDef) Migration {
	m := Migration{
		Version:     version,
		Kind:        KindGenerated,
		Description: fmt.Sprintf("create %d tables", len(tables)),
	}
	for _, t := range tables {
		for _, stmt := range t.Statements() {
			m.Steps = append(m.Steps, SQL(stmt))
		}
	}
	return m
}

// entityTables carry the synced_at column.
var entityTables = []string{
	"projects", "task_lists", "tasks", "subtasks", "tags", "accounts", "users", "settings",
}

// cascades maps a parent table to the child tables and columns that reference it.
var cascades = []struct {
	parent   string
	children [][2]string
}{
	{"projects", [][2]string{
		{"task_lists", "project_id"},
		{"tags", "project_id"},
	}},
	{"task_lists", [][2]string{
		{"tasks", "list_id"},
	}},
	{"tasks", [][2]string{
		{"subtasks", "task_id"},
		{string(model.RelationTaskTag), "task_id"},
		{string(model.RelationTaskAssignment), "task_id"},
	}},
	{"subtasks", [][2]string{
		{string(model.RelationSubTaskTag), "subtask_id"},
		{string(model.RelationSubTaskAssignment), "subtask_id"},
	}},
	{"tags", [][2]string{
		{string(model.RelationTaskTag), "tag_id"},
		{string(model.RelationSubTaskTag), "tag_id"},
	}},
	{"users", [][2]string{
		{string(model.RelationTaskAssignment), "user_id"},
		{string(model.RelationSubTaskAssignment), "user_id"},
	}},
}

// Supplemental builds the statements the descriptors cannot express:
// composite unique indexes on the join tables, cascading deletes and the
// synced_at bookkeeping column.
func Supplemental(version int) Migration {
	m := Migration{
		Version:     version,
		Kind:        KindSupplemental,
		Description: "join uniqueness, cascading deletes, synced_at",
	}

	for _, kind := range model.RelationKinds {
		parent, child := kind.Columns()
		m.Steps = append(m.Steps, SQL(fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS uq_%s_%s_%s ON %s(%s, %s)",
			kind, parent, child, kind, parent, child)))
	}

	// Triggers stand in for ON DELETE CASCADE, which SQLite only supports on
	// foreign keys declared in CREATE TABLE. Child deletes fire their own
	// triggers, so removing a project reaches relations of its subtasks.
	for _, c := range cascades {
		var body string
		for _, ch := range c.children {
			body += fmt.Sprintf(" DELETE FROM %s WHERE %s = OLD.id;", ch[0], ch[1])
		}
		m.Steps = append(m.Steps, SQL(fmt.Sprintf(
			"CREATE TRIGGER IF NOT EXISTS trg_%s_cascade AFTER DELETE ON %s FOR EACH ROW BEGIN%s END",
			c.parent, c.parent, body)))
	}

	for _, table := range entityTables {
		m.Steps = append(m.Steps,
			AddColumn{Table: table, Column: SyncedAtColumn, Type: "TEXT", Backfill: "CURRENT_TIMESTAMP"},
			SQL(fmt.Sprintf(
				"CREATE TRIGGER IF NOT EXISTS trg_%s_synced_insert AFTER INSERT ON %s FOR EACH ROW BEGIN UPDATE %s SET %s = CURRENT_TIMESTAMP WHERE rowid = NEW.rowid; END",
				table, table, table, SyncedAtColumn)),
			SQL(fmt.Sprintf(
				"CREATE TRIGGER IF NOT EXISTS trg_%s_synced_update AFTER UPDATE ON %s FOR EACH ROW WHEN NEW.%s IS OLD.%s BEGIN UPDATE %s SET %s = CURRENT_TIMESTAMP WHERE rowid = NEW.rowid; END",
				table, table, SyncedAtColumn, SyncedAtColumn, table, SyncedAtColumn)),
		)
	}
	return m
}
