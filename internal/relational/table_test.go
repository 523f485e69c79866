package relational

import (
	"strings"
	"testing"
)

func TestDescribe_TaskRow(t *testing.T) {
	def, err := Describe[TaskRow]()
	if err != nil {
		t.Fatalf("Describe() failed: %v", err)
	}

	if def.Name != "tasks" {
		t.Errorf("Name = %q, want tasks", def.Name)
	}
	if def.PrimaryKey() != "id" {
		t.Errorf("PrimaryKey() = %q, want id", def.PrimaryKey())
	}
	if len(def.Columns) != 16 {
		t.Errorf("len(Columns) = %d, want 16", len(def.Columns))
	}

	create := def.CreateSQL()
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS tasks (",
		"id TEXT PRIMARY KEY",
		"title TEXT NOT NULL",
		"priority INTEGER NOT NULL",
		"plan_start_date TEXT,",
	} {
		if !strings.Contains(create, want) {
			t.Errorf("CreateSQL() missing %q:\n%s", want, create)
		}
	}

	indexes := strings.Join(def.IndexSQL(), "\n")
	for _, want := range []string{"idx_tasks_project_id ON tasks(project_id)", "idx_tasks_status ON tasks(status)"} {
		if !strings.Contains(indexes, want) {
			t.Errorf("IndexSQL() missing %q:\n%s", want, indexes)
		}
	}

	again, _ := Describe[TaskRow]()
	if again != def {
		t.Error("Describe() should return the cached descriptor")
	}
}

type badTypeRow struct {
	ID    string  `db:"id,pk"`
	Score float64 `db:"score"`
}

func (badTypeRow) TableName() string { return "bad" }

type noKeyRow struct {
	Name string `db:"name"`
}

func (noKeyRow) TableName() string { return "nokey" }

type badNameRow struct {
	ID string `db:"id,pk"`
}

func (badNameRow) TableName() string { return "bad; DROP TABLE x" }

func TestDescribe_Invalid(t *testing.T) {
	if _, err := Describe[badTypeRow](); err == nil {
		t.Error("expected error for unsupported column type")
	}
	if _, err := Describe[noKeyRow](); err == nil {
		t.Error("expected error for missing primary key")
	}
	if _, err := Describe[badNameRow](); err == nil {
		t.Error("expected error for invalid table name")
	}
}

func TestTables_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range Tables() {
		if seen[def.Name] {
			t.Errorf("duplicate table %s", def.Name)
		}
		seen[def.Name] = true
	}
	if len(seen) != 12 {
		t.Errorf("got %d tables, want 12", len(seen))
	}
}
