package relational

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/varubogu/flequit-sub003/internal/model"
)

// testDBPath returns a temporary path for test databases
func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// openTestDB opens a database with the generated schema applied.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DefaultOptions(testDBPath(t)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := createTables(ctx, db); err != nil {
		t.Fatalf("createTables() failed: %v", err)
	}
	return db
}

func createTables(ctx context.Context, db *DB) error {
	for _, def := range Tables() {
		for _, stmt := range def.Statements() {
			if err := db.Exec(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

var testTime = time.Date(2026, 3, 4, 5, 6, 7, 891011121, time.UTC)

func sampleTask(id string) model.Task {
	start := testTime.Add(24 * time.Hour)
	return model.Task{
		ID:            id,
		ProjectID:     "p1",
		ListID:        "l1",
		Title:         "Write report",
		Description:   "quarterly",
		Status:        model.StatusNotStarted,
		Priority:      2,
		OrderIndex:    1,
		PlanStartDate: &start,
		CreatedAt:     testTime,
		UpdatedAt:     testTime,
	}
}
