package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/varubogu/flequit-sub003/internal/docstore"
	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/relational/migrate"
	"github.com/varubogu/flequit-sub003/internal/repository"
)

var testTime = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

// setupTest creates a document manager and a migrated database.
func setupTest(t *testing.T) (*document.Manager, *relational.DB, Syncer) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	m, err := document.NewManager(document.Options{DataDir: dir, Actor: "test", NoLock: true})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	db, err := relational.Open(ctx, relational.DefaultOptions(filepath.Join(dir, "test.db")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrate.New(db, relational.Tables(), nil).Run(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	s, err := New(m, db, Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return m, db, s
}

// writeDocuments stores entities in the documents only, as a merge from
// another device would.
func writeDocuments(t *testing.T, m *document.Manager, projectID string, taskIDs ...string) {
	t.Helper()
	ctx := context.Background()

	projects := docstore.New[model.Project](m, document.Global(), repository.KeyProjects)
	if err := projects.Set(ctx, model.Project{ID: projectID, Name: "Project " + projectID, Status: model.ProjectActive, CreatedAt: testTime, UpdatedAt: testTime}); err != nil {
		t.Fatalf("set project: %v", err)
	}

	typ := document.Project(projectID)
	lists := docstore.New[model.TaskList](m, typ, repository.KeyTaskLists)
	if err := lists.Set(ctx, model.TaskList{ID: projectID + "-l", ProjectID: projectID, Name: "List", CreatedAt: testTime, UpdatedAt: testTime}); err != nil {
		t.Fatalf("set list: %v", err)
	}

	tasks := docstore.New[model.Task](m, typ, repository.KeyTasks)
	tags := docstore.New[model.Relation](m, typ, string(model.RelationTaskTag))
	for _, id := range taskIDs {
		task := model.Task{ID: id, ProjectID: projectID, ListID: projectID + "-l", Title: id, Status: model.StatusNotStarted, CreatedAt: testTime, UpdatedAt: testTime}
		if err := tasks.Set(ctx, task); err != nil {
			t.Fatalf("set task: %v", err)
		}
		if err := tags.Set(ctx, model.Relation{ProjectID: projectID, ParentID: id, ChildID: "g1", CreatedAt: testTime}); err != nil {
			t.Fatalf("set relation: %v", err)
		}
	}
}

func count(t *testing.T, db *relational.DB, table string) int {
	t.Helper()
	var n int
	if err := db.RawDB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestFullSync(t *testing.T) {
	ctx := context.Background()
	m, db, s := setupTest(t)

	writeDocuments(t, m, "p1", "t1", "t2")
	writeDocuments(t, m, "p2", "t3")

	st, err := s.FullSync(ctx)
	if err != nil {
		t.Fatalf("FullSync() failed: %v", err)
	}
	if st.Documents != 3 || st.FailedDocuments != 0 || st.Failed != 0 {
		t.Errorf("FullSync() stats = %s", st)
	}
	// 2 projects, 2 lists, 3 tasks, 3 relations
	if st.Entities != 10 {
		t.Errorf("Entities = %d, want 10", st.Entities)
	}

	want := map[string]int{"projects": 2, "task_lists": 2, "tasks": 3, "task_tags": 3}
	for table, n := range want {
		if got := count(t, db, table); got != n {
			t.Errorf("%s has %d rows, want %d", table, got, n)
		}
	}

	tasks, _ := relational.NewEntityStore(db, relational.TaskCodec)
	got, ok, err := tasks.FindByID(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("FindByID() = %v, %v", ok, err)
	}
	if got.ProjectID != "p1" || got.Title != "t1" {
		t.Errorf("cached task = %+v", got)
	}

	// A second sync changes nothing.
	st, err = s.FullSync(ctx)
	if err != nil {
		t.Fatalf("second FullSync() failed: %v", err)
	}
	if st.Pruned != 0 {
		t.Errorf("second FullSync() pruned %d rows", st.Pruned)
	}
}

func TestSyncDocument_Prunes(t *testing.T) {
	ctx := context.Background()
	m, db, s := setupTest(t)

	writeDocuments(t, m, "p1", "t1", "t2")
	if _, err := s.FullSync(ctx); err != nil {
		t.Fatalf("FullSync() failed: %v", err)
	}

	tasks := docstore.New[model.Task](m, document.Project("p1"), repository.KeyTasks)
	if _, err := tasks.Delete(ctx, "t2"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	rels := docstore.New[model.Relation](m, document.Project("p1"), string(model.RelationTaskTag))
	if _, err := rels.Delete(ctx, model.RelationID("t2", "g1")); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	st, err := s.SyncDocument(ctx, document.Project("p1"))
	if err != nil {
		t.Fatalf("SyncDocument() failed: %v", err)
	}
	// the relation row goes with its task
	if st.Pruned != 1 {
		t.Errorf("Pruned = %d, want 1", st.Pruned)
	}
	if got := count(t, db, "tasks"); got != 1 {
		t.Errorf("tasks has %d rows, want 1", got)
	}
	if got := count(t, db, "task_tags"); got != 1 {
		t.Errorf("task_tags has %d rows, want 1", got)
	}
}

func TestSyncDocument_SkipsInvalidEntities(t *testing.T) {
	ctx := context.Background()
	m, db, s := setupTest(t)

	tags := docstore.New[model.Tag](m, document.Project("p1"), repository.KeyTags)
	good := model.Tag{ID: "g1", ProjectID: "p1", Name: "ok", CreatedAt: testTime, UpdatedAt: testTime}
	bad := model.Tag{ID: "g2", ProjectID: "p1", CreatedAt: testTime, UpdatedAt: testTime}
	if err := tags.SetAll(ctx, []model.Tag{good, bad}); err != nil {
		t.Fatalf("SetAll() failed: %v", err)
	}

	st, err := s.SyncDocument(ctx, document.Project("p1"))
	if err != nil {
		t.Fatalf("SyncDocument() failed: %v", err)
	}
	if st.Entities != 1 || st.Failed != 1 {
		t.Errorf("stats = %s, want 1 synced and 1 failed", st)
	}

	store, _ := relational.NewEntityStore(db, relational.TagCodec)
	all, err := store.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll() failed: %v", err)
	}
	if diff := cmp.Diff([]model.Tag{good}, all); diff != "" {
		t.Errorf("cached tags mismatch (-want +got):\n%s", diff)
	}
}

func TestFullSync_DropsVanishedProjects(t *testing.T) {
	ctx := context.Background()
	m, db, s := setupTest(t)

	writeDocuments(t, m, "p1", "t1")
	writeDocuments(t, m, "p2", "t2")
	if _, err := s.FullSync(ctx); err != nil {
		t.Fatalf("FullSync() failed: %v", err)
	}

	if err := m.Remove(ctx, document.Project("p2")); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := s.FullSync(ctx); err != nil {
		t.Fatalf("FullSync() failed: %v", err)
	}
	if got := count(t, db, "tasks"); got != 1 {
		t.Errorf("tasks has %d rows, want 1", got)
	}
	if got := count(t, db, "task_tags"); got != 1 {
		t.Errorf("task_tags has %d rows, want 1", got)
	}

	if err := s.RemoveProject(ctx, "p1"); err != nil {
		t.Fatalf("RemoveProject() failed: %v", err)
	}
	if got := count(t, db, "task_lists"); got != 0 {
		t.Errorf("task_lists has %d rows, want 0", got)
	}
}

func TestNew_NeedsBothBackends(t *testing.T) {
	if _, err := New(nil, nil, Options{}); err == nil {
		t.Error("New() without backends should fail")
	}
}
