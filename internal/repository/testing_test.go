package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/metrics"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/relational/migrate"
)

var testTime = time.Date(2026, 4, 5, 6, 7, 8, 123456789, time.UTC)

func newTestManager(t testing.TB) *document.Manager {
	t.Helper()
	m, err := document.NewManager(document.Options{DataDir: t.TempDir(), Actor: "test-actor", NoLock: true})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newTestDB(t testing.TB) *relational.DB {
	t.Helper()
	ctx := context.Background()
	db, err := relational.Open(ctx, relational.DefaultOptions(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrate.New(db, relational.Tables(), nil).Run(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

type backendSet struct {
	docs, db bool
}

// newTestRepositories builds repositories over the requested backends.
func newTestRepositories(t testing.TB, set backendSet) *Repositories {
	t.Helper()
	b := Backends{Metrics: metrics.New()}
	if set.docs {
		b.Documents = newTestManager(t)
	}
	if set.db {
		b.DB = newTestDB(t)
	}
	repos, err := NewRepositories(b)
	if err != nil {
		t.Fatalf("NewRepositories() failed: %v", err)
	}
	return repos
}

var allBackendSets = []struct {
	name string
	set  backendSet
}{
	{"both", backendSet{docs: true, db: true}},
	{"documents only", backendSet{docs: true}},
	{"relational only", backendSet{db: true}},
}

func sampleProject(id, name string) model.Project {
	return model.Project{ID: id, Name: name, Status: model.ProjectActive, CreatedAt: testTime, UpdatedAt: testTime}
}

func sampleList(projectID, id string, order int) model.TaskList {
	return model.TaskList{ID: id, ProjectID: projectID, Name: "List " + id, OrderIndex: order, CreatedAt: testTime, UpdatedAt: testTime}
}

func sampleTask(projectID, listID, id string) model.Task {
	end := testTime.Add(48 * time.Hour)
	return model.Task{
		ID:          id,
		ProjectID:   projectID,
		ListID:      listID,
		Title:       "Task " + id,
		Status:      model.StatusNotStarted,
		Priority:    2,
		PlanEndDate: &end,
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	}
}

func sampleSubTask(projectID, taskID, id string) model.SubTask {
	return model.SubTask{ID: id, TaskID: taskID, ProjectID: projectID, Title: "Sub " + id, Status: model.StatusNotStarted, CreatedAt: testTime, UpdatedAt: testTime}
}

func sampleTag(projectID, id string) model.Tag {
	return model.Tag{ID: id, ProjectID: projectID, Name: "tag-" + id, CreatedAt: testTime, UpdatedAt: testTime}
}
