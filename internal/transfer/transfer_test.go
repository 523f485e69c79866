package transfer

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/relational/migrate"
	"github.com/varubogu/flequit-sub003/internal/repository"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
	"gopkg.in/yaml.v3"
)

var testTime = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func newRepos(t *testing.T) *repository.Repositories {
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

	repos, err := repository.NewRepositories(repository.Backends{Documents: m, DB: db})
	if err != nil {
		t.Fatalf("NewRepositories() failed: %v", err)
	}
	return repos
}

// seed stores a project with one list, task, subtask and tag.
func seed(t *testing.T, repos *repository.Repositories) {
	t.Helper()
	ctx := context.Background()
	due := testTime.Add(72 * time.Hour)

	steps := []error{
		repos.Projects.Save(ctx, model.Project{ID: "p1", Name: "Home", Status: model.ProjectActive, CreatedAt: testTime, UpdatedAt: testTime}),
		repos.TaskLists.Save(ctx, model.TaskList{ID: "l1", ProjectID: "p1", Name: "Chores", CreatedAt: testTime, UpdatedAt: testTime}),
		repos.Tasks.Save(ctx, model.Task{ID: "t1", ProjectID: "p1", ListID: "l1", Title: "Paint fence", Status: model.StatusInProgress, Priority: 1, PlanEndDate: &due, CreatedAt: testTime, UpdatedAt: testTime}),
		repos.SubTasks.Save(ctx, model.SubTask{ID: "s1", TaskID: "t1", ProjectID: "p1", Title: "Buy paint", Status: model.StatusCompleted, Completed: true, CreatedAt: testTime, UpdatedAt: testTime}),
		repos.Tags.Save(ctx, model.Tag{ID: "g1", ProjectID: "p1", Name: "urgent", CreatedAt: testTime, UpdatedAt: testTime}),
		repos.TaskTags.Add(ctx, "p1", "t1", "g1"),
		repos.TaskAssignments.Add(ctx, "p1", "t1", "u1"),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("seed step %d failed: %v", i, err)
		}
	}
}

func TestJSONL_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newRepos(t)
	seed(t, src)

	var buf bytes.Buffer
	exported, err := ExportJSONL(ctx, src, "p1", &buf)
	if err != nil {
		t.Fatalf("ExportJSONL() failed: %v", err)
	}
	if exported.Records != 7 {
		t.Errorf("exported %s, want 7 records", exported)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 7 {
		t.Errorf("export has %d lines, want 7", lines)
	}

	dst := newRepos(t)
	imported, err := ImportJSONL(ctx, dst, &buf, ImportOptions{})
	if err != nil {
		t.Fatalf("ImportJSONL() failed: %v", err)
	}
	if len(imported.Errors) != 0 {
		t.Fatalf("ImportJSONL() errors: %v", imported.Errors)
	}
	if diff := cmp.Diff(exported.Counts, imported.Counts); diff != "" {
		t.Errorf("counts mismatch (-exported +imported):\n%s", diff)
	}

	wantTasks, _ := src.Tasks.FindAll(ctx, "p1")
	gotTasks, err := dst.Tasks.FindAll(ctx, "p1")
	if err != nil {
		t.Fatalf("FindAll() failed: %v", err)
	}
	if diff := cmp.Diff(wantTasks, gotTasks); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}

	wantTree, err := src.TaskListsWithTasks(ctx, "p1")
	if err != nil {
		t.Fatalf("TaskListsWithTasks() failed: %v", err)
	}
	gotTree, err := dst.TaskListsWithTasks(ctx, "p1")
	if err != nil {
		t.Fatalf("TaskListsWithTasks() failed: %v", err)
	}
	if diff := cmp.Diff(wantTree, gotTree); diff != "" {
		t.Errorf("project tree mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_MissingProject(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	if _, err := ExportJSONL(ctx, repos, "nope", io.Discard); !storeerr.IsNotFound(err) {
		t.Errorf("ExportJSONL() error = %v, want not found", err)
	}
	if err := ExportYAML(ctx, repos, "nope", io.Discard); !storeerr.IsNotFound(err) {
		t.Errorf("ExportYAML() error = %v, want not found", err)
	}
}

func TestImport_ReportsBadRecords(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	input := strings.Join([]string{
		`not json`,
		`{"kind":"widget","data":{}}`,
		`{"kind":"tag","data":{"id":"g1","project_id":"p1"}}`,
		``,
		`{"kind":"tag","data":{"id":"g2","project_id":"p1","name":"ok"}}`,
	}, "\n")

	result, err := ImportJSONL(ctx, repos, strings.NewReader(input), ImportOptions{})
	if err != nil {
		t.Fatalf("ImportJSONL() failed: %v", err)
	}
	if result.Records != 1 || len(result.Errors) != 3 {
		t.Fatalf("result = %s, errors %v", result, result.Errors)
	}
	for i, prefix := range []string{"line 1:", "line 2:", "line 3:"} {
		if !strings.HasPrefix(result.Errors[i], prefix) {
			t.Errorf("Errors[%d] = %q, want prefix %q", i, result.Errors[i], prefix)
		}
	}

	tags, err := repos.Tags.FindAll(ctx, "p1")
	if err != nil {
		t.Fatalf("FindAll() failed: %v", err)
	}
	if len(tags) != 1 || tags[0].ID != "g2" {
		t.Errorf("tags = %+v, want only g2", tags)
	}
	// defaults were applied on import
	if tags[0].CreatedAt.IsZero() {
		t.Error("imported tag has no created_at")
	}
}

func TestImport_DryRun(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	input := `{"kind":"tag","data":{"id":"g1","project_id":"p1","name":"ok"}}
{"kind":"tag","data":{"id":"g2","project_id":"p1"}}
`
	result, err := ImportJSONL(ctx, repos, strings.NewReader(input), ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ImportJSONL() failed: %v", err)
	}
	if result.Records != 1 || len(result.Errors) != 1 {
		t.Errorf("result = %s, want 1 record and 1 error", result)
	}
	tags, _ := repos.Tags.FindAll(ctx, "p1")
	if len(tags) != 0 {
		t.Errorf("dry run saved %d tags", len(tags))
	}
}

func TestExportYAML(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	seed(t, repos)

	var buf bytes.Buffer
	if err := ExportYAML(ctx, repos, "p1", &buf); err != nil {
		t.Fatalf("ExportYAML() failed: %v", err)
	}

	var tree ProjectTree
	if err := yaml.Unmarshal(buf.Bytes(), &tree); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, buf.String())
	}

	due := testTime.Add(72 * time.Hour)
	want := ProjectTree{
		ID:     "p1",
		Name:   "Home",
		Status: string(model.ProjectActive),
		Tags:   []string{"urgent"},
		Lists: []ListNode{{
			ID:   "l1",
			Name: "Chores",
			Tasks: []TaskNode{{
				ID:        "t1",
				Title:     "Paint fence",
				Status:    string(model.StatusInProgress),
				Priority:  1,
				Due:       &due,
				Tags:      []string{"urgent"},
				Assignees: []string{"u1"},
				SubTasks:  []SubTaskNode{{ID: "s1", Title: "Buy paint", Status: string(model.StatusCompleted), Completed: true}},
			}},
		}},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "p1.jsonl")

	if err := WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello\n")
		return err
	}); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	// A failing writer leaves the previous file untouched.
	if err := WriteFile(path, func(w io.Writer) error {
		return io.ErrUnexpectedEOF
	}); err == nil {
		t.Error("WriteFile() should fail when the writer fails")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "hello\n" {
		t.Errorf("content after failed write = %q", data)
	}
}
