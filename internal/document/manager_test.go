package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/varubogu/flequit-sub003/internal/crdt"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	m, err := NewManager(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_GetOrCreateCreatesFile(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)
	ctx := context.Background()

	d, err := m.GetOrCreate(ctx, Project("p1"))
	if err != nil {
		t.Fatalf("GetOrCreate() failed: %v", err)
	}
	want := filepath.Join(dir, DirName, "project_p1.crdt")
	if d.Path() != want {
		t.Errorf("Path() = %q, want %q", d.Path(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("backing file not created: %v", err)
	}

	again, err := m.GetOrCreate(ctx, Project("p1"))
	if err != nil {
		t.Fatalf("GetOrCreate() failed: %v", err)
	}
	if again != d {
		t.Error("GetOrCreate() returned a different handle for the same type")
	}

	if _, err := m.GetOrCreate(ctx, Project("../escape")); !errors.Is(err, storeerr.ErrValidation) {
		t.Errorf("GetOrCreate(bad id) error = %v, want validation error", err)
	}
}

func TestLoadSaveData(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)
	ctx := context.Background()

	_, found, err := LoadData[[]item](ctx, m, Global(), "projects")
	if err != nil {
		t.Fatalf("LoadData() failed: %v", err)
	}
	if found {
		t.Error("LoadData() found a key that was never written")
	}

	want := []item{{ID: "a", Name: "Inbox"}, {ID: "b", Name: "Work"}}
	if err := SaveData(ctx, m, Global(), "projects", want); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}

	got, found, err := LoadData[[]item](ctx, m, Global(), "projects")
	if err != nil || !found {
		t.Fatalf("LoadData() = %v, %v", found, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadData() mismatch (-want +got):\n%s", diff)
	}

	// A fresh manager over the same directory sees the persisted snapshot.
	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	m2 := newTestManager(t, dir)
	got, found, err = LoadData[[]item](ctx, m2, Global(), "projects")
	if err != nil || !found {
		t.Fatalf("LoadData() after reopen = %v, %v", found, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reopened mismatch (-want +got):\n%s", diff)
	}
	if m2.Actor() != m.Actor() {
		t.Errorf("actor id not persisted: %q vs %q", m2.Actor(), m.Actor())
	}
}

func TestLoadData_DecodeFailureIsStorageError(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()

	if err := SaveData(ctx, m, Global(), "settings", "not a list"); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	_, _, err := LoadData[[]item](ctx, m, Global(), "settings")
	if !errors.Is(err, storeerr.ErrStorage) {
		t.Errorf("LoadData() error = %v, want storage error", err)
	}
}

func TestUpdateData(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := UpdateData(ctx, m, Project("p1"), "counter", func(cur int, _ bool) (int, error) {
				return cur + 1, nil
			})
			if err != nil {
				t.Errorf("UpdateData() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _, err := LoadData[int](ctx, m, Project("p1"), "counter")
	if err != nil {
		t.Fatalf("LoadData() failed: %v", err)
	}
	if got != 20 {
		t.Errorf("counter = %d, want 20 (lost update)", got)
	}

	boom := errors.New("boom")
	err = UpdateData(ctx, m, Project("p1"), "counter", func(cur int, _ bool) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("UpdateData() error = %v, want callback error", err)
	}
	if got, _, _ := LoadData[int](ctx, m, Project("p1"), "counter"); got != 20 {
		t.Errorf("failed update was written: counter = %d", got)
	}
}

func TestManager_LockHonoursContext(t *testing.T) {
	m := newTestManager(t, t.TempDir())

	d, err := m.acquire(context.Background(), "test", Global(), true)
	if err != nil {
		t.Fatalf("acquire() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = LoadData[int](ctx, m, Global(), "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("LoadData() while locked error = %v, want deadline exceeded", err)
	}

	d.unlock()
	if _, _, err := LoadData[int](context.Background(), m, Global(), "x"); err != nil {
		t.Errorf("LoadData() after unlock failed: %v", err)
	}
}

func TestManager_ListDocuments(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()

	for _, typ := range []Type{Project("b"), Global(), Project("a")} {
		if _, err := m.GetOrCreate(ctx, typ); err != nil {
			t.Fatalf("GetOrCreate(%v) failed: %v", typ, err)
		}
	}

	got, err := m.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}
	want := []Type{Global(), Project("a"), Project("b")}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(Type{})); diff != "" {
		t.Errorf("ListDocuments() mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_MergeAndReload(t *testing.T) {
	ctx := context.Background()
	local := newTestManager(t, t.TempDir())
	remote := newTestManager(t, t.TempDir())

	if err := SaveData(ctx, local, Project("p1"), "tasks", []item{{ID: "t1", Name: "local"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	if err := SaveData(ctx, remote, Project("p1"), "tags", []item{{ID: "g1", Name: "remote"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}

	snap, err := remote.Snapshot(ctx, Project("p1"))
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	changed, err := local.Merge(ctx, Project("p1"), snap)
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("Merge() changed = %d, want 1", changed)
	}

	keys, err := local.Keys(ctx, Project("p1"))
	if err != nil {
		t.Fatalf("Keys() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"tags", "tasks"}, keys); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	// Reload picks up a file replaced behind the manager's back.
	if err := SaveData(ctx, remote, Project("p1"), "tags", []item{{ID: "g1", Name: "renamed"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(remote.Dir(), Project("p1").FileName()))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(local.Dir(), Project("p1").FileName()), data, 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if _, err := local.Reload(ctx, Project("p1")); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	tags, _, err := LoadData[[]item](ctx, local, Project("p1"), "tags")
	if err != nil {
		t.Fatalf("LoadData() failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "renamed" {
		t.Errorf("tags after reload = %+v", tags)
	}
	tasks, _, _ := LoadData[[]item](ctx, local, Project("p1"), "tasks")
	if len(tasks) != 1 {
		t.Errorf("local tasks lost by reload: %+v", tasks)
	}
}

// copyDocument replaces dst's backing file of typ with src's, the way a file
// sync tool delivers another replica's snapshot.
func copyDocument(t *testing.T, src, dst *Manager, typ Type) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(src.Dir(), typ.FileName()))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dst.Dir(), typ.FileName()), data, 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
}

func TestSaveData_KeepsUnseenReplicaChanges(t *testing.T) {
	ctx := context.Background()
	local := newTestManager(t, t.TempDir())
	remote := newTestManager(t, t.TempDir())

	if err := SaveData(ctx, local, Global(), "a", []item{{ID: "a1"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	if err := SaveData(ctx, remote, Global(), "b", []item{{ID: "b1"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	copyDocument(t, remote, local, Global())

	if err := SaveData(ctx, local, Global(), "c", []item{{ID: "c1"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	if !local.takeAbsorbed(Global()) {
		t.Error("takeAbsorbed() = false after a save merged the replica's snapshot")
	}
	if local.takeAbsorbed(Global()) {
		t.Error("takeAbsorbed() did not clear")
	}

	for _, key := range []string{"a", "b", "c"} {
		if _, found, err := LoadData[[]item](ctx, local, Global(), key); err != nil || !found {
			t.Errorf("LoadData(%s) = %v, %v after local save", key, found, err)
		}
	}
	onDisk, err := crdt.ReadFile(filepath.Join(local.Dir(), Global().FileName()), "reader")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, onDisk.Keys()); diff != "" {
		t.Errorf("keys on disk mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateData_SeesUnseenReplicaChanges(t *testing.T) {
	ctx := context.Background()
	local := newTestManager(t, t.TempDir())
	remote := newTestManager(t, t.TempDir())

	if err := SaveData(ctx, local, Project("p1"), "tasks", []item{{ID: "t1", Name: "old"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	snap, err := local.Snapshot(ctx, Project("p1"))
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if _, err := remote.Merge(ctx, Project("p1"), snap); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	if err := SaveData(ctx, remote, Project("p1"), "tasks", []item{{ID: "t1", Name: "remote"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	copyDocument(t, remote, local, Project("p1"))

	err = UpdateData(ctx, local, Project("p1"), "tasks", func(cur []item, found bool) ([]item, error) {
		return append(cur, item{ID: "t2"}), nil
	})
	if err != nil {
		t.Fatalf("UpdateData() failed: %v", err)
	}
	got, _, err := LoadData[[]item](ctx, local, Project("p1"), "tasks")
	if err != nil {
		t.Fatalf("LoadData() failed: %v", err)
	}
	want := []item{{ID: "t1", Name: "remote"}, {ID: "t2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadData_MissingDocumentNotCreated(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()
	path := filepath.Join(m.Dir(), Project("ghost").FileName())

	if _, found, err := LoadData[[]item](ctx, m, Project("ghost"), "tasks"); err != nil || found {
		t.Fatalf("LoadData() = %v, %v", found, err)
	}
	if _, err := m.Keys(ctx, Project("ghost")); err != nil {
		t.Fatalf("Keys() failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("read created %s: %v", path, err)
	}
	types, err := m.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}
	for _, typ := range types {
		if typ == Project("ghost") {
			t.Error("ListDocuments() lists a document that was only read")
		}
	}

	if err := SaveData(ctx, m, Project("ghost"), "tasks", []item{{ID: "t1"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("save did not create the document: %v", err)
	}
}

func TestManager_EvictAndRemove(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	ctx := context.Background()

	if err := SaveData(ctx, m, Project("p1"), "tasks", []item{{ID: "t1"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	if err := m.Evict(ctx, Project("p1")); err != nil {
		t.Fatalf("Evict() failed: %v", err)
	}
	got, found, err := LoadData[[]item](ctx, m, Project("p1"), "tasks")
	if err != nil || !found || len(got) != 1 {
		t.Fatalf("LoadData() after evict = %v, %v, %v", got, found, err)
	}

	if err := m.Remove(ctx, Project("p1")); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "project_p1.crdt")); !os.IsNotExist(err) {
		t.Errorf("document file still present: %v", err)
	}
	if err := m.Remove(ctx, Global()); !errors.Is(err, storeerr.ErrInvalidOperation) {
		t.Errorf("Remove(global) error = %v, want invalid operation", err)
	}
}

func TestManager_Closed(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	if err := m.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	_, err := m.GetOrCreate(context.Background(), Global())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("GetOrCreate() after Close error = %v, want ErrClosed", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
