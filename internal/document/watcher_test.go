package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_StartStop(t *testing.T) {
	m := newTestManager(t, t.TempDir())

	w, err := NewWatcher(m, WatcherConfig{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("newly created watcher should not be running")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running after Start()")
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop()")
	}
}

func TestWatcher_MergesExternalChange(t *testing.T) {
	ctx := context.Background()
	local := newTestManager(t, t.TempDir())
	remote := newTestManager(t, t.TempDir())

	if err := SaveData(ctx, local, Project("p1"), "tasks", []item{{ID: "t1"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}

	changed := make(chan Type, 4)
	w, err := NewWatcher(local, WatcherConfig{
		Debounce: 20 * time.Millisecond,
		OnChange: func(_ context.Context, typ Type) { changed <- typ },
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// The manager's own writes are not reported.
	if err := SaveData(ctx, local, Project("p1"), "tasks", []item{{ID: "t1"}, {ID: "t2"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	select {
	case typ := <-changed:
		t.Fatalf("own write reported as external change to %v", typ)
	case <-time.After(150 * time.Millisecond):
	}

	// Deliver the remote replica's file the way a sync tool would.
	if err := SaveData(ctx, remote, Project("p1"), "tags", []item{{ID: "g1"}}); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(remote.Dir(), Project("p1").FileName()))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	tmp := filepath.Join(local.Dir(), "incoming.tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := os.Rename(tmp, filepath.Join(local.Dir(), Project("p1").FileName())); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}

	select {
	case typ := <-changed:
		if typ != Project("p1") {
			t.Errorf("OnChange(%v), want project:p1", typ)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for external change")
	}

	tasks, _, err := LoadData[[]item](ctx, local, Project("p1"), "tasks")
	if err != nil {
		t.Fatalf("LoadData() failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("local tasks lost by merge: %+v", tasks)
	}
	if _, found, _ := LoadData[[]item](ctx, local, Project("p1"), "tags"); !found {
		t.Error("remote tags not merged")
	}
}
