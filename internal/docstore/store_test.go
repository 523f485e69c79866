package docstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/model"
)

func newTagStore(t *testing.T) *Store[model.Tag] {
	t.Helper()
	m, err := document.NewManager(document.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return New[model.Tag](m, document.Project("p1"), "tags")
}

func tag(id, name string) model.Tag {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return model.Tag{ID: id, ProjectID: "p1", Name: name, CreatedAt: now, UpdatedAt: now}
}

func TestStore_ListEmpty(t *testing.T) {
	s := newTagStore(t)
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", got)
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	s := newTagStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, tag("g1", "urgent")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := s.Set(ctx, tag("g2", "home")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, found, err := s.Get(ctx, "g2")
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}
	if diff := cmp.Diff(tag("g2", "home"), got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	deleted, err := s.Delete(ctx, "g1")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v, want true", deleted, err)
	}
	deleted, err = s.Delete(ctx, "g1")
	if err != nil || deleted {
		t.Errorf("second Delete() = %v, %v, want false", deleted, err)
	}
	if _, found, _ := s.Get(ctx, "g1"); found {
		t.Error("deleted entity still present")
	}

	// Order of the survivors is preserved.
	list, _ := s.List(ctx)
	if len(list) != 1 || list[0].ID != "g2" {
		t.Errorf("List() after delete = %+v", list)
	}
}

func TestStore_SetIsIdempotent(t *testing.T) {
	s := newTagStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, tag("g1", "urgent")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	first, _ := s.List(ctx)
	if err := s.Set(ctx, tag("g1", "urgent")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	second, _ := s.List(ctx)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated Set() changed the collection (-first +second):\n%s", diff)
	}
}

func TestStore_SameIDKeepsOneEntry(t *testing.T) {
	s := newTagStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Set(ctx, tag("g1", fmt.Sprintf("name-%d", i))); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List() has %d entries, want 1", len(list))
	}
	if list[0].Name != "name-4" {
		t.Errorf("Name = %q, want last payload", list[0].Name)
	}
}

func TestStore_SetAllAndDeleteWhere(t *testing.T) {
	s := newTagStore(t)
	ctx := context.Background()

	if err := s.SetAll(ctx, []model.Tag{tag("a", "1"), tag("b", "2"), tag("a", "3")}); err != nil {
		t.Fatalf("SetAll() failed: %v", err)
	}
	if n, _ := s.Len(ctx); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}

	removed, err := s.DeleteWhere(ctx, func(tg model.Tag) bool { return tg.ID == "a" })
	if err != nil {
		t.Fatalf("DeleteWhere() failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("DeleteWhere() removed %d, want 1", removed)
	}
	if removed, _ := s.DeleteWhere(ctx, func(model.Tag) bool { return false }); removed != 0 {
		t.Errorf("DeleteWhere(no match) removed %d", removed)
	}
}
