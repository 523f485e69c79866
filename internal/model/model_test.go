package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTask_Validate(t *testing.T) {
	now := time.Date(2026, 1, 10, 7, 36, 29, 0, time.UTC)
	later := now.Add(24 * time.Hour)

	valid := Task{
		ID:        "t-1",
		ProjectID: "p-1",
		ListID:    "l-1",
		Title:     "Write report",
		Status:    StatusNotStarted,
		Priority:  2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
		errMsg  string
	}{
		{name: "valid task", mutate: func(*Task) {}},
		{name: "missing id", mutate: func(t *Task) { t.ID = "" }, wantErr: true, errMsg: "id is required"},
		{name: "missing project", mutate: func(t *Task) { t.ProjectID = "" }, wantErr: true, errMsg: "project_id is required"},
		{name: "missing list", mutate: func(t *Task) { t.ListID = "" }, wantErr: true, errMsg: "list_id is required"},
		{name: "missing title", mutate: func(t *Task) { t.Title = "" }, wantErr: true, errMsg: "title is required"},
		{name: "title too long", mutate: func(t *Task) { t.Title = strings.Repeat("x", 501) }, wantErr: true, errMsg: "500 characters"},
		{name: "unknown status", mutate: func(t *Task) { t.Status = "open" }, wantErr: true, errMsg: "invalid status"},
		{name: "priority too high", mutate: func(t *Task) { t.Priority = 5 }, wantErr: true, errMsg: "priority"},
		{name: "negative priority", mutate: func(t *Task) { t.Priority = -1 }, wantErr: true, errMsg: "priority"},
		{
			name: "plan end before start",
			mutate: func(t *Task) {
				t.PlanStartDate = &later
				t.PlanEndDate = &now
			},
			wantErr: true,
			errMsg:  "plan_end_date",
		},
		{name: "missing created_at", mutate: func(t *Task) { t.CreatedAt = time.Time{} }, wantErr: true, errMsg: "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)
			err := task.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestTask_SetDefaults(t *testing.T) {
	task := Task{ID: "t-1", ProjectID: "p-1", ListID: "l-1", Title: "x"}
	task.SetDefaults()

	if task.Status != StatusNotStarted {
		t.Errorf("Status = %q, want %q", task.Status, StatusNotStarted)
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("timestamps not defaulted")
	}
	if !task.UpdatedAt.Equal(task.CreatedAt) {
		t.Error("UpdatedAt should default to CreatedAt")
	}
	if err := task.Validate(); err != nil {
		t.Errorf("defaulted task should validate: %v", err)
	}
}

func TestTask_JSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 10, 7, 36, 29, 0, time.UTC)
	task := Task{
		ID: "t-1", ProjectID: "p-1", ListID: "l-1", Title: "Plan",
		Status: StatusInProgress, Priority: 1, PlanStartDate: &now,
		CreatedAt: now, UpdatedAt: now,
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	for _, field := range []string{`"list_id":"l-1"`, `"status":"in_progress"`, `"plan_start_date"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("JSON %s missing %s", data, field)
		}
	}
	if strings.Contains(string(data), "plan_end_date") {
		t.Errorf("nil plan_end_date should be omitted: %s", data)
	}
}

func TestRelation_ID(t *testing.T) {
	r := Relation{ProjectID: "p-1", ParentID: "t-1", ChildID: "u-1", CreatedAt: time.Now()}
	if r.EntityID() != "t-1:u-1" {
		t.Errorf("EntityID() = %q", r.EntityID())
	}

	parent, child, err := SplitRelationID(r.EntityID())
	if err != nil {
		t.Fatalf("SplitRelationID() failed: %v", err)
	}
	if parent != "t-1" || child != "u-1" {
		t.Errorf("SplitRelationID() = %q, %q", parent, child)
	}

	if _, _, err := SplitRelationID("no-separator"); err == nil {
		t.Error("expected error for id without separator")
	}

	r.ChildID = "u:1"
	if err := r.Validate(); err == nil {
		t.Error("expected error for child id containing ':'")
	}
}

func TestRelationKind_Columns(t *testing.T) {
	for _, k := range RelationKinds {
		parent, child := k.Columns()
		if parent == "" || child == "" {
			t.Errorf("%s has no columns", k)
		}
		if !k.IsValid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if RelationKind("bogus").IsValid() {
		t.Error("unknown relation kind should be invalid")
	}
}

func TestSettings_Validate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}

	s.ID = "other"
	if err := s.Validate(); err == nil {
		t.Error("expected error for non-singleton id")
	}

	s = DefaultSettings()
	s.WeekStart = "friday"
	if err := s.Validate(); err == nil {
		t.Error("expected error for week_start")
	}

	var empty Settings
	empty.SetDefaults()
	if err := empty.Validate(); err != nil {
		t.Errorf("defaulted settings invalid: %v", err)
	}
}

func TestSortTaskLists(t *testing.T) {
	lists := []TaskListWithTasks{
		{TaskList: TaskList{ID: "b", OrderIndex: 1}},
		{
			TaskList: TaskList{ID: "a", OrderIndex: 0},
			Tasks: []TaskWithSubTasks{
				{Task: Task{ID: "t2", OrderIndex: 2}},
				{Task: Task{ID: "t1", OrderIndex: 1}},
			},
		},
	}

	SortTaskLists(lists)

	if lists[0].ID != "a" || lists[1].ID != "b" {
		t.Errorf("lists order = %s, %s", lists[0].ID, lists[1].ID)
	}
	if lists[0].Tasks[0].ID != "t1" {
		t.Errorf("first task = %s, want t1", lists[0].Tasks[0].ID)
	}
}
