package model

import (
	"fmt"
	"time"
)

// Task is a unit of work inside a task list.
type Task struct {
	// ===== Core Identification =====
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	ListID    string `json:"list_id"`

	// ===== Task Content =====
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`

	// ===== Priority & Ordering =====
	Priority   int `json:"priority"` // 0-4 (0=critical, 4=backlog)
	OrderIndex int `json:"order_index"`

	// ===== Scheduling =====
	PlanStartDate *time.Time `json:"plan_start_date,omitempty"`
	PlanEndDate   *time.Time `json:"plan_end_date,omitempty"`
	DoStartDate   *time.Time `json:"do_start_date,omitempty"`
	DoEndDate     *time.Time `json:"do_end_date,omitempty"`
	IsRangeDate   bool       `json:"is_range_date"`

	IsArchived bool `json:"is_archived"`

	// ===== Timestamps (last-write-wins) =====
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID implements Entity.
func (t Task) EntityID() string { return t.ID }

// EntityProjectID implements Scoped.
func (t Task) EntityProjectID() string { return t.ProjectID }

// Validate checks if the Task has valid field values.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if t.ListID == "" {
		return fmt.Errorf("list_id is required")
	}
	if err := validateName("title", t.Title, 500); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %q", t.Status)
	}
	if err := validatePriority(t.Priority); err != nil {
		return err
	}
	if t.PlanStartDate != nil && t.PlanEndDate != nil && t.PlanEndDate.Before(*t.PlanStartDate) {
		return fmt.Errorf("plan_end_date must not be before plan_start_date")
	}
	return validateTimestamps(t.CreatedAt, t.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusNotStarted
	}
	stampDefaults(&t.CreatedAt, &t.UpdatedAt)
}

// Touch sets UpdatedAt to the current time.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// SubTask is a checklist item of a task.
type SubTask struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Priority    int    `json:"priority"`
	OrderIndex  int    `json:"order_index"`
	Completed   bool   `json:"completed"`

	PlanStartDate *time.Time `json:"plan_start_date,omitempty"`
	PlanEndDate   *time.Time `json:"plan_end_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID implements Entity.
func (s SubTask) EntityID() string { return s.ID }

// EntityProjectID implements Scoped.
func (s SubTask) EntityProjectID() string { return s.ProjectID }

// Validate checks if the SubTask has valid field values.
func (s SubTask) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if s.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if err := validateName("title", s.Title, 500); err != nil {
		return err
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status: %q", s.Status)
	}
	if err := validatePriority(s.Priority); err != nil {
		return err
	}
	return validateTimestamps(s.CreatedAt, s.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (s *SubTask) SetDefaults() {
	if s.Status == "" {
		s.Status = StatusNotStarted
	}
	stampDefaults(&s.CreatedAt, &s.UpdatedAt)
}
