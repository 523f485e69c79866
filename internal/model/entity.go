package model

import (
	"fmt"
	"time"
)

// Entity is implemented by every persisted value.
type Entity interface {
	// EntityID returns the primary key, unique within its collection.
	EntityID() string
	// Validate checks the domain invariants of the value.
	Validate() error
}

// Scoped is implemented by entities partitioned by project.
type Scoped interface {
	Entity
	EntityProjectID() string
}

// Status is the progress state shared by tasks and subtasks.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusWaiting    Status = "waiting"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusWaiting, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// IsValid reports whether s is a known project status.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

// MaxPriority is the lowest priority (backlog). 0 is the most urgent.
const MaxPriority = 4

func validatePriority(p int) error {
	if p < 0 || p > MaxPriority {
		return fmt.Errorf("priority must be between 0 and %d (got %d)", MaxPriority, p)
	}
	return nil
}

func validateName(field, v string, max int) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(v) > max {
		return fmt.Errorf("%s must be %d characters or less (got %d)", field, max, len(v))
	}
	return nil
}

func validateTimestamps(created, updated time.Time) error {
	if created.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if updated.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

func stampDefaults(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}
