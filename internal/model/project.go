package model

import (
	"fmt"
	"time"
)

// Project is the root of the Project → TaskList → Task → SubTask hierarchy.
// Projects live in the global document; everything below them lives in the
// project's own document.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Color       string        `json:"color,omitempty"`
	OrderIndex  int           `json:"order_index"`
	IsArchived  bool          `json:"is_archived"`
	Status      ProjectStatus `json:"status,omitempty"`
	OwnerID     string        `json:"owner_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// EntityID implements Entity.
func (p Project) EntityID() string { return p.ID }

// Validate checks if the Project has valid field values.
func (p Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if err := validateName("name", p.Name, 255); err != nil {
		return err
	}
	if p.Status != "" && !p.Status.IsValid() {
		return fmt.Errorf("invalid project status: %s", p.Status)
	}
	return validateTimestamps(p.CreatedAt, p.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (p *Project) SetDefaults() {
	if p.Status == "" {
		p.Status = ProjectActive
	}
	stampDefaults(&p.CreatedAt, &p.UpdatedAt)
}

// TaskList groups tasks inside a project.
type TaskList struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	OrderIndex  int       `json:"order_index"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityID implements Entity.
func (l TaskList) EntityID() string { return l.ID }

// EntityProjectID implements Scoped.
func (l TaskList) EntityProjectID() string { return l.ProjectID }

// Validate checks if the TaskList has valid field values.
func (l TaskList) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if l.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if err := validateName("name", l.Name, 255); err != nil {
		return err
	}
	return validateTimestamps(l.CreatedAt, l.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (l *TaskList) SetDefaults() {
	stampDefaults(&l.CreatedAt, &l.UpdatedAt)
}
