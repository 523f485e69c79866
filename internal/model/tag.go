package model

import (
	"fmt"
	"time"
)

// Tag labels tasks and subtasks within a project.
type Tag struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color,omitempty"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EntityID implements Entity.
func (t Tag) EntityID() string { return t.ID }

// EntityProjectID implements Scoped.
func (t Tag) EntityProjectID() string { return t.ProjectID }

// Validate checks if the Tag has valid field values.
func (t Tag) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if err := validateName("name", t.Name, 100); err != nil {
		return err
	}
	return validateTimestamps(t.CreatedAt, t.UpdatedAt)
}

// SetDefaults applies default values for optional fields.
func (t *Tag) SetDefaults() {
	stampDefaults(&t.CreatedAt, &t.UpdatedAt)
}
