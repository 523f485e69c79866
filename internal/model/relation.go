package model

import (
	"fmt"
	"strings"
	"time"
)

// RelationKind identifies one many-to-many relation.
type RelationKind string

const (
	RelationTaskTag           RelationKind = "task_tags"
	RelationTaskAssignment    RelationKind = "task_assignments"
	RelationSubTaskTag        RelationKind = "subtask_tags"
	RelationSubTaskAssignment RelationKind = "subtask_assignments"
)

// RelationKinds lists every relation in a stable order.
var RelationKinds = []RelationKind{
	RelationTaskTag,
	RelationTaskAssignment,
	RelationSubTaskTag,
	RelationSubTaskAssignment,
}

// Columns returns the parent and child column names of the join table.
func (k RelationKind) Columns() (parent, child string) {
	switch k {
	case RelationTaskTag:
		return "task_id", "tag_id"
	case RelationTaskAssignment:
		return "task_id", "user_id"
	case RelationSubTaskTag:
		return "subtask_id", "tag_id"
	case RelationSubTaskAssignment:
		return "subtask_id", "user_id"
	default:
		return "", ""
	}
}

// IsValid reports whether k is a known relation.
func (k RelationKind) IsValid() bool {
	p, _ := k.Columns()
	return p != ""
}

// Relation links a task or subtask (parent) to a tag or user (child).
// It is stored in the project document under the relation kind's key.
type Relation struct {
	ProjectID string    `json:"project_id"`
	ParentID  string    `json:"parent_id"`
	ChildID   string    `json:"child_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RelationID builds the composite id of a relation.
func RelationID(parentID, childID string) string {
	return parentID + ":" + childID
}

// SplitRelationID is the inverse of RelationID.
func SplitRelationID(id string) (parentID, childID string, err error) {
	parentID, childID, ok := strings.Cut(id, ":")
	if !ok || parentID == "" || childID == "" {
		return "", "", fmt.Errorf("invalid relation id: %q", id)
	}
	return parentID, childID, nil
}

// EntityID implements Entity.
func (r Relation) EntityID() string { return RelationID(r.ParentID, r.ChildID) }

// EntityProjectID implements Scoped.
func (r Relation) EntityProjectID() string { return r.ProjectID }

// Validate checks if the Relation has valid field values.
func (r Relation) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if r.ParentID == "" {
		return fmt.Errorf("parent_id is required")
	}
	if r.ChildID == "" {
		return fmt.Errorf("child_id is required")
	}
	if strings.Contains(r.ParentID, ":") || strings.Contains(r.ChildID, ":") {
		return fmt.Errorf("relation ids must not contain ':'")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (r *Relation) SetDefaults() {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}
