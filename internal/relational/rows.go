package relational

import (
	"database/sql"
	"fmt"

	"github.com/varubogu/flequit-sub003/internal/model"
)

// ProjectRow is the projects table.
type ProjectRow struct {
	ID          string `db:"id,pk"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Color       string `db:"color"`
	OrderIndex  int64  `db:"order_index"`
	IsArchived  int64  `db:"is_archived,index"`
	Status      string `db:"status,index"`
	OwnerID     string `db:"owner_id,index"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (ProjectRow) TableName() string { return "projects" }

// TaskListRow is the task_lists table.
type TaskListRow struct {
	ID          string `db:"id,pk"`
	ProjectID   string `db:"project_id,index"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Color       string `db:"color"`
	OrderIndex  int64  `db:"order_index"`
	IsArchived  int64  `db:"is_archived,index"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (TaskListRow) TableName() string { return "task_lists" }

// TaskRow is the tasks table.
type TaskRow struct {
	ID            string         `db:"id,pk"`
	ProjectID     string         `db:"project_id,index"`
	ListID        string         `db:"list_id,index"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	Status        string         `db:"status,index"`
	Priority      int64          `db:"priority"`
	OrderIndex    int64          `db:"order_index"`
	PlanStartDate sql.NullString `db:"plan_start_date"`
	PlanEndDate   sql.NullString `db:"plan_end_date,index"`
	DoStartDate   sql.NullString `db:"do_start_date"`
	DoEndDate     sql.NullString `db:"do_end_date"`
	IsRangeDate   int64          `db:"is_range_date"`
	IsArchived    int64          `db:"is_archived,index"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

func (TaskRow) TableName() string { return "tasks" }

// SubTaskRow is the subtasks table.
type SubTaskRow struct {
	ID            string         `db:"id,pk"`
	TaskID        string         `db:"task_id,index"`
	ProjectID     string         `db:"project_id,index"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	Status        string         `db:"status,index"`
	Priority      int64          `db:"priority"`
	OrderIndex    int64          `db:"order_index"`
	Completed     int64          `db:"completed"`
	PlanStartDate sql.NullString `db:"plan_start_date"`
	PlanEndDate   sql.NullString `db:"plan_end_date"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

func (SubTaskRow) TableName() string { return "subtasks" }

// TagRow is the tags table.
type TagRow struct {
	ID         string `db:"id,pk"`
	ProjectID  string `db:"project_id,index"`
	Name       string `db:"name,index"`
	Color      string `db:"color"`
	OrderIndex int64  `db:"order_index"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func (TagRow) TableName() string { return "tags" }

// AccountRow is the accounts table.
type AccountRow struct {
	ID          string `db:"id,pk"`
	UserID      string `db:"user_id,index"`
	Email       string `db:"email"`
	DisplayName string `db:"display_name"`
	Provider    string `db:"provider"`
	ProviderID  string `db:"provider_id"`
	IsActive    int64  `db:"is_active"`
	IsDeleted   int64  `db:"is_deleted,index"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (AccountRow) TableName() string { return "accounts" }

// UserRow is the users table.
type UserRow struct {
	ID          string `db:"id,pk"`
	Handle      string `db:"handle,index"`
	DisplayName string `db:"display_name"`
	Email       string `db:"email"`
	AvatarURL   string `db:"avatar_url"`
	IsActive    int64  `db:"is_active"`
	IsDeleted   int64  `db:"is_deleted,index"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (UserRow) TableName() string { return "users" }

// SettingsRow is the settings table. It holds at most one row.
type SettingsRow struct {
	ID            string `db:"id,pk"`
	Theme         string `db:"theme"`
	Language      string `db:"language"`
	FontSize      int64  `db:"font_size"`
	WeekStart     string `db:"week_start"`
	Timezone      string `db:"timezone"`
	DateFormat    string `db:"date_format"`
	CustomDueDays string `db:"custom_due_days"` // JSON array
	UpdatedAt     string `db:"updated_at"`
}

func (SettingsRow) TableName() string { return "settings" }

// Join tables. The id column is model.RelationID(parent, child); uniqueness of
// the (parent, child) pair is enforced by a supplemental composite index.

type TaskTagRow struct {
	ID        string `db:"id,pk"`
	ProjectID string `db:"project_id,index"`
	TaskID    string `db:"task_id,index"`
	TagID     string `db:"tag_id,index"`
	CreatedAt string `db:"created_at"`
}

func (TaskTagRow) TableName() string { return string(model.RelationTaskTag) }

type TaskAssignmentRow struct {
	ID        string `db:"id,pk"`
	ProjectID string `db:"project_id,index"`
	TaskID    string `db:"task_id,index"`
	UserID    string `db:"user_id,index"`
	CreatedAt string `db:"created_at"`
}

func (TaskAssignmentRow) TableName() string { return string(model.RelationTaskAssignment) }

type SubTaskTagRow struct {
	ID        string `db:"id,pk"`
	ProjectID string `db:"project_id,index"`
	SubTaskID string `db:"subtask_id,index"`
	TagID     string `db:"tag_id,index"`
	CreatedAt string `db:"created_at"`
}

func (SubTaskTagRow) TableName() string { return string(model.RelationSubTaskTag) }

type SubTaskAssignmentRow struct {
	ID        string `db:"id,pk"`
	ProjectID string `db:"project_id,index"`
	SubTaskID string `db:"subtask_id,index"`
	UserID    string `db:"user_id,index"`
	CreatedAt string `db:"created_at"`
}

func (SubTaskAssignmentRow) TableName() string { return string(model.RelationSubTaskAssignment) }

// Tables returns the descriptors of every table, parents before children.
func Tables() []*TableDef {
	return []*TableDef{
		MustDescribe[ProjectRow](),
		MustDescribe[TaskListRow](),
		MustDescribe[TaskRow](),
		MustDescribe[SubTaskRow](),
		MustDescribe[TagRow](),
		MustDescribe[AccountRow](),
		MustDescribe[UserRow](),
		MustDescribe[SettingsRow](),
		MustDescribe[TaskTagRow](),
		MustDescribe[TaskAssignmentRow](),
		MustDescribe[SubTaskTagRow](),
		MustDescribe[SubTaskAssignmentRow](),
	}
}

func relationTable(kind model.RelationKind) (*TableDef, error) {
	switch kind {
	case model.RelationTaskTag:
		return Describe[TaskTagRow]()
	case model.RelationTaskAssignment:
		return Describe[TaskAssignmentRow]()
	case model.RelationSubTaskTag:
		return Describe[SubTaskTagRow]()
	case model.RelationSubTaskAssignment:
		return Describe[SubTaskAssignmentRow]()
	default:
		return nil, fmt.Errorf("unknown relation kind %q", kind)
	}
}
