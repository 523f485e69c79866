package relational

import (
	"fmt"

	"github.com/varubogu/flequit-sub003/internal/model"
)

// Codecs for every entity table.
var (
	ProjectCodec  = Codec[model.Project, ProjectRow]{ToRow: projectToRow, FromRow: projectFromRow}
	TaskListCodec = Codec[model.TaskList, TaskListRow]{ToRow: taskListToRow, FromRow: taskListFromRow}
	TaskCodec     = Codec[model.Task, TaskRow]{ToRow: taskToRow, FromRow: taskFromRow}
	SubTaskCodec  = Codec[model.SubTask, SubTaskRow]{ToRow: subTaskToRow, FromRow: subTaskFromRow}
	TagCodec      = Codec[model.Tag, TagRow]{ToRow: tagToRow, FromRow: tagFromRow}
	AccountCodec  = Codec[model.Account, AccountRow]{ToRow: accountToRow, FromRow: accountFromRow}
	UserCodec     = Codec[model.User, UserRow]{ToRow: userToRow, FromRow: userFromRow}
	SettingsCodec = Codec[model.Settings, SettingsRow]{ToRow: settingsToRow, FromRow: settingsFromRow}
)

func projectToRow(p model.Project) (ProjectRow, error) {
	created, updated, err := timestamps(p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return ProjectRow{}, err
	}
	return ProjectRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		OrderIndex:  int64(p.OrderIndex),
		IsArchived:  boolToInt(p.IsArchived),
		Status:      string(p.Status),
		OwnerID:     p.OwnerID,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func projectFromRow(r ProjectRow) (model.Project, error) {
	created, updated, err := parseTimestamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.Project{}, err
	}
	return model.Project{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		OrderIndex:  int(r.OrderIndex),
		IsArchived:  r.IsArchived != 0,
		Status:      model.ProjectStatus(r.Status),
		OwnerID:     r.OwnerID,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func taskListToRow(l model.TaskList) (TaskListRow, error) {
	created, updated, err := timestamps(l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return TaskListRow{}, err
	}
	return TaskListRow{
		ID:          l.ID,
		ProjectID:   l.ProjectID,
		Name:        l.Name,
		Description: l.Description,
		Color:       l.Color,
		OrderIndex:  int64(l.OrderIndex),
		IsArchived:  boolToInt(l.IsArchived),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func taskListFromRow(r TaskListRow) (model.TaskList, error) {
	created, updated, err := parseTimestamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.TaskList{}, err
	}
	return model.TaskList{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		OrderIndex:  int(r.OrderIndex),
		IsArchived:  r.IsArchived != 0,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func taskToRow(t model.Task) (TaskRow, error) {
	created, updated, err := timestamps(t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return TaskRow{}, err
	}
	row := TaskRow{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		ListID:      t.ListID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    int64(t.Priority),
		OrderIndex:  int64(t.OrderIndex),
		IsRangeDate: boolToInt(t.IsRangeDate),
		IsArchived:  boolToInt(t.IsArchived),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if row.PlanStartDate, err = timeToNullString(t.PlanStartDate); err != nil {
		return TaskRow{}, fmt.Errorf("plan_start_date: %w", err)
	}
	if row.PlanEndDate, err = timeToNullString(t.PlanEndDate); err != nil {
		return TaskRow{}, fmt.Errorf("plan_end_date: %w", err)
	}
	if row.DoStartDate, err = timeToNullString(t.DoStartDate); err != nil {
		return TaskRow{}, fmt.Errorf("do_start_date: %w", err)
	}
	if row.DoEndDate, err = timeToNullString(t.DoEndDate); err != nil {
		return TaskRow{}, fmt.Errorf("do_end_date: %w", err)
	}
	return row, nil
}

func taskFromRow(r TaskRow) (model.Task, error) {
	created, updated, err := parseTimestamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		ListID:      r.ListID,
		Title:       r.Title,
		Description: r.Description,
		Status:      model.Status(r.Status),
		Priority:    int(r.Priority),
		OrderIndex:  int(r.OrderIndex),
		IsRangeDate: r.IsRangeDate != 0,
		IsArchived:  r.IsArchived != 0,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if t.PlanStartDate, err = nullStringToTime(r.PlanStartDate); err != nil {
		return model.Task{}, fmt.Errorf("plan_start_date: %w", err)
	}
	if t.PlanEndDate, err = nullStringToTime(r.PlanEndDate); err != nil {
		return model.Task{}, fmt.Errorf("plan_end_date: %w", err)
	}
	if t.DoStartDate, err = nullStringToTime(r.DoStartDate); err != nil {
		return model.Task{}, fmt.Errorf("do_start_date: %w", err)
	}
	if t.DoEndDate, err = nullStringToTime(r.DoEndDate); err != nil {
		return model.Task{}, fmt.Errorf("do_end_date: %w", err)
	}
	return t, nil
}

func subTaskToRow(s model.SubTask) (SubTaskRow, error) {
	created, updated, err := timestamps(s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return SubTaskRow{}, err
	}
	row := SubTaskRow{
		ID:          s.ID,
		TaskID:      s.TaskID,
		ProjectID:   s.ProjectID,
		Title:       s.Title,
		Description: s.Description,
		Status:      string(s.Status),
		Priority:    int64(s.Priority),
		OrderIndex:  int64(s.OrderIndex),
		Completed:   boolToInt(s.Completed),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if row.PlanStartDate, err = timeToNullString(s.PlanStartDate); err != nil {
		return SubTaskRow{}, fmt.Errorf("plan_start_date: %w", err)
	}
	if row.PlanEndDate, err = timeToNullString(s.PlanEndDate); err != nil {
		return SubTaskRow{}, fmt.Errorf("plan_end_date: %w", err)
	}
	return row, nil
}

func subTaskFromRow(r SubTaskRow) (model.SubTask, error) {
	created, updated, err := parseTimestamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.SubTask{}, err
	}
	s := model.SubTask{
		ID:          r.ID,
		TaskID:      r.TaskID,
		ProjectID:   r.ProjectID,
		Title:       r.Title,
		Description: r.Description,
		Status:      model.Status(r.Status),
		Priority:    int(r.Priority),
		OrderIndex:  int(r.OrderIndex),
		Completed:   r.Completed != 0,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if s.PlanStartDate, err = nullStringToTime(r.PlanStartDate); err != nil {
		return model.SubTask{}, fmt.Errorf("plan_start_date: %w", err)
	}
	if s.PlanEndDate, err = nullStringToTime(r.PlanEndDate); err != nil {
		return model.SubTask{}, fmt.Errorf("plan_end_date: %w", err)
	}
	return s, nil
}

func tagToRow(t model.Tag) (TagRow, error) {
	created, updated, err := timestamps(t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return TagRow{}, err
	}
	return TagRow{
		ID:         t.ID,
		ProjectID:  t.ProjectID,
		Name:       t.Name,
		Color:      t.Color,
		OrderIndex: int64(t.OrderIndex),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

func tagFromRow(r TagRow) (model.Tag, error) {
	created, updated, err := parseTimestamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.Tag{}, err
	}
	return model.Tag{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Name:       r.Name,
		Color:      r.Color,
		OrderIndex: int(r.OrderIndex),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

func accountToRow(a model.Account) (AccountRow, error) {
	created, updated, err := timestamps(a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return AccountRow{}, err
	}
	return AccountRow{
		ID:          a.ID,
		UserID:      a.UserID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Provider:    a.Provider,
		ProviderID:  a.ProviderID,
		IsActive:    boolToInt(a.IsActive),
		IsDeleted:   boolToInt(a.IsDeleted),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func accountFromRow(r AccountRow) (model.Account, error) {
	created, updated, err := parseTimestamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	return model.Account{
		ID:          r.ID,
		UserID:      r.UserID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Provider:    r.Provider,
		ProviderID:  r.ProviderID,
		IsActive:    r.IsActive != 0,
		IsDeleted:   r.IsDeleted != 0,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func userToRow(u model.User) (UserRow, error) {
	created, updated, err := timestamps(u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return UserRow{}, err
	}
	return UserRow{
		ID:          u.ID,
		Handle:      u.Handle,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
		IsActive:    boolToInt(u.IsActive),
		IsDeleted:   boolToInt(u.IsDeleted),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func userFromRow(r UserRow) (model.User, error) {
	created, updated, err := parseTimestamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:          r.ID,
		Handle:      r.Handle,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		AvatarURL:   r.AvatarURL,
		IsActive:    r.IsActive != 0,
		IsDeleted:   r.IsDeleted != 0,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func settingsToRow(s model.Settings) (SettingsRow, error) {
	updated, err := formatTime(s.UpdatedAt)
	if err != nil {
		return SettingsRow{}, fmt.Errorf("updated_at: %w", err)
	}
	days, err := encodeInts(s.CustomDueDays)
	if err != nil {
		return SettingsRow{}, fmt.Errorf("custom_due_days: %w", err)
	}
	return SettingsRow{
		ID:            s.ID,
		Theme:         s.Theme,
		Language:      s.Language,
		FontSize:      int64(s.FontSize),
		WeekStart:     s.WeekStart,
		Timezone:      s.Timezone,
		DateFormat:    s.DateFormat,
		CustomDueDays: days,
		UpdatedAt:     updated,
	}, nil
}

func settingsFromRow(r SettingsRow) (model.Settings, error) {
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return model.Settings{}, fmt.Errorf("updated_at: %w", err)
	}
	days, err := decodeInts(r.CustomDueDays)
	if err != nil {
		return model.Settings{}, fmt.Errorf("custom_due_days: %w", err)
	}
	return model.Settings{
		ID:            r.ID,
		Theme:         r.Theme,
		Language:      r.Language,
		FontSize:      int(r.FontSize),
		WeekStart:     r.WeekStart,
		Timezone:      r.Timezone,
		DateFormat:    r.DateFormat,
		CustomDueDays: days,
		UpdatedAt:     updated,
	}, nil
}
