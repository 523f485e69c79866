package repository

import (
	"context"
	"fmt"

	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/model"
)

// TaskListsWithTasks returns the task lists of a project with their tasks,
// subtasks, tag ids and assignees, ordered for display.
func (r *Repositories) TaskListsWithTasks(ctx context.Context, projectID string) ([]model.TaskListWithTasks, error) {
	lists, err := r.TaskLists.FindAll(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task lists: %w", err)
	}
	tasks, err := r.Tasks.FindAll(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	subTasks, err := r.SubTasks.FindAll(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtasks: %w", err)
	}
	tags, err := r.TaskTags.FindAll(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task tags: %w", err)
	}
	assignees, err := r.TaskAssignments.FindAll(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task assignments: %w", err)
	}

	subsByTask := make(map[string][]model.SubTask)
	for _, s := range subTasks {
		subsByTask[s.TaskID] = append(subsByTask[s.TaskID], s)
	}
	tagsByTask := make(map[string][]string)
	for _, rel := range tags {
		tagsByTask[rel.ParentID] = append(tagsByTask[rel.ParentID], rel.ChildID)
	}
	usersByTask := make(map[string][]string)
	for _, rel := range assignees {
		usersByTask[rel.ParentID] = append(usersByTask[rel.ParentID], rel.ChildID)
	}

	tasksByList := make(map[string][]model.TaskWithSubTasks)
	for _, t := range tasks {
		tasksByList[t.ListID] = append(tasksByList[t.ListID], model.TaskWithSubTasks{
			Task:            t,
			SubTasks:        nonNil(subsByTask[t.ID]),
			TagIDs:          nonNil(tagsByTask[t.ID]),
			AssignedUserIDs: nonNil(usersByTask[t.ID]),
		})
	}

	out := make([]model.TaskListWithTasks, 0, len(lists))
	for _, l := range lists {
		out = append(out, model.TaskListWithTasks{TaskList: l, Tasks: nonNil(tasksByList[l.ID])})
	}
	model.SortTaskLists(out)
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// DeleteSubTask removes a subtask with its tags and assignments.
func (r *Repositories) DeleteSubTask(ctx context.Context, projectID, subTaskID string) (bool, error) {
	if _, err := r.SubTaskTags.RemoveAll(ctx, projectID, subTaskID); err != nil {
		return false, err
	}
	if _, err := r.SubTaskAssignments.RemoveAll(ctx, projectID, subTaskID); err != nil {
		return false, err
	}
	return r.SubTasks.Delete(ctx, projectID, subTaskID)
}

// DeleteTask removes a task with its subtasks, tags and assignments.
func (r *Repositories) DeleteTask(ctx context.Context, projectID, taskID string) (bool, error) {
	subs, err := r.SubTasks.sourceWhere(ctx, projectID, func(s model.SubTask) bool { return s.TaskID == taskID })
	if err != nil {
		return false, err
	}
	for _, s := range subs {
		if _, err := r.DeleteSubTask(ctx, projectID, s.ID); err != nil {
			return false, err
		}
	}
	if _, err := r.TaskTags.RemoveAll(ctx, projectID, taskID); err != nil {
		return false, err
	}
	if _, err := r.TaskAssignments.RemoveAll(ctx, projectID, taskID); err != nil {
		return false, err
	}
	return r.Tasks.Delete(ctx, projectID, taskID)
}

// DeleteTaskList removes a task list and every task in it.
func (r *Repositories) DeleteTaskList(ctx context.Context, projectID, listID string) (bool, error) {
	tasks, err := r.Tasks.sourceWhere(ctx, projectID, func(t model.Task) bool { return t.ListID == listID })
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if _, err := r.DeleteTask(ctx, projectID, t.ID); err != nil {
			return false, err
		}
	}
	return r.TaskLists.Delete(ctx, projectID, listID)
}

// DeleteTag removes a tag and unlinks it from every task and subtask.
func (r *Repositories) DeleteTag(ctx context.Context, projectID, tagID string) (bool, error) {
	if _, err := r.TaskTags.RemoveAllByChild(ctx, projectID, tagID); err != nil {
		return false, err
	}
	if _, err := r.SubTaskTags.RemoveAllByChild(ctx, projectID, tagID); err != nil {
		return false, err
	}
	return r.Tags.Delete(ctx, projectID, tagID)
}

// DeleteProject removes a project, its document and every cached row of it.
// The project entry goes first so a failure never leaves it pointing at a
// removed document.
func (r *Repositories) DeleteProject(ctx context.Context, projectID string) (bool, error) {
	found, err := r.Projects.Delete(ctx, projectID)
	if err != nil {
		return false, err
	}

	if r.backends.Documents != nil {
		if err := r.backends.Documents.Remove(ctx, document.Project(projectID)); err != nil {
			return found, err
		}
	}

	if r.backends.DB != nil {
		for _, rel := range r.tables.relations {
			if _, err := rel.RemoveAllByProject(ctx, projectID); err != nil {
				return found, err
			}
		}
		deletes := []func() (int64, error){
			func() (int64, error) { return r.tables.subTasks.DeleteBy(ctx, "project_id", projectID) },
			func() (int64, error) { return r.tables.tasks.DeleteBy(ctx, "project_id", projectID) },
			func() (int64, error) { return r.tables.taskLists.DeleteBy(ctx, "project_id", projectID) },
			func() (int64, error) { return r.tables.tags.DeleteBy(ctx, "project_id", projectID) },
		}
		for _, del := range deletes {
			if _, err := del(); err != nil {
				return found, err
			}
		}
	}

	r.log.Infof("deleted project %s", projectID)
	return found, nil
}
