package model

import "sort"

// TaskWithSubTasks is a task together with everything hanging off it.
type TaskWithSubTasks struct {
	Task
	SubTasks        []SubTask `json:"sub_tasks"`
	TagIDs          []string  `json:"tag_ids"`
	AssignedUserIDs []string  `json:"assigned_user_ids"`
}

// TaskListWithTasks is a task list with its tasks, as shown by list views.
type TaskListWithTasks struct {
	TaskList
	Tasks []TaskWithSubTasks `json:"tasks"`
}

// SortTaskLists orders lists and their tasks by OrderIndex, then id.
func SortTaskLists(lists []TaskListWithTasks) {
	sort.SliceStable(lists, func(i, j int) bool {
		if lists[i].OrderIndex != lists[j].OrderIndex {
			return lists[i].OrderIndex < lists[j].OrderIndex
		}
		return lists[i].ID < lists[j].ID
	})
	for i := range lists {
		tasks := lists[i].Tasks
		sort.SliceStable(tasks, func(a, b int) bool {
			if tasks[a].OrderIndex != tasks[b].OrderIndex {
				return tasks[a].OrderIndex < tasks[b].OrderIndex
			}
			return tasks[a].ID < tasks[b].ID
		})
		for k := range tasks {
			subs := tasks[k].SubTasks
			sort.SliceStable(subs, func(a, b int) bool {
				if subs[a].OrderIndex != subs[b].OrderIndex {
					return subs[a].OrderIndex < subs[b].OrderIndex
				}
				return subs[a].ID < subs[b].ID
			})
		}
	}
}
