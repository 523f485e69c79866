package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/varubogu/flequit-sub003/internal/model"
	"github.com/varubogu/flequit-sub003/internal/repository"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
	"gopkg.in/yaml.v3"
)

// ProjectTree is the YAML view of a project.
type ProjectTree struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Status      string     `yaml:"status,omitempty"`
	Archived    bool       `yaml:"archived,omitempty"`
	Lists       []ListNode `yaml:"lists"`
	Tags        []string   `yaml:"tags,omitempty"`
}

type ListNode struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Archived bool       `yaml:"archived,omitempty"`
	Tasks    []TaskNode `yaml:"tasks"`
}

type TaskNode struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title"`
	Status    string        `yaml:"status"`
	Priority  int           `yaml:"priority"`
	Due       *time.Time    `yaml:"due,omitempty"`
	Tags      []string      `yaml:"tags,omitempty"`
	Assignees []string      `yaml:"assignees,omitempty"`
	SubTasks  []SubTaskNode `yaml:"subtasks,omitempty"`
}

type SubTaskNode struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Status    string `yaml:"status"`
	Completed bool   `yaml:"completed,omitempty"`
}

// BuildTree assembles the tree of a project. Tags are shown by name.
func BuildTree(ctx context.Context, repos *repository.Repositories, projectID string) (*ProjectTree, error) {
	project, ok, err := repos.Projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	if !ok {
		return nil, storeerr.NotFound("export", "project", projectID)
	}

	tags, err := repos.Tags.FindAll(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	tagNames := make(map[string]string, len(tags))
	tree := &ProjectTree{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      string(project.Status),
		Archived:    project.IsArchived,
		Lists:       []ListNode{},
	}
	for _, tag := range tags {
		tagNames[tag.ID] = tag.Name
		tree.Tags = append(tree.Tags, tag.Name)
	}

	lists, err := repos.TaskListsWithTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, l := range lists {
		node := ListNode{ID: l.ID, Name: l.Name, Archived: l.IsArchived, Tasks: []TaskNode{}}
		for _, t := range l.Tasks {
			node.Tasks = append(node.Tasks, taskNode(t, tagNames))
		}
		tree.Lists = append(tree.Lists, node)
	}
	return tree, nil
}

func taskNode(t model.TaskWithSubTasks, tagNames map[string]string) TaskNode {
	node := TaskNode{
		ID:        t.ID,
		Title:     t.Title,
		Status:    string(t.Status),
		Priority:  t.Priority,
		Due:       t.PlanEndDate,
		Assignees: t.AssignedUserIDs,
	}
	for _, id := range t.TagIDs {
		if name, ok := tagNames[id]; ok {
			node.Tags = append(node.Tags, name)
		} else {
			node.Tags = append(node.Tags, id)
		}
	}
	for _, s := range t.SubTasks {
		node.SubTasks = append(node.SubTasks, SubTaskNode{ID: s.ID, Title: s.Title, Status: string(s.Status), Completed: s.Completed})
	}
	return node
}

// ExportYAML writes the tree of a project to w.
func ExportYAML(ctx context.Context, repos *repository.Repositories, projectID string, w io.Writer) error {
	tree, err := BuildTree(ctx, repos, projectID)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("failed to encode project tree: %w", err)
	}
	return enc.Close()
}
