package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nissyi-gh/flowboard/internal/columns"
	"github.com/nissyi-gh/flowboard/internal/model"
)

var ErrNoTasks = errors.New("no tasks found in YAML")

// YAMLTask represents a single task in the YAML input. Children inherit the
// column, assignee and priority of their parent unless they set their own.
type YAMLTask struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description,omitempty"`
	Column      string     `yaml:"column,omitempty"`
	Assignee    string     `yaml:"assignee,omitempty"`
	Priority    string     `yaml:"priority,omitempty"`
	DueDate     string     `yaml:"due_date,omitempty"`
	Children    []YAMLTask `yaml:"children,omitempty"`
}

// YAMLInput represents the root structure of the YAML input.
type YAMLInput struct {
	Tasks []YAMLTask `yaml:"tasks"`
}

// Creator creates a task in a project.
type Creator interface {
	CreateProjectTask(ctx context.Context, data model.NewTask) (model.Task, error)
}

// Target is the board the tasks are imported into.
type Target struct {
	ProjectID string
	Columns   []model.Column
	Users     []model.User
}

// Import parses a YAML string and creates its tasks in order. The whole
// document is validated before the first task is created. Tasks created
// before a failure are returned with the error.
func Import(ctx context.Context, c Creator, target Target, yamlStr string) ([]model.Task, error) {
	var input YAMLInput
	if err := yaml.Unmarshal([]byte(yamlStr), &input); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}

	if len(input.Tasks) == 0 {
		return nil, ErrNoTasks
	}

	var plan []model.NewTask
	for _, yt := range input.Tasks {
		var err error
		plan, err = target.flatten(plan, yt, model.NewTask{})
		if err != nil {
			return nil, err
		}
	}

	created := make([]model.Task, 0, len(plan))
	for _, data := range plan {
		t, err := c.CreateProjectTask(ctx, data)
		if err != nil {
			return created, fmt.Errorf("create task %q: %w", data.Title, err)
		}
		created = append(created, t)
	}
	return created, nil
}

func (tg Target) flatten(plan []model.NewTask, yt YAMLTask, parent model.NewTask) ([]model.NewTask, error) {
	title := strings.TrimSpace(yt.Title)
	if title == "" {
		return nil, fmt.Errorf("task title is required")
	}

	data := model.NewTask{
		ProjectID:   tg.ProjectID,
		Title:       title,
		Description: yt.Description,
		ColumnID:    parent.ColumnID,
		AssigneeID:  parent.AssigneeID,
		Assignee:    parent.Assignee,
		Priority:    parent.Priority,
	}

	if yt.Column != "" {
		col, ok := tg.column(yt.Column)
		if !ok {
			return nil, fmt.Errorf("task %q: unknown column %q", title, yt.Column)
		}
		data.ColumnID = col.ID
	} else if data.ColumnID == "" {
		col, ok := columns.Default(tg.Columns)
		if !ok {
			return nil, fmt.Errorf("task %q: board has no columns", title)
		}
		data.ColumnID = col.ID
	}

	if yt.Assignee != "" {
		u, ok := tg.user(yt.Assignee)
		if !ok {
			return nil, fmt.Errorf("task %q: unknown assignee %q", title, yt.Assignee)
		}
		data.AssigneeID, data.Assignee = u.ID, u.Name
	}

	if yt.Priority != "" {
		data.Priority = model.ParsePriority(yt.Priority)
	} else if data.Priority == "" {
		data.Priority = model.PriorityMedium
	}

	if yt.DueDate != "" {
		if _, err := time.Parse(model.DateLayout, yt.DueDate); err != nil {
			return nil, fmt.Errorf("task %q: due_date must be %s: %w", title, model.DateLayout, err)
		}
		dd := yt.DueDate
		data.DueDate = &dd
	}

	plan = append(plan, data)
	for _, child := range yt.Children {
		var err error
		plan, err = tg.flatten(plan, child, data)
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// column matches by id or case-insensitive title.
func (tg Target) column(ref string) (model.Column, bool) {
	if c, ok := columns.Find(tg.Columns, ref); ok {
		return c, true
	}
	for _, c := range tg.Columns {
		if strings.EqualFold(c.Title, ref) {
			return c, true
		}
	}
	return model.Column{}, false
}

func (tg Target) user(ref string) (model.User, bool) {
	for _, u := range tg.Users {
		if u.ID == ref || strings.EqualFold(u.Name, ref) {
			return u, true
		}
	}
	return model.User{}, false
}
