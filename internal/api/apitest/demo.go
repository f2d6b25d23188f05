package apitest

import (
	"time"

	"github.com/nissyi-gh/flowboard/internal/model"
)

// DemoProjectID is the project seeded by Demo.
const DemoProjectID = "1"

// Demo returns a backend seeded with a small project, a team and a few tasks.
func Demo() *Backend {
	b := NewBackend()
	b.SetUsers([]model.User{
		{ID: "u1", Name: "Aiko Tanaka", Email: "aiko@example.com", Role: "technician"},
		{ID: "u2", Name: "Ben Ortiz", Email: "ben@example.com", Role: "technician"},
		{ID: "u3", Name: "Chidi Okafor", Email: "chidi@example.com", Role: "manager"},
	})
	b.AddProject(model.Project{
		ID:          DemoProjectID,
		Name:        "Dashboard rollout",
		Description: "Ship the new operations dashboard",
		Type:        "internal",
		Status:      model.ProjectActive,
		TeamMembers: []string{"u1", "u2"},
		Columns: []model.Column{
			{ID: "todo", Title: "To Do", Color: model.ColorGray, Position: 0, IsDefault: true},
			{ID: "in-progress", Title: "In Progress", Color: model.ColorBlue, Position: 1},
			{ID: "review", Title: "Review", Color: model.ColorPurple, Position: 2},
			{ID: "done", Title: "Done", Color: model.ColorGreen, Position: 3, IsTerminal: true},
		},
	})

	now := time.Now().UTC()
	due := now.AddDate(0, 0, 2).Format(model.DateLayout)
	seed := []model.Task{
		{ID: "11", Title: "Design dashboard", Priority: model.PriorityHigh, ColumnID: "todo", AssigneeID: "u1", Assignee: "Aiko Tanaka", DueDate: &due},
		{ID: "12", Title: "Wire metrics API", Priority: model.PriorityMedium, ColumnID: "in-progress", AssigneeID: "u2", Assignee: "Ben Ortiz"},
		{ID: "13", Title: "Fix login redirect", Priority: model.PriorityUrgent, ColumnID: "review"},
		{ID: "14", Title: "Write release notes", Priority: model.PriorityLow, ColumnID: "done", AssigneeID: "u1", Assignee: "Aiko Tanaka"},
	}
	for i, t := range seed {
		t.ProjectID = DemoProjectID
		t.ProjectName = "Dashboard rollout"
		t.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		b.AddTask(t)
	}
	return b
}
