package model

import (
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ParsePriority maps a raw value onto a Priority. Unknown values become medium.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p
	}
	return PriorityMedium
}

// UnmarshalText normalizes decoded priorities with ParsePriority.
func (p *Priority) UnmarshalText(b []byte) error {
	*p = ParsePriority(string(b))
	return nil
}

// DateLayout is the layout of Task.DueDate.
const DateLayout = "2006-01-02"

// Task is the client-side projection of a remote task record.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	ColumnID    string     `json:"columnId"`
	DueDate     *string    `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastMoved   *time.Time `json:"lastMoved,omitempty"`
	ProjectID   string     `json:"projectId,omitempty"`
	ProjectName string     `json:"projectName,omitempty"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.LastMoved != nil {
		lm := *t.LastMoved
		c.LastMoved = &lm
	}
	return c
}

// IsDueToday returns true if the task's due date is the day of now.
func (t Task) IsDueToday(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return *t.DueDate == now.Format(DateLayout)
}

// IsOverdue returns true if the task is past its due date.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return *t.DueDate < now.Format(DateLayout)
}

// NewTask is the payload for creating a task.
type NewTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	AssigneeID  string   `json:"assigneeId,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	ColumnID    string   `json:"columnId"`
	DueDate     *string  `json:"dueDate,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
}
