// Package board keeps a project's task list consistent with the backend
// under optimistic updates.
//
// A Board is owned by a single goroutine. Each Begin* method applies its
// change to the local list immediately and returns a Mutation carrying the
// remote call. The caller runs Mutation.Do, possibly elsewhere, and hands
// the result back to Finish on the owning goroutine, which keeps or reverts
// the change and reports the outcome through the Notifier.
package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/api"
	"github.com/nissyi-gh/flowboard/internal/columns"
	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/notify"
	"github.com/nissyi-gh/flowboard/internal/team"
)

var (
	ErrTaskBusy   = errors.New("task has a change in flight")
	ErrEmptyTitle = errors.New("task title is required")
	ErrNoColumns  = errors.New("board has no columns")
)

// View decides what a lane is: a column or an assignee.
type View string

const (
	ViewStatus     View = "status"
	ViewTechnician View = "technician"
)

// ParseView falls back to the status view for unknown values.
func ParseView(s string) View {
	if View(s) == ViewTechnician {
		return ViewTechnician
	}
	return ViewStatus
}

const (
	// UnassignedLane is the technician lane of tasks without an assignee.
	UnassignedLane = "__unassigned"
	// UncategorizedLane collects tasks whose column no longer exists.
	UncategorizedLane = "__uncategorized"
)

// TaskStore is the part of the backend the board writes to.
type TaskStore interface {
	MoveTask(ctx context.Context, taskID string, pos api.MovePosition) error
	AssignTask(ctx context.Context, taskID, assigneeID, assigneeName string) error
	UnassignTask(ctx context.Context, taskID string) error
	UpdateTaskStatus(ctx context.Context, taskID, status string) error
	CompleteTask(ctx context.Context, taskID string) error
	CreateProjectTask(ctx context.Context, data model.NewTask) (model.Task, error)
	DeleteProjectTask(ctx context.Context, taskID string) (bool, error)
}

// Announcer forwards a notification to another user without blocking.
type Announcer interface {
	Enqueue(n model.Notification) error
}

type Options struct {
	// DoneColumnID is used for completion when no column is terminal.
	DoneColumnID string
	CurrentUser  team.CurrentUserProvider
	Announcer    Announcer
	Now          func() time.Time
	NewID        func() string
}

// Lane is one rendered group of tasks.
type Lane struct {
	ID      string
	Title   string
	Color   model.Color
	Tasks   []model.Task
	Virtual bool
}

type Board struct {
	store    TaskStore
	notifier notify.Notifier
	logger   zerolog.Logger
	opts     Options

	project model.Project
	tasks   []model.Task
	columns []model.Column
	users   []model.User
	view    View
	pending map[string]*Mutation
}

func New(store TaskStore, notifier notify.Notifier, logger zerolog.Logger, opts Options) *Board {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return "tmp-" + uuid.NewString() }
	}
	return &Board{
		store:    store,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		view:     ViewStatus,
		pending:  make(map[string]*Mutation),
	}
}

// Load replaces the board contents. Columns are built from the project's
// columns, then lookups, then the defaults. Tasks with a change in flight
// keep their local version.
func (b *Board) Load(project model.Project, tasks []model.Task, lookups []model.StatusLookup) {
	b.project = project
	b.columns = columns.Build(project.Columns, lookups)

	next := make([]model.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if _, busy := b.pending[t.ID]; busy {
			local, ok := b.Task(t.ID)
			if !ok {
				// deletion in flight
				continue
			}
			t = local
		}
		seen[t.ID] = true
		next = append(next, t.Clone())
	}
	for _, local := range b.tasks {
		if _, busy := b.pending[local.ID]; busy && !seen[local.ID] {
			next = append(next, local.Clone())
		}
	}
	b.tasks = next

	b.logger.Debug().
		Str("project_id", project.ID).
		Int("tasks", len(next)).
		Int("columns", len(b.columns)).
		Msg("loaded board")
}

func (b *Board) Project() model.Project { return b.project }

func (b *Board) View() View { return b.view }

func (b *Board) SetView(v View) { b.view = v }

func (b *Board) Users() []model.User { return append([]model.User(nil), b.users...) }

// SetUsers sets the people shown as technician lanes.
func (b *Board) SetUsers(users []model.User) {
	b.users = append([]model.User(nil), users...)
}

// SetTeamMembers records a committed team change on the project.
func (b *Board) SetTeamMembers(ids []string) {
	b.project.TeamMembers = append([]string(nil), ids...)
}

func (b *Board) Columns() []model.Column { return columns.Sorted(b.columns) }

// SetColumns installs a committed column set.
func (b *Board) SetColumns(cols []model.Column) {
	b.columns = columns.Sorted(cols)
	b.project.Columns = b.columns
}

// Tasks returns a copy of the task list.
func (b *Board) Tasks() []model.Task {
	out := make([]model.Task, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (b *Board) Task(id string) (model.Task, bool) {
	if i := b.indexOf(id); i >= 0 {
		return b.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// Pending reports whether the task has a change in flight.
func (b *Board) Pending(id string) bool {
	_, ok := b.pending[id]
	return ok
}

// InFlight returns the number of changes waiting for the backend.
func (b *Board) InFlight() int { return len(b.pending) }

// IsCompleted reports whether the task sits in the completion column.
func (b *Board) IsCompleted(t model.Task) bool {
	return t.ColumnID != "" && t.ColumnID == b.doneColumnID()
}

// Lanes groups the tasks for the active view. Within a lane tasks keep
// list order.
func (b *Board) Lanes() []Lane {
	if b.view == ViewTechnician {
		return b.technicianLanes()
	}
	return b.statusLanes()
}

func (b *Board) statusLanes() []Lane {
	cols := columns.Sorted(b.columns)
	lanes := make([]Lane, 0, len(cols)+1)
	index := make(map[string]int, len(cols))
	for _, c := range cols {
		index[c.ID] = len(lanes)
		lanes = append(lanes, Lane{ID: c.ID, Title: c.Title, Color: c.Color})
	}

	orphans := Lane{ID: UncategorizedLane, Title: "Uncategorized", Color: model.ColorGray, Virtual: true}
	for _, t := range b.tasks {
		if i, ok := index[t.ColumnID]; ok {
			lanes[i].Tasks = append(lanes[i].Tasks, t.Clone())
			continue
		}
		orphans.Tasks = append(orphans.Tasks, t.Clone())
	}
	if len(orphans.Tasks) > 0 {
		lanes = append(lanes, orphans)
	}
	return lanes
}

func (b *Board) technicianLanes() []Lane {
	lanes := []Lane{{ID: UnassignedLane, Title: "Unassigned", Color: model.ColorGray, Virtual: true}}
	index := map[string]int{UnassignedLane: 0}
	for _, u := range b.users {
		index[u.ID] = len(lanes)
		lanes = append(lanes, Lane{ID: u.ID, Title: u.Name, Color: model.ColorBlue})
	}

	for _, t := range b.tasks {
		id := assigneeLane(t)
		i, ok := index[id]
		if !ok {
			title := t.Assignee
			if title == "" {
				title = t.AssigneeID
			}
			i = len(lanes)
			index[id] = i
			lanes = append(lanes, Lane{ID: id, Title: title, Color: model.ColorGray})
		}
		lanes[i].Tasks = append(lanes[i].Tasks, t.Clone())
	}
	return lanes
}

func assigneeLane(t model.Task) string {
	if t.AssigneeID == "" {
		return UnassignedLane
	}
	return t.AssigneeID
}

func (b *Board) indexOf(id string) int {
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// laneOf returns the lane a task occupies in the active view.
func (b *Board) laneOf(t model.Task) string {
	if b.view == ViewTechnician {
		return assigneeLane(t)
	}
	return t.ColumnID
}

// resolveTarget maps a drop target to a lane id. The target is a lane id,
// or a task id standing for the lane that task occupies.
func (b *Board) resolveTarget(dropTargetID string) (string, bool) {
	if dropTargetID == "" {
		return "", false
	}
	if b.isLane(dropTargetID) {
		return dropTargetID, true
	}
	if i := b.indexOf(dropTargetID); i >= 0 {
		lane := b.laneOf(b.tasks[i])
		if b.isLane(lane) {
			return lane, true
		}
	}
	return "", false
}

func (b *Board) isLane(id string) bool {
	if b.view == ViewTechnician {
		if id == UnassignedLane {
			return true
		}
		_, ok := b.user(id)
		return ok
	}
	_, ok := columns.Find(b.columns, id)
	return ok
}

func (b *Board) user(id string) (model.User, bool) {
	for _, u := range b.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

func (b *Board) countInColumn(columnID string) int {
	n := 0
	for _, t := range b.tasks {
		if t.ColumnID == columnID {
			n++
		}
	}
	return n
}

func (b *Board) doneColumnID() string {
	if c, ok := columns.Terminal(b.columns); ok {
		return c.ID
	}
	return b.opts.DoneColumnID
}

func (b *Board) columnTitle(id string) string {
	if c, ok := columns.Find(b.columns, id); ok {
		return c.Title
	}
	return id
}

func (b *Board) busy(id string) bool {
	if _, ok := b.pending[id]; ok {
		b.logger.Warn().
			Str("task_id", id).
			Msg("refused change, task busy")
		b.notifier.Notify(notify.LevelWarning, "Still saving the previous change to this task")
		return true
	}
	return false
}

func quote(title string) string {
	return fmt.Sprintf("%q", title)
}
