package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/nissyi-gh/flowboard/internal/api"
	"github.com/nissyi-gh/flowboard/internal/columns"
	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/notify"
)

type Kind int

const (
	KindMove Kind = iota
	KindAssign
	KindComplete
	KindCreate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindMove:
		return "move"
	case KindAssign:
		return "assign"
	case KindComplete:
		return "complete"
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation is an optimistic change waiting for the backend.
type Mutation struct {
	Kind   Kind
	TaskID string

	call    func(ctx context.Context) error
	revert  func()
	commit  func()
	success string
	failure string
}

// Do runs the remote call. It does not touch the board, so it may run on
// any goroutine.
func (m *Mutation) Do(ctx context.Context) error {
	return m.call(ctx)
}

// Finish settles a mutation: the optimistic change is kept on success and
// reverted on failure. Exactly one notification is emitted.
func (b *Board) Finish(m *Mutation, err error) {
	if m == nil {
		return
	}
	delete(b.pending, m.TaskID)

	if err != nil {
		m.revert()
		b.logger.Error().
			Err(err).
			Str("op", m.Kind.String()).
			Str("task_id", m.TaskID).
			Msg("remote change failed, reverted")
		b.notifier.Notify(notify.LevelError, fmt.Sprintf("%s: %v", m.failure, err))
		return
	}

	if m.commit != nil {
		m.commit()
	}
	b.logger.Info().
		Str("op", m.Kind.String()).
		Str("task_id", m.TaskID).
		Msg("remote change applied")
	b.notifier.Notify(notify.LevelSuccess, m.success)
}

// Run executes and settles m on the calling goroutine. A nil mutation is a
// no-op.
func (b *Board) Run(ctx context.Context, m *Mutation) error {
	if m == nil {
		return nil
	}
	err := m.Do(ctx)
	b.Finish(m, err)
	return err
}

func (b *Board) track(m *Mutation) *Mutation {
	b.pending[m.TaskID] = m
	return m
}

type fieldSnapshot struct {
	columnID   string
	assigneeID string
	assignee   string
	task       model.Task
}

func (b *Board) restoreFields(id string, s fieldSnapshot) {
	i := b.indexOf(id)
	if i < 0 {
		return
	}
	t := &b.tasks[i]
	t.ColumnID = s.columnID
	t.AssigneeID = s.assigneeID
	t.Assignee = s.assignee
	t.LastMoved = s.task.Clone().LastMoved
}

// BeginDragEnd handles a card dropped on dropTargetID, which is a lane id
// or the id of another card. Drops that resolve to no lane, or to the lane
// the card is already in, return a nil mutation and change nothing.
func (b *Board) BeginDragEnd(taskID, dropTargetID string) (*Mutation, error) {
	i := b.indexOf(taskID)
	if i < 0 {
		return nil, nil
	}
	target, ok := b.resolveTarget(dropTargetID)
	if !ok {
		b.logger.Debug().
			Str("task_id", taskID).
			Str("drop_target", dropTargetID).
			Msg("drop outside any lane")
		return nil, nil
	}
	if target == b.laneOf(b.tasks[i]) {
		return nil, nil
	}
	if b.busy(taskID) {
		return nil, ErrTaskBusy
	}

	task := &b.tasks[i]
	snap := fieldSnapshot{
		columnID:   task.ColumnID,
		assigneeID: task.AssigneeID,
		assignee:   task.Assignee,
		task:       task.Clone(),
	}
	now := b.opts.Now()
	title := task.Title

	m := &Mutation{
		TaskID: taskID,
		revert: func() { b.restoreFields(taskID, snap) },
	}

	if b.view == ViewTechnician {
		m.Kind = KindAssign
		if target == UnassignedLane {
			task.AssigneeID, task.Assignee = "", ""
			task.LastMoved = &now
			m.call = func(ctx context.Context) error {
				return b.store.UnassignTask(ctx, taskID)
			}
			m.success = fmt.Sprintf("%s is now unassigned", quote(title))
			m.failure = fmt.Sprintf("Could not unassign %s", quote(title))
			return b.track(m), nil
		}

		u, _ := b.user(target)
		task.AssigneeID, task.Assignee = u.ID, u.Name
		task.LastMoved = &now
		m.call = func(ctx context.Context) error {
			return b.store.AssignTask(ctx, taskID, u.ID, u.Name)
		}
		m.commit = func() { b.announceAssignment(taskID, title, u) }
		m.success = fmt.Sprintf("%s assigned to %s", quote(title), u.Name)
		m.failure = fmt.Sprintf("Could not assign %s to %s", quote(title), u.Name)
		return b.track(m), nil
	}

	m.Kind = KindMove
	pos := api.MovePosition{ColumnID: target, Position: b.countInColumn(target)}
	task.ColumnID = target
	task.LastMoved = &now
	m.call = func(ctx context.Context) error {
		return b.store.MoveTask(ctx, taskID, pos)
	}
	if target == b.doneColumnID() {
		m.success = fmt.Sprintf("%s completed", quote(title))
	} else {
		m.success = fmt.Sprintf("%s moved to %s", quote(title), b.columnTitle(target))
	}
	m.failure = fmt.Sprintf("Could not move %s", quote(title))
	return b.track(m), nil
}

// BeginToggleCompletion moves a task into the completion column, or back to
// the first column when completed is false.
func (b *Board) BeginToggleCompletion(taskID string, completed bool) (*Mutation, error) {
	i := b.indexOf(taskID)
	if i < 0 {
		return nil, nil
	}

	var target string
	if completed {
		target = b.doneColumnID()
	} else if first := b.Columns(); len(first) > 0 {
		target = first[0].ID
	}
	if target == "" {
		b.notifier.Notify(notify.LevelError, "The board has no columns")
		return nil, ErrNoColumns
	}
	if b.tasks[i].ColumnID == target {
		return nil, nil
	}
	if b.busy(taskID) {
		return nil, ErrTaskBusy
	}

	snapshot := b.Tasks()
	now := b.opts.Now()
	task := &b.tasks[i]
	title := task.Title
	task.ColumnID = target
	task.LastMoved = &now

	m := &Mutation{
		Kind:   KindComplete,
		TaskID: taskID,
		revert: func() { b.restoreList(snapshot) },
	}
	if completed {
		m.call = func(ctx context.Context) error {
			return b.store.CompleteTask(ctx, taskID)
		}
		m.success = fmt.Sprintf("%s completed", quote(title))
		m.failure = fmt.Sprintf("Could not complete %s", quote(title))
	} else {
		m.call = func(ctx context.Context) error {
			return b.store.UpdateTaskStatus(ctx, taskID, target)
		}
		m.success = fmt.Sprintf("%s reopened", quote(title))
		m.failure = fmt.Sprintf("Could not reopen %s", quote(title))
	}
	return b.track(m), nil
}

// restoreList puts back the snapshot version of every task that is still on
// the board. Tasks added or removed since the snapshot stay that way, and
// tasks with another change in flight keep their current value so that
// change can still settle on its own.
func (b *Board) restoreList(snapshot []model.Task) {
	before := make(map[string]model.Task, len(snapshot))
	for _, t := range snapshot {
		before[t.ID] = t
	}
	for i, t := range b.tasks {
		if _, busy := b.pending[t.ID]; busy {
			continue
		}
		if old, ok := before[t.ID]; ok {
			b.tasks[i] = old.Clone()
		}
	}
}

// BeginCreate validates the input and inserts a placeholder task that is
// replaced by the server record once created.
func (b *Board) BeginCreate(data model.NewTask) (*Mutation, error) {
	data.Title = strings.TrimSpace(data.Title)
	if data.Title == "" {
		b.notifier.Notify(notify.LevelError, "A task needs a title")
		return nil, ErrEmptyTitle
	}
	if data.ColumnID == "" {
		c, ok := columns.Default(b.Columns())
		if !ok {
			b.notifier.Notify(notify.LevelError, "The board has no columns")
			return nil, ErrNoColumns
		}
		data.ColumnID = c.ID
	}
	if data.Priority == "" {
		data.Priority = model.PriorityMedium
	}
	data.ProjectID = b.project.ID

	tempID := b.opts.NewID()
	b.tasks = append(b.tasks, model.Task{
		ID:          tempID,
		Title:       data.Title,
		Description: data.Description,
		Priority:    data.Priority,
		AssigneeID:  data.AssigneeID,
		Assignee:    data.Assignee,
		ColumnID:    data.ColumnID,
		DueDate:     data.DueDate,
		CreatedAt:   b.opts.Now(),
		ProjectID:   b.project.ID,
		ProjectName: b.project.Name,
	})

	var created model.Task
	m := &Mutation{
		Kind:   KindCreate,
		TaskID: tempID,
		call: func(ctx context.Context) error {
			t, err := b.store.CreateProjectTask(ctx, data)
			created = t
			return err
		},
		revert: func() {
			if i := b.indexOf(tempID); i >= 0 {
				b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			}
		},
		commit: func() {
			i := b.indexOf(tempID)
			switch {
			case i < 0:
			case b.indexOf(created.ID) >= 0:
				// a reload already brought in the server record
				b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			default:
				b.tasks[i] = created.Clone()
			}
			if data.AssigneeID != "" {
				b.announceAssignment(created.ID, created.Title, model.User{ID: data.AssigneeID, Name: data.Assignee})
			}
		},
		success: fmt.Sprintf("Created %s", quote(data.Title)),
		failure: fmt.Sprintf("Could not create %s", quote(data.Title)),
	}
	return b.track(m), nil
}

// BeginDelete removes the task locally and restores it at the same place
// if the backend does not delete it.
func (b *Board) BeginDelete(taskID string) (*Mutation, error) {
	i := b.indexOf(taskID)
	if i < 0 {
		return nil, nil
	}
	if b.busy(taskID) {
		return nil, ErrTaskBusy
	}

	removed := b.tasks[i].Clone()
	b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)

	m := &Mutation{
		Kind:   KindDelete,
		TaskID: taskID,
		call: func(ctx context.Context) error {
			ok, err := b.store.DeleteProjectTask(ctx, taskID)
			if err != nil {
				return err
			}
			if !ok {
				return api.ErrNotDeleted
			}
			return nil
		},
		revert: func() {
			at := i
			if at > len(b.tasks) {
				at = len(b.tasks)
			}
			b.tasks = append(b.tasks[:at], append([]model.Task{removed}, b.tasks[at:]...)...)
		},
		success: fmt.Sprintf("Deleted %s", quote(removed.Title)),
		failure: fmt.Sprintf("Could not delete %s", quote(removed.Title)),
	}
	return b.track(m), nil
}

func (b *Board) announceAssignment(taskID, title string, to model.User) {
	if b.opts.Announcer == nil || to.ID == "" {
		return
	}
	if b.opts.CurrentUser != nil {
		if cur, ok := b.opts.CurrentUser.CurrentUser(); ok && cur.ID == to.ID {
			return
		}
	}
	n := model.Notification{
		UserID:      to.ID,
		Title:       "Task assigned to you",
		Description: title,
		Type:        model.NotifyAssignment,
		Link:        fmt.Sprintf("/projects/%s/tasks/%s", b.project.ID, taskID),
	}
	if err := b.opts.Announcer.Enqueue(n); err != nil {
		b.logger.Warn().
			Err(err).
			Str("task_id", taskID).
			Str("user_id", to.ID).
			Msg("failed to queue assignment notification")
	}
}
