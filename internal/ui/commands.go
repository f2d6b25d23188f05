package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nissyi-gh/flowboard/internal/board"
	"github.com/nissyi-gh/flowboard/internal/live"
	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/report"
	"github.com/nissyi-gh/flowboard/internal/team"
)

type boardLoadedMsg struct {
	project model.Project
	tasks   []model.Task
	lookups []model.StatusLookup
	users   []model.User
}

type errMsg struct{ error }

type mutationDoneMsg struct {
	m   *board.Mutation
	err error
}

type toastTickMsg time.Time

type liveChangeMsg live.Change

type directoryMsg []model.User

type teamSavedMsg struct {
	members []string
	users   []model.User
	err     error
}

type columnsSavedMsg struct {
	cols []model.Column
	err  error
}

type summaryCopiedMsg struct{ err error }

// Commands capture what they need up front. They run off the UI goroutine
// and must not touch the board.

func (m Model) loadBoard() tea.Cmd {
	ctx, backend, resolver, logger := m.ctx, m.opts.Backend, m.opts.Resolver, m.logger
	projectID := m.opts.ProjectID
	fallback := m.board.Users()

	return func() tea.Msg {
		project, err := backend.GetProject(ctx, projectID)
		if err != nil {
			return errMsg{fmt.Errorf("load project %s: %w", projectID, err)}
		}
		tasks, err := backend.GetProjectTasks(ctx, projectID)
		if err != nil {
			return errMsg{fmt.Errorf("load tasks of project %s: %w", projectID, err)}
		}

		var lookups []model.StatusLookup
		if len(project.Columns) == 0 {
			lookups, err = backend.GetStatusLookups(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("status lookups unavailable, using default columns")
			}
		}

		var users []model.User
		if resolver != nil {
			users = resolver.Resolve(ctx, project.TeamMembers, fallback)
		}
		return boardLoadedMsg{project: project, tasks: tasks, lookups: lookups, users: users}
	}
}

func (m Model) run(mu *board.Mutation) tea.Cmd {
	if mu == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return mutationDoneMsg{m: mu, err: mu.Do(ctx)}
	}
}

func tickToasts() tea.Cmd {
	return tea.Tick(toastInterval, func(t time.Time) tea.Msg {
		return toastTickMsg(t)
	})
}

func waitForChange(ch <-chan live.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return liveChangeMsg(c)
	}
}

// loadDirectory lists everyone who could join the team.
func (m Model) loadDirectory() tea.Cmd {
	ctx, resolver := m.ctx, m.opts.Resolver
	fallback := m.board.Users()
	return func() tea.Msg {
		if resolver == nil {
			return directoryMsg(fallback)
		}
		return directoryMsg(resolver.Resolve(ctx, nil, fallback))
	}
}

func (m Model) toggleMember(userID string) tea.Cmd {
	ctx, backend, resolver := m.ctx, m.opts.Backend, m.opts.Resolver
	project := m.board.Project()
	members := append([]string(nil), project.TeamMembers...)
	fallback := m.board.Users()

	return func() tea.Msg {
		next, err := team.Toggle(ctx, backend, project.ID, members, userID)
		if err != nil {
			return teamSavedMsg{err: err}
		}
		users := fallback
		if resolver != nil {
			users = resolver.Resolve(ctx, next, fallback)
		}
		return teamSavedMsg{members: next, users: users}
	}
}

func (m Model) saveColumns(cols []model.Column) tea.Cmd {
	ctx, editor := m.ctx, m.editor
	return func() tea.Msg {
		return columnsSavedMsg{cols: cols, err: editor.Persist(ctx, cols)}
	}
}

func (m Model) copySummary() tea.Cmd {
	text := report.Markdown(m.board.Project(), m.board.View(), m.board.Lanes(), m.opts.Now())
	return func() tea.Msg {
		return summaryCopiedMsg{err: report.Copy(text)}
	}
}
