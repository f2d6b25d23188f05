package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nissyi-gh/flowboard/internal/board"
	"github.com/nissyi-gh/flowboard/internal/columns"
	"github.com/nissyi-gh/flowboard/internal/model"
)

const (
	minLaneWidth = 24
	cardHeight   = 4
	chromeHeight = 8
)

func (m Model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	var body string
	switch m.state {
	case stateAdd:
		body = m.viewAdd()
	case stateConfirm:
		body = m.viewConfirm()
	case stateSettings:
		body = m.viewSettings()
	case stateTeam:
		body = m.viewTeam()
	default:
		body = m.viewBoard()
	}

	return appStyle.Render(m.viewHeader() + "\n\n" + body + m.viewToasts())
}

func (m Model) viewHeader() string {
	name := m.board.Project().Name
	if name == "" {
		name = "flowboard"
	}
	parts := []string{titleStyle.Render(name), statusStyle.Render("by " + string(m.board.View()))}
	if m.loading || m.board.InFlight() > 0 || m.saving || m.teamSaving {
		parts = append(parts, m.spinner.View())
	}
	if m.grabbed != "" {
		if t, ok := m.board.Task(m.grabbed); ok {
			parts = append(parts, confirmStyle.Render("dragging "+t.Title))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) viewToasts() string {
	active := m.toasts.Active()
	if len(active) == 0 {
		return ""
	}
	lines := make([]string, len(active))
	for i, t := range active {
		lines[i] = toastStyles[t.Level].Render(t.Message)
	}
	return "\n\n" + strings.Join(lines, "\n")
}

func (m Model) viewBoard() string {
	if m.err != nil && !m.loaded {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n\n" + statusStyle.Render("r: retry • q: quit")
	}

	lanes := m.board.Lanes()
	if len(lanes) == 0 {
		return statusStyle.Render("No lanes yet.")
	}

	h, _ := appStyle.GetFrameSize()
	width := m.width - h
	visible := width / minLaneWidth
	if visible < 1 {
		visible = 1
	}
	if visible > len(lanes) {
		visible = len(lanes)
	}
	laneWidth := width / visible

	start := m.lane - visible/2
	if start > len(lanes)-visible {
		start = len(lanes) - visible
	}
	if start < 0 {
		start = 0
	}

	maxCards := (m.height - chromeHeight) / cardHeight
	if maxCards < 1 {
		maxCards = 1
	}

	rendered := make([]string, 0, visible)
	for i := start; i < start+visible; i++ {
		rendered = append(rendered, m.viewLane(lanes[i], i == m.lane, laneWidth, maxCards))
	}
	grid := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	return grid + "\n" + m.help.View(m.keys)
}

func (m Model) viewLane(lane board.Lane, active bool, width, maxCards int) string {
	header := lipgloss.NewStyle().Foreground(laneColor(lane.Color)).Bold(true).
		Render(fmt.Sprintf("%s (%d)", lane.Title, len(lane.Tasks)))
	if active {
		header = "▸ " + header
	}
	lines := []string{header}

	offset := 0
	if active && m.card >= maxCards {
		offset = m.card - maxCards + 1
	}
	cols := m.board.Columns()
	now := m.opts.Now()
	inner := width - 6

	for j := offset; j < len(lane.Tasks) && j < offset+maxCards; j++ {
		t := lane.Tasks[j]
		c := cardItem{
			Task:      t,
			Completed: m.board.IsCompleted(t),
			Pending:   m.board.Pending(t.ID),
			Subtitle:  m.subtitle(t, cols),
		}
		lines = append(lines, c.Render(inner, now, active && j == m.card, t.ID == m.grabbed))
	}
	if rest := len(lane.Tasks) - offset - maxCards; rest > 0 {
		lines = append(lines, statusStyle.Render(fmt.Sprintf("+%d more", rest)))
	}
	if len(lane.Tasks) == 0 {
		lines = append(lines, statusStyle.Render("  empty"))
	}

	style := laneStyle.Width(width - 2)
	if active {
		style = style.BorderForeground(lipgloss.Color("170"))
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) subtitle(t model.Task, cols []model.Column) string {
	if m.board.View() == board.ViewTechnician {
		if c, ok := columns.Find(cols, t.ColumnID); ok {
			return c.Title
		}
		return "uncategorized"
	}
	if t.Assignee != "" {
		return "@" + t.Assignee
	}
	return ""
}

func (m Model) viewAdd() string {
	where := "into the default column"
	if lane, ok := m.currentLane(); ok && !lane.Virtual {
		if m.board.View() == board.ViewTechnician {
			where = "for " + lane.Title
		} else {
			where = "into " + lane.Title
		}
	}

	var errView string
	if m.addErr != nil {
		errView = "\n\n" + errorStyle.Render("Error: "+m.addErr.Error())
	}
	return dialogStyle.Render(
		titleStyle.Render("New Task") + " " + statusStyle.Render(where) + "\n\n" +
			m.titleInput.View() + "\n\n" +
			"due:      " + m.dateInput.View() + "\n" +
			"priority: " + priorityBadge(m.addPriority) + " " + string(m.addPriority) + "\n\n" +
			statusStyle.Render("enter: save • tab: title/due • ctrl+p: priority • esc: cancel") +
			errView,
	)
}

func (m Model) viewConfirm() string {
	t, _ := m.currentTask()
	return dialogStyle.Render(
		confirmStyle.Render("Delete Task?") + "\n\n" +
			"  " + t.Title + "\n\n" +
			statusStyle.Render("y: delete • n/esc: cancel"),
	)
}

func (m Model) viewSettings() string {
	if m.editor == nil {
		return ""
	}
	var lines []string
	for i, c := range m.editor.Columns() {
		cursor := "  "
		if i == m.colCursor {
			cursor = "> "
		}
		var flags []string
		if c.IsDefault {
			flags = append(flags, "default")
		}
		if c.IsTerminal {
			flags = append(flags, "done")
		}
		name := lipgloss.NewStyle().Foreground(laneColor(c.Color)).Render(c.Title)
		line := cursor + name + statusStyle.Render(" "+string(c.Color))
		if len(flags) > 0 {
			line += " " + confirmStyle.Render("["+strings.Join(flags, ", ")+"]")
		}
		lines = append(lines, line)
	}

	title := "Columns"
	if m.editor.Dirty() {
		title += " *"
	}
	content := titleStyle.Render(title) + "\n\n" + strings.Join(lines, "\n")
	if m.colMode != inputNone {
		content += "\n\n" + m.colInput.View()
	}
	if m.saving {
		content += "\n\n" + m.spinner.View() + " saving"
	}
	content += "\n\n" + statusStyle.Render("a: add • r: rename • c: color • K/J: move • t: done column • D: default • d: delete\ns: save • esc: discard")
	return dialogStyle.Render(content)
}

func (m Model) viewTeam() string {
	members := make(map[string]bool)
	for _, id := range m.board.Project().TeamMembers {
		members[id] = true
	}

	var lines []string
	for i, u := range m.directory {
		cursor := "  "
		if i == m.teamCursor {
			cursor = "> "
		}
		check := "[ ]"
		if members[u.ID] {
			check = "[x]"
		}
		lines = append(lines, cursor+check+" "+u.Name+statusStyle.Render(" "+u.Role))
	}
	if len(lines) == 0 {
		lines = append(lines, statusStyle.Render("  loading directory…"))
	}

	content := titleStyle.Render("Team") + "\n\n" + strings.Join(lines, "\n")
	if len(members) == 0 {
		content += "\n\n" + statusStyle.Render("No team set: everyone can be assigned.")
	}
	content += "\n\n" + statusStyle.Render("j/k: navigate • enter/space: toggle • esc: done")
	return dialogStyle.Render(content)
}
