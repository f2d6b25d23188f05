package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nissyi-gh/flowboard/internal/model"
)

var colorCodes = map[model.Color]string{
	model.ColorGray:   "241",
	model.ColorBlue:   "39",
	model.ColorYellow: "214",
	model.ColorPurple: "141",
	model.ColorGreen:  "148",
	model.ColorRed:    "196",
	model.ColorOrange: "208",
}

func laneColor(c model.Color) lipgloss.Color {
	if code, ok := colorCodes[c]; ok {
		return lipgloss.Color(code)
	}
	return lipgloss.Color(colorCodes[model.ColorGray])
}

// cardItem is one task as drawn inside a lane.
type cardItem struct {
	Task      model.Task
	Completed bool
	Pending   bool
	// Subtitle is the assignee in the status view and the column in the
	// technician view.
	Subtitle string
}

func priorityBadge(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return urgentStyle.Render("!!")
	case model.PriorityHigh:
		return highStyle.Render("!")
	case model.PriorityLow:
		return statusStyle.Render("·")
	}
	return " "
}

// Title is the first card line. Only the plain text part is truncated so
// styled badges stay intact.
func (c cardItem) Title(now time.Time, width int) string {
	check := "[ ]"
	if c.Completed {
		check = "[x]"
	}
	dueMark := ""
	if !c.Completed && c.Task.IsOverdue(now) {
		dueMark = "⚠️ "
	} else if c.Task.IsDueToday(now) {
		dueMark = "📅 "
	}
	pending := ""
	if c.Pending {
		pending = " …"
	}
	prefix := fmt.Sprintf("%s %s ", check, priorityBadge(c.Task.Priority))
	return prefix + truncate(dueMark+c.Task.Title+pending, width-lipgloss.Width(prefix))
}

func (c cardItem) Render(width int, now time.Time, selected, grabbed bool) string {
	lines := []string{c.Title(now, width)}
	if c.Subtitle != "" {
		lines = append(lines, statusStyle.Render(truncate("  "+c.Subtitle, width)))
	}
	body := strings.Join(lines, "\n")

	style := cardStyle.Width(width)
	switch {
	case grabbed:
		style = style.BorderForeground(lipgloss.Color("212")).Bold(true)
	case selected:
		style = style.BorderForeground(lipgloss.Color("170"))
	}
	return style.Render(body)
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
