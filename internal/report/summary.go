// Package report renders a board as a markdown summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/nissyi-gh/flowboard/internal/board"
	"github.com/nissyi-gh/flowboard/internal/model"
)

// WriteClipboard is replaced in tests.
var WriteClipboard = clipboard.WriteAll

// Markdown returns a summary of the board grouped by lane.
func Markdown(project model.Project, view board.View, lanes []board.Lane, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n", project.Name))
	total := 0
	for _, l := range lanes {
		total += len(l.Tasks)
	}
	sb.WriteString(fmt.Sprintf("\n%d tasks, by %s, as of %s\n", total, view, now.Format(model.DateLayout)))

	for _, l := range lanes {
		sb.WriteString(fmt.Sprintf("\n## %s (%d)\n", l.Title, len(l.Tasks)))
		if len(l.Tasks) == 0 {
			sb.WriteString("- none\n")
			continue
		}
		for _, t := range l.Tasks {
			sb.WriteString("- ")
			sb.WriteString(t.Title)

			var meta []string
			if t.Priority == model.PriorityUrgent || t.Priority == model.PriorityHigh {
				meta = append(meta, string(t.Priority))
			}
			if view == board.ViewStatus && t.Assignee != "" {
				meta = append(meta, "@"+t.Assignee)
			}
			if t.DueDate != nil {
				due := "due " + *t.DueDate
				if t.IsOverdue(now) {
					due += " (overdue)"
				}
				meta = append(meta, due)
			}
			if len(meta) > 0 {
				sb.WriteString(" [" + strings.Join(meta, ", ") + "]")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Copy puts the summary on the system clipboard.
func Copy(summary string) error {
	if err := WriteClipboard(summary); err != nil {
		return fmt.Errorf("copy summary: %w", err)
	}
	return nil
}
