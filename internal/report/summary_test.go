package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nissyi-gh/flowboard/internal/board"
	"github.com/nissyi-gh/flowboard/internal/model"
)

func TestMarkdown(t *testing.T) {
	past := "2026-10-01"
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	lanes := []board.Lane{
		{ID: "todo", Title: "To Do", Tasks: []model.Task{
			{Title: "Fix login redirect", Priority: model.PriorityUrgent, Assignee: "Ben", DueDate: &past},
			{Title: "Tidy README", Priority: model.PriorityLow},
		}},
		{ID: "done", Title: "Done"},
	}

	got := Markdown(model.Project{Name: "Dashboard rollout"}, board.ViewStatus, lanes, now)

	for _, want := range []string{
		"# Dashboard rollout\n",
		"2 tasks, by status, as of 2026-10-14",
		"## To Do (2)\n",
		"- Fix login redirect [urgent, @Ben, due 2026-10-01 (overdue)]\n",
		"- Tidy README\n",
		"## Done (0)\n- none\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Markdown() missing %q in:\n%s", want, got)
		}
	}
}

func TestCopy(t *testing.T) {
	orig := WriteClipboard
	t.Cleanup(func() { WriteClipboard = orig })

	var got string
	WriteClipboard = func(s string) error {
		got = s
		return nil
	}
	if err := Copy("summary"); err != nil || got != "summary" {
		t.Fatalf("Copy() = %v, clipboard=%q", err, got)
	}

	WriteClipboard = func(string) error { return errors.New("no clipboard utility") }
	if err := Copy("summary"); err == nil {
		t.Fatalf("Copy() err=nil, want error")
	}
}
