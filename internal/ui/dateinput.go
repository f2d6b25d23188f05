package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nissyi-gh/flowboard/internal/model"
)

// dateInput reads a due date as three fields. Year and month default to
// the current ones.
type dateInput struct {
	fields [3]textinput.Model // YYYY, MM, DD
	focus  int
	now    func() time.Time
}

func newDateInput() dateInput {
	placeholders := [3]string{"YYYY", "MM", "DD"}
	charLimits := [3]int{4, 2, 2}

	var fields [3]textinput.Model
	for i := range fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = charLimits[i]
		ti.Width = charLimits[i] + 2
		ti.Validate = digitsOnly
		fields[i] = ti
	}

	return dateInput{fields: fields, now: time.Now}
}

func digitsOnly(s string) error {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("digits only")
		}
	}
	return nil
}

func (d *dateInput) Focus() tea.Cmd {
	return d.focusField(0)
}

func (d *dateInput) Blur() {
	for i := range d.fields {
		d.fields[i].Blur()
	}
}

func (d *dateInput) Focused() bool {
	for i := range d.fields {
		if d.fields[i].Focused() {
			return true
		}
	}
	return false
}

func (d *dateInput) SetValue(date string) {
	parts := strings.SplitN(date, "-", 3)
	for i := range d.fields {
		if i < len(parts) {
			d.fields[i].SetValue(parts[i])
		} else {
			d.fields[i].SetValue("")
		}
	}
}

// Value returns the date in model.DateLayout. An empty input is valid and
// yields "".
func (d *dateInput) Value() (string, error) {
	if d.IsEmpty() {
		return "", nil
	}
	now := d.now()

	yyyy := strings.TrimSpace(d.fields[0].Value())
	mm := strings.TrimSpace(d.fields[1].Value())
	dd := strings.TrimSpace(d.fields[2].Value())

	if yyyy == "" {
		yyyy = fmt.Sprintf("%04d", now.Year())
	}
	if mm == "" {
		mm = fmt.Sprintf("%02d", int(now.Month()))
	}
	if dd == "" {
		return "", fmt.Errorf("day is required")
	}

	date := fmt.Sprintf("%s-%s-%s", yyyy, padLeft(mm, 2), padLeft(dd, 2))
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return "", fmt.Errorf("invalid date: %s", date)
	}
	return date, nil
}

func padLeft(s string, length int) string {
	for len(s) < length {
		s = "0" + s
	}
	return s
}

func (d *dateInput) IsEmpty() bool {
	return d.fields[0].Value() == "" && d.fields[1].Value() == "" && d.fields[2].Value() == ""
}

func (d *dateInput) focusField(idx int) tea.Cmd {
	d.focus = idx
	var cmds []tea.Cmd
	for i := range d.fields {
		if i == idx {
			cmds = append(cmds, d.fields[i].Focus())
		} else {
			d.fields[i].Blur()
		}
	}
	return tea.Batch(cmds...)
}

func (d dateInput) Update(msg tea.Msg) (dateInput, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "right":
			if d.focus < 2 {
				cmd := d.focusField(d.focus + 1)
				return d, cmd
			}
			return d, nil
		case "left":
			if d.focus > 0 {
				cmd := d.focusField(d.focus - 1)
				return d, cmd
			}
			return d, nil
		}
	}

	var cmd tea.Cmd
	d.fields[d.focus], cmd = d.fields[d.focus].Update(msg)
	return d, cmd
}

func (d dateInput) View() string {
	return d.fields[0].View() + " - " + d.fields[1].View() + " - " + d.fields[2].View()
}
