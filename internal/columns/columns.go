// Package columns derives the ordered column set of a board.
package columns

import (
	"sort"
	"strings"

	"github.com/nissyi-gh/flowboard/internal/model"
)

// Defaults returns the built-in column set used when neither the project nor
// the organization defines one.
func Defaults() []model.Column {
	return []model.Column{
		{ID: "todo", Title: "To Do", Color: model.ColorGray, Position: 0, IsDefault: true},
		{ID: "in-progress", Title: "In Progress", Color: model.ColorBlue, Position: 1},
		{ID: "review", Title: "Review", Color: model.ColorYellow, Position: 2},
		{ID: "done", Title: "Done", Color: model.ColorGreen, Position: 3, IsTerminal: true},
	}
}

// Build picks the first non-empty source: the project's own columns, then
// the active organization status lookups, then Defaults.
func Build(project []model.Column, lookups []model.StatusLookup) []model.Column {
	if len(project) > 0 {
		return fromProject(project)
	}
	if cols := fromLookups(lookups); len(cols) > 0 {
		return cols
	}
	return Defaults()
}

// Project columns keep their stored order. Positions are taken from the
// index when missing or inconsistent.
func fromProject(project []model.Column) []model.Column {
	out := make([]model.Column, len(project))
	copy(out, project)

	seen := make(map[int]bool, len(out))
	reindex := false
	for i, c := range out {
		if (c.Position == 0 && i > 0) || seen[c.Position] {
			reindex = true
			break
		}
		seen[c.Position] = true
	}
	for i := range out {
		if reindex {
			out[i].Position = i
		}
		if out[i].Color == "" {
			out[i].Color = model.ColorGray
		}
	}
	return out
}

func fromLookups(lookups []model.StatusLookup) []model.Column {
	active := make([]model.StatusLookup, 0, len(lookups))
	for _, l := range lookups {
		if !l.Disabled {
			active = append(active, l)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})

	out := make([]model.Column, 0, len(active))
	for i, l := range active {
		color := l.Color
		if color == "" {
			color = model.ColorGray
		}
		out = append(out, model.Column{
			ID:         l.ID,
			Title:      l.Name,
			Color:      color,
			Position:   i,
			IsDefault:  i == 0,
			IsTerminal: l.IsTerminal,
		})
	}
	return out
}

// Sorted returns a copy of cols ordered by position.
func Sorted(cols []model.Column) []model.Column {
	out := make([]model.Column, len(cols))
	copy(out, cols)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// Find returns the column with id.
func Find(cols []model.Column, id string) (model.Column, bool) {
	for _, c := range cols {
		if c.ID == id {
			return c, true
		}
	}
	return model.Column{}, false
}

// Terminal returns the first column flagged as terminal in position order.
// Column sets predating the flag fall back to a title match on "done" or
// "complete".
func Terminal(cols []model.Column) (model.Column, bool) {
	sorted := Sorted(cols)
	for _, c := range sorted {
		if c.IsTerminal {
			return c, true
		}
	}
	for _, c := range sorted {
		title := strings.ToLower(c.Title)
		if strings.Contains(title, "done") || strings.Contains(title, "complete") {
			return c, true
		}
	}
	return model.Column{}, false
}

// First returns the first column in position order.
func First(cols []model.Column) (model.Column, bool) {
	if len(cols) == 0 {
		return model.Column{}, false
	}
	return Sorted(cols)[0], true
}

// Default returns the column flagged as default, or the first one.
func Default(cols []model.Column) (model.Column, bool) {
	for _, c := range cols {
		if c.IsDefault {
			return c, true
		}
	}
	return First(cols)
}
