// Package settings edits a draft copy of a project's columns. Nothing
// leaves the draft until Save.
package settings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/columns"
	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/notify"
)

var (
	ErrLastColumn    = errors.New("a board needs at least one column")
	ErrEmptyTitle    = errors.New("column title is required")
	ErrUnknownColumn = errors.New("unknown column")
)

// ColumnStore persists a project's column set.
type ColumnStore interface {
	UpdateProjectColumns(ctx context.Context, projectID string, cols []model.Column) error
}

type Editor struct {
	store     ColumnStore
	notifier  notify.Notifier
	logger    zerolog.Logger
	projectID string

	original []model.Column
	draft    []model.Column
}

// NewEditor starts a draft from the committed columns.
func NewEditor(store ColumnStore, notifier notify.Notifier, logger zerolog.Logger, projectID string, committed []model.Column) *Editor {
	e := &Editor{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		projectID: projectID,
		original:  renumber(columns.Sorted(committed)),
	}
	e.Cancel()
	return e
}

// Columns returns the draft in display order.
func (e *Editor) Columns() []model.Column {
	return append([]model.Column(nil), e.draft...)
}

// Dirty reports whether the draft differs from the committed columns.
func (e *Editor) Dirty() bool {
	if len(e.draft) != len(e.original) {
		return true
	}
	for i := range e.draft {
		if e.draft[i] != e.original[i] {
			return true
		}
	}
	return false
}

// Cancel discards the draft.
func (e *Editor) Cancel() {
	e.draft = renumber(append([]model.Column(nil), e.original...))
}

// Add appends a column and returns its id.
func (e *Editor) Add(title string, color model.Color) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if color == "" {
		color = model.ColorGray
	}
	c := model.Column{
		ID:       e.newID(title),
		Title:    title,
		Color:    color,
		Position: len(e.draft),
	}
	e.draft = append(e.draft, c)
	return c.ID, nil
}

func (e *Editor) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	i, err := e.index(id)
	if err != nil {
		return err
	}
	e.draft[i].Title = title
	return nil
}

func (e *Editor) Recolor(id string, color model.Color) error {
	i, err := e.index(id)
	if err != nil {
		return err
	}
	e.draft[i].Color = color
	return nil
}

func (e *Editor) MoveUp(id string) error { return e.shift(id, -1) }

func (e *Editor) MoveDown(id string) error { return e.shift(id, 1) }

func (e *Editor) shift(id string, by int) error {
	i, err := e.index(id)
	if err != nil {
		return err
	}
	j := i + by
	if j < 0 || j >= len(e.draft) {
		return nil
	}
	e.draft[i], e.draft[j] = e.draft[j], e.draft[i]
	e.draft = renumber(e.draft)
	return nil
}

// SetTerminal marks id as the completion column, clearing the flag on
// every other column.
func (e *Editor) SetTerminal(id string) error {
	i, err := e.index(id)
	if err != nil {
		return err
	}
	for j := range e.draft {
		e.draft[j].IsTerminal = j == i
	}
	return nil
}

// SetDefault marks id as the column new tasks land in.
func (e *Editor) SetDefault(id string) error {
	i, err := e.index(id)
	if err != nil {
		return err
	}
	for j := range e.draft {
		e.draft[j].IsDefault = j == i
	}
	return nil
}

// Delete removes a column from the draft. The last column is kept and a
// warning is shown instead.
func (e *Editor) Delete(id string) error {
	i, err := e.index(id)
	if err != nil {
		return err
	}
	if len(e.draft) == 1 {
		e.logger.Warn().
			Str("project_id", e.projectID).
			Str("column_id", id).
			Msg("refused to delete last column")
		e.notifier.Notify(notify.LevelWarning, "A board needs at least one column")
		return ErrLastColumn
	}
	e.draft = renumber(append(e.draft[:i], e.draft[i+1:]...))
	return nil
}

// Save persists the draft and returns the committed columns. On failure
// the draft is kept so the user can retry.
func (e *Editor) Save(ctx context.Context) ([]model.Column, error) {
	cols, ok := e.Pending()
	if !ok {
		return cols, nil
	}
	return e.Commit(cols, e.Persist(ctx, cols))
}

// Pending returns the draft to persist. ok is false when nothing changed.
func (e *Editor) Pending() (cols []model.Column, ok bool) {
	return e.Columns(), e.Dirty()
}

// Persist writes cols to the store. It does not touch the draft, so it may
// run on any goroutine.
func (e *Editor) Persist(ctx context.Context, cols []model.Column) error {
	return e.store.UpdateProjectColumns(ctx, e.projectID, cols)
}

// Commit records the outcome of Persist.
func (e *Editor) Commit(cols []model.Column, err error) ([]model.Column, error) {
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("project_id", e.projectID).
			Msg("failed to save columns")
		e.notifier.Notify(notify.LevelError, fmt.Sprintf("Could not save columns: %v", err))
		return nil, fmt.Errorf("save columns of project %s: %w", e.projectID, err)
	}
	e.original = cols
	e.logger.Info().
		Str("project_id", e.projectID).
		Int("columns", len(cols)).
		Msg("saved columns")
	e.notifier.Notify(notify.LevelSuccess, "Columns saved")
	return append([]model.Column(nil), cols...), nil
}

func (e *Editor) index(id string) (int, error) {
	for i := range e.draft {
		if e.draft[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownColumn, id)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func (e *Editor) newID(title string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		slug = "column"
	}
	if _, err := e.index(slug); err != nil {
		if _, ok := columns.Find(e.original, slug); !ok {
			return slug
		}
	}
	return slug + "-" + uuid.NewString()[:8]
}

func renumber(cols []model.Column) []model.Column {
	for i := range cols {
		cols[i].Position = i
	}
	return cols
}
