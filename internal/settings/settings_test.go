package settings

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/notify"
)

type fakeColumnStore struct {
	calls int
	got   []model.Column
	err   error
}

func (s *fakeColumnStore) UpdateProjectColumns(_ context.Context, _ string, cols []model.Column) error {
	s.calls++
	s.got = cols
	return s.err
}

func committed() []model.Column {
	return []model.Column{
		{ID: "done", Title: "Done", Position: 7, IsTerminal: true},
		{ID: "todo", Title: "To Do", Position: 1, IsDefault: true},
		{ID: "doing", Title: "Doing", Position: 3},
	}
}

func ids(cols []model.Column) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.ID
	}
	return strings.Join(out, ",")
}

func newEditor(store *fakeColumnStore, cols []model.Column) (*Editor, *notify.Recorder) {
	rec := &notify.Recorder{}
	return NewEditor(store, rec, zerolog.Nop(), "p1", cols), rec
}

func TestEditor_DraftIsolated(t *testing.T) {
	store := &fakeColumnStore{}
	e, _ := newEditor(store, committed())

	if e.Dirty() {
		t.Fatalf("Dirty()=true on a fresh draft")
	}
	if got := ids(e.Columns()); got != "todo,doing,done" {
		t.Fatalf("Columns()=%s, want todo,doing,done", got)
	}

	if err := e.Rename("doing", "In Progress"); err != nil {
		t.Fatalf("Rename() err=%v", err)
	}
	if err := e.MoveUp("done"); err != nil {
		t.Fatalf("MoveUp() err=%v", err)
	}
	if !e.Dirty() {
		t.Fatalf("Dirty()=false after edits")
	}

	e.Cancel()
	if e.Dirty() || ids(e.Columns()) != "todo,doing,done" || e.Columns()[1].Title != "Doing" {
		t.Fatalf("Cancel() left draft %+v", e.Columns())
	}
	if store.calls != 0 {
		t.Fatalf("store calls=%d, want 0", store.calls)
	}
}

func TestEditor_Save(t *testing.T) {
	store := &fakeColumnStore{}
	e, rec := newEditor(store, committed())

	id, err := e.Add("  Blocked! ", "")
	if err != nil {
		t.Fatalf("Add() err=%v", err)
	}
	if id != "blocked" {
		t.Fatalf("Add() id=%q, want blocked", id)
	}
	_ = e.MoveUp(id)
	_ = e.SetTerminal("doing")
	_ = e.Recolor("todo", model.ColorBlue)

	got, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() err=%v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store calls=%d, want 1", store.calls)
	}
	if ids(got) != "todo,doing,blocked,done" || ids(store.got) != ids(got) {
		t.Fatalf("Save()=%s persisted=%s", ids(got), ids(store.got))
	}
	for i, c := range got {
		if c.Position != i {
			t.Fatalf("column %s position=%d, want %d", c.ID, c.Position, i)
		}
	}
	if !got[1].IsTerminal || got[3].IsTerminal {
		t.Fatalf("terminal flag not moved: %+v", got)
	}
	if got[2].Color != model.ColorGray || got[0].Color != model.ColorBlue {
		t.Fatalf("colors=%q/%q", got[2].Color, got[0].Color)
	}
	if e.Dirty() {
		t.Fatalf("Dirty()=true after Save")
	}
	if rec.Toasts[len(rec.Toasts)-1].Level != notify.LevelSuccess {
		t.Fatalf("want success notification")
	}
}

func TestEditor_SaveFailureKeepsDraft(t *testing.T) {
	store := &fakeColumnStore{err: errors.New("forbidden")}
	e, rec := newEditor(store, committed())
	_ = e.Delete("doing")

	if _, err := e.Save(context.Background()); err == nil {
		t.Fatalf("Save() err=nil, want error")
	}
	if !e.Dirty() || ids(e.Columns()) != "todo,done" {
		t.Fatalf("draft lost after failed save: %s", ids(e.Columns()))
	}
	if rec.Toasts[len(rec.Toasts)-1].Level != notify.LevelError {
		t.Fatalf("want error notification")
	}
}

func TestEditor_SaveUnchangedSkipsStore(t *testing.T) {
	store := &fakeColumnStore{}
	e, _ := newEditor(store, committed())

	if _, err := e.Save(context.Background()); err != nil {
		t.Fatalf("Save() err=%v", err)
	}
	if store.calls != 0 {
		t.Fatalf("store calls=%d, want 0", store.calls)
	}
}

func TestEditor_LastColumnProtected(t *testing.T) {
	store := &fakeColumnStore{}
	e, rec := newEditor(store, []model.Column{{ID: "todo", Title: "To Do"}})

	err := e.Delete("todo")
	if !errors.Is(err, ErrLastColumn) {
		t.Fatalf("Delete() err=%v, want ErrLastColumn", err)
	}
	if len(e.Columns()) != 1 {
		t.Fatalf("Columns()=%d, want 1", len(e.Columns()))
	}
	if store.calls != 0 {
		t.Fatalf("store calls=%d, want 0", store.calls)
	}
	if len(rec.Toasts) != 1 || rec.Toasts[0].Level != notify.LevelWarning {
		t.Fatalf("notifications=%+v, want one warning", rec.Toasts)
	}
}

func TestEditor_Errors(t *testing.T) {
	e, _ := newEditor(&fakeColumnStore{}, committed())

	if _, err := e.Add("   ", model.ColorRed); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("Add(blank) err=%v, want ErrEmptyTitle", err)
	}
	if err := e.Rename("todo", ""); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("Rename(blank) err=%v, want ErrEmptyTitle", err)
	}
	if err := e.Delete("nope"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("Delete(unknown) err=%v, want ErrUnknownColumn", err)
	}
	if err := e.MoveUp("todo"); err != nil {
		t.Fatalf("MoveUp(first) err=%v, want nil", err)
	}
	if ids(e.Columns()) != "todo,doing,done" {
		t.Fatalf("MoveUp(first) changed order: %s", ids(e.Columns()))
	}
}

func TestEditor_SetDefaultIsExclusive(t *testing.T) {
	e, _ := newEditor(&fakeColumnStore{}, committed())
	_ = e.SetDefault("done")

	n := 0
	for _, c := range e.Columns() {
		if c.IsDefault {
			n++
			if c.ID != "done" {
				t.Fatalf("default=%s, want done", c.ID)
			}
		}
	}
	if n != 1 {
		t.Fatalf("default columns=%d, want 1", n)
	}
}

func TestEditor_NewIDAvoidsCollision(t *testing.T) {
	e, _ := newEditor(&fakeColumnStore{}, committed())

	id, _ := e.Add("Done", "")
	if id == "done" || !strings.HasPrefix(id, "done-") {
		t.Fatalf("Add(Done) id=%q, want done-<suffix>", id)
	}
	id, _ = e.Add("???", "")
	if id != "column" {
		t.Fatalf("Add(???) id=%q, want column", id)
	}
}
