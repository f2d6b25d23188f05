package ui

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/api"
	"github.com/nissyi-gh/flowboard/internal/api/apitest"
	"github.com/nissyi-gh/flowboard/internal/board"
	"github.com/nissyi-gh/flowboard/internal/live"
	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/notify"
	"github.com/nissyi-gh/flowboard/internal/report"
	"github.com/nissyi-gh/flowboard/internal/team"
)

type fakePrefs struct {
	views   map[string]board.View
	project string
}

func (p *fakePrefs) LastView(projectID string) (board.View, error) {
	if v, ok := p.views[projectID]; ok {
		return v, nil
	}
	return board.ViewStatus, nil
}

func (p *fakePrefs) SetLastView(projectID string, v board.View) error {
	p.views[projectID] = v
	return nil
}

func (p *fakePrefs) SetLastProject(projectID string) error {
	p.project = projectID
	return nil
}

type harness struct {
	backend *apitest.Backend
	toasts  *notify.Toasts
	prefs   *fakePrefs
}

func newHarness(t *testing.T) (*harness, Model) {
	t.Helper()

	backend := apitest.Demo()
	srv := backend.Start()
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	client := api.New(srv.URL, "", 5*time.Second, logger)
	toasts := notify.NewToasts(time.Minute, 10)
	current := team.StaticUser{ID: "u3", Name: "Chidi Okafor"}
	b := board.New(client, toasts, logger, board.Options{DoneColumnID: "done", CurrentUser: current})
	prefs := &fakePrefs{views: make(map[string]board.View)}

	m := NewModel(Options{
		ProjectID: apitest.DemoProjectID,
		Backend:   client,
		Board:     b,
		Toasts:    toasts,
		Resolver:  team.NewResolver(client, current, "admin", logger),
		Prefs:     prefs,
		Logger:    logger,
	})

	m = update(t, m, m.loadBoard()())
	m = update(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
	return &harness{backend: backend, toasts: toasts, prefs: prefs}, m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends keys in order and returns the command of the last one.
func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m, cmd
}

// settle runs a mutation command and feeds its result back.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(t, m, cmd())
}

func hasToast(toasts *notify.Toasts, level notify.Level) bool {
	for _, t := range toasts.Active() {
		if t.Level == level {
			return true
		}
	}
	return false
}

func TestModel_LoadsBoard(t *testing.T) {
	h, m := newHarness(t)

	if !m.loaded || m.loading {
		t.Fatalf("loaded=%v loading=%v", m.loaded, m.loading)
	}
	if got := len(m.board.Lanes()); got != 4 {
		t.Errorf("lanes = %d, want 4", got)
	}
	if h.prefs.project != apitest.DemoProjectID {
		t.Errorf("last project = %q", h.prefs.project)
	}
	view := m.View()
	for _, want := range []string{"Dashboard rollout", "Design dashboard", "In Progress"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ShiftCardMovesTask(t *testing.T) {
	h, m := newHarness(t)

	m, cmd := press(t, m, "L")
	if got, _ := m.board.Task("11"); got.ColumnID != "in-progress" {
		t.Fatalf("local column = %q, want in-progress before the call returns", got.ColumnID)
	}
	if !m.board.Pending("11") {
		t.Error("task not pending while the move is in flight")
	}
	m = settle(t, m, cmd)

	remote, _ := h.backend.Task("11")
	if remote.ColumnID != "in-progress" {
		t.Errorf("remote column = %q", remote.ColumnID)
	}
	if m.board.Pending("11") {
		t.Error("task still pending")
	}
	if cur, _ := m.currentTask(); cur.ID != "11" {
		t.Errorf("cursor on %q, want the moved card", cur.ID)
	}
}

func TestModel_GrabAndDropOnCard(t *testing.T) {
	h, m := newHarness(t)

	// grab 11 in To Do, walk to Review, drop onto 13
	m, _ = press(t, m, "space", "l", "l")
	if m.grabbed != "11" {
		t.Fatalf("grabbed = %q", m.grabbed)
	}
	m, cmd := press(t, m, "space")
	if m.grabbed != "" {
		t.Error("still grabbing after drop")
	}
	m = settle(t, m, cmd)

	remote, _ := h.backend.Task("11")
	if remote.ColumnID != "review" {
		t.Errorf("remote column = %q, want review", remote.ColumnID)
	}
	if !hasToast(h.toasts, notify.LevelSuccess) {
		t.Error("no success toast")
	}
}

func TestModel_DropOnSameLaneIsNoop(t *testing.T) {
	h, m := newHarness(t)

	m, cmd := press(t, m, "space", "space")
	if cmd != nil {
		t.Error("dropping in place produced a command")
	}
	for _, c := range h.backend.Calls() {
		if c.Op == "move task" {
			t.Fatal("backend saw a move")
		}
	}
	if m.board.Pending("11") {
		t.Error("task pending after a no-op drop")
	}
}

func TestModel_FailedMoveReverts(t *testing.T) {
	h, m := newHarness(t)
	h.backend.Fail("move task", http.StatusInternalServerError)

	m, cmd := press(t, m, "L")
	m = settle(t, m, cmd)

	got, _ := m.board.Task("11")
	if got.ColumnID != "todo" {
		t.Errorf("local column = %q, want todo after revert", got.ColumnID)
	}
	if !hasToast(h.toasts, notify.LevelError) {
		t.Error("no error toast")
	}
	if m.board.Pending("11") {
		t.Error("task still pending after revert")
	}
}

func TestModel_BusyTaskRefused(t *testing.T) {
	h, m := newHarness(t)

	m, first := press(t, m, "L")
	m, second := press(t, m, "L")
	if second != nil {
		t.Error("second change on a busy task produced a command")
	}
	if !hasToast(h.toasts, notify.LevelWarning) {
		t.Error("no warning toast")
	}
	m = settle(t, m, first)

	remote, _ := h.backend.Task("11")
	if remote.ColumnID != "in-progress" {
		t.Errorf("remote column = %q", remote.ColumnID)
	}
}

func TestModel_ToggleCompletion(t *testing.T) {
	h, m := newHarness(t)

	m, cmd := press(t, m, "x")
	m = settle(t, m, cmd)

	remote, _ := h.backend.Task("11")
	if remote.ColumnID != "done" {
		t.Fatalf("remote column = %q, want done", remote.ColumnID)
	}
	if cur, _ := m.currentTask(); cur.ID != "11" {
		t.Fatalf("cursor on %q", cur.ID)
	}

	// reopening moves it to the first column
	m, cmd = press(t, m, "x")
	settle(t, m, cmd)
	remote, _ = h.backend.Task("11")
	if remote.ColumnID != "todo" {
		t.Errorf("remote column = %q, want todo", remote.ColumnID)
	}
}

func TestModel_AddTask(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, "l", "a")
	if m.state != stateAdd {
		t.Fatalf("state = %v", m.state)
	}
	m, cmd := press(t, m, "S", "h", "i", "p", "enter")
	if m.state != stateBoard {
		t.Fatalf("state = %v after enter", m.state)
	}
	cur, ok := m.currentTask()
	if !ok || cur.Title != "Ship" || !strings.HasPrefix(cur.ID, "tmp-") {
		t.Fatalf("cursor task = %+v, want the placeholder", cur)
	}
	if cur.ColumnID != "in-progress" {
		t.Errorf("column = %q, want the lane under the cursor", cur.ColumnID)
	}

	m = settle(t, m, cmd)
	for _, task := range m.board.Tasks() {
		if task.Title == "Ship" && strings.HasPrefix(task.ID, "tmp-") {
			t.Errorf("placeholder %q survived", task.ID)
		}
	}
	var remote int
	for _, c := range h.backend.Calls() {
		if c.Op == "create project task" {
			remote++
		}
	}
	if remote != 1 {
		t.Errorf("create calls = %d", remote)
	}
}

func TestModel_AddRequiresTitle(t *testing.T) {
	_, m := newHarness(t)

	m, cmd := press(t, m, "a", "enter")
	if m.state != stateAdd {
		t.Errorf("state = %v, want add dialog kept open", m.state)
	}
	if !errors.Is(m.addErr, board.ErrEmptyTitle) {
		t.Errorf("addErr = %v", m.addErr)
	}
	if cmd != nil {
		t.Error("empty title produced a command")
	}
}

func TestModel_DeleteTask(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, "d")
	if m.state != stateConfirm {
		t.Fatalf("state = %v", m.state)
	}
	m, cmd := press(t, m, "y")
	if _, ok := m.board.Task("11"); ok {
		t.Error("task still on the board before the call returns")
	}
	settle(t, m, cmd)

	if _, ok := h.backend.Task("11"); ok {
		t.Error("task still on the backend")
	}
}

func TestModel_ToggleViewSavesPreference(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, "v")
	if m.board.View() != board.ViewTechnician {
		t.Fatalf("view = %q", m.board.View())
	}
	if h.prefs.views[apitest.DemoProjectID] != board.ViewTechnician {
		t.Errorf("saved view = %q", h.prefs.views[apitest.DemoProjectID])
	}
	lanes := m.board.Lanes()
	if lanes[0].ID != board.UnassignedLane {
		t.Errorf("first lane = %q", lanes[0].ID)
	}
}

func TestModel_ColumnSettingsSave(t *testing.T) {
	h, m := newHarness(t)

	m, _ = press(t, m, "S", "a")
	m, _ = press(t, m, "Q", "A")
	m, _ = press(t, m, "enter")
	if got := len(m.editor.Columns()); got != 5 {
		t.Fatalf("draft columns = %d", got)
	}
	m, cmd := press(t, m, "s")
	if !m.saving {
		t.Error("not saving")
	}
	m = settle(t, m, cmd)

	if m.state != stateBoard || m.editor != nil {
		t.Errorf("state = %v editor = %v", m.state, m.editor)
	}
	p, _ := h.backend.Project(apitest.DemoProjectID)
	if len(p.Columns) != 5 || p.Columns[4].Title != "QA" {
		t.Errorf("remote columns = %+v", p.Columns)
	}
	if len(m.board.Lanes()) != 5 {
		t.Errorf("lanes = %d", len(m.board.Lanes()))
	}
}

func TestModel_ColumnSettingsSaveFailureKeepsDraft(t *testing.T) {
	h, m := newHarness(t)
	h.backend.Fail("update project columns", http.StatusInternalServerError)

	m, _ = press(t, m, "S", "a", "Q", "A", "enter")
	m, cmd := press(t, m, "s")
	m = settle(t, m, cmd)

	if m.state != stateSettings || m.editor == nil || !m.editor.Dirty() {
		t.Fatalf("state = %v, draft lost", m.state)
	}
	if len(m.board.Lanes()) != 4 {
		t.Errorf("board changed to %d lanes", len(m.board.Lanes()))
	}
	if !hasToast(h.toasts, notify.LevelError) {
		t.Error("no error toast")
	}
}

func TestModel_TeamToggle(t *testing.T) {
	h, m := newHarness(t)

	m, cmd := press(t, m, "T")
	m = update(t, m, cmd())
	if len(m.directory) != 3 {
		t.Fatalf("directory = %d users", len(m.directory))
	}
	// directory is sorted by name: Aiko, Ben, Chidi
	m, cmd = press(t, m, "j", "j", "enter")
	if !m.teamSaving {
		t.Error("not saving team")
	}
	m = update(t, m, cmd())

	p, _ := h.backend.Project(apitest.DemoProjectID)
	if len(p.TeamMembers) != 3 {
		t.Errorf("remote team = %v", p.TeamMembers)
	}
	if got := len(m.board.Project().TeamMembers); got != 3 {
		t.Errorf("local team = %d", got)
	}
}

func TestModel_LiveChangeReloads(t *testing.T) {
	h, m := newHarness(t)
	h.backend.AddTask(model.Task{
		ID:        "99",
		Title:     "Remote task",
		ColumnID:  "todo",
		ProjectID: apitest.DemoProjectID,
		CreatedAt: time.Now().UTC(),
	})

	next, cmd := m.Update(liveChangeMsg(live.Change{ProjectID: apitest.DemoProjectID, Op: "move task"}))
	m = next.(Model)
	if !m.loading || cmd == nil {
		t.Fatal("live change did not start a reload")
	}

	// a second change while loading is queued
	m = update(t, m, liveChangeMsg(live.Change{ProjectID: apitest.DemoProjectID}))
	if !m.reloadQueued {
		t.Fatal("change during load not queued")
	}
	next, cmd = m.Update(m.loadBoard()())
	m = next.(Model)
	if !m.loading || m.reloadQueued || cmd == nil {
		t.Errorf("queued reload not started: loading=%v queued=%v", m.loading, m.reloadQueued)
	}
	if _, ok := m.board.Task("99"); !ok {
		t.Error("reload missed the new task")
	}
}

func TestModel_CopySummary(t *testing.T) {
	h, m := newHarness(t)

	var copied string
	orig := report.WriteClipboard
	report.WriteClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { report.WriteClipboard = orig })

	m, cmd := press(t, m, "y")
	update(t, m, cmd())

	if !strings.HasPrefix(copied, "# Dashboard rollout") {
		t.Errorf("copied = %q", copied)
	}
	if !hasToast(h.toasts, notify.LevelInfo) {
		t.Error("no info toast")
	}
}

func TestModel_LoadErrorShowsRetry(t *testing.T) {
	_, m := newHarness(t)
	m.loaded = false

	m = update(t, m, errMsg{errors.New("boom")})
	if !strings.Contains(m.View(), "boom") {
		t.Error("error not rendered")
	}
	m, cmd := press(t, m, "r")
	if cmd == nil || !m.loading {
		t.Error("r did not retry")
	}
}
