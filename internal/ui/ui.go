package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/board"
	"github.com/nissyi-gh/flowboard/internal/live"
	"github.com/nissyi-gh/flowboard/internal/model"
	"github.com/nissyi-gh/flowboard/internal/notify"
	"github.com/nissyi-gh/flowboard/internal/settings"
	"github.com/nissyi-gh/flowboard/internal/team"
)

type appState int

const (
	stateBoard appState = iota
	stateAdd
	stateConfirm
	stateSettings
	stateTeam
)

var (
	appStyle     = lipgloss.NewStyle().Padding(1, 2)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	urgentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	highStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	cardStyle    = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))
	laneStyle = lipgloss.NewStyle().
			Padding(0, 1).
			BorderLeft(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("238"))
	dialogStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241"))

	toastStyles = map[notify.Level]lipgloss.Style{
		notify.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		notify.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("148")),
		notify.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		notify.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

const toastInterval = 250 * time.Millisecond

// Backend is everything the board screen reads from or writes to.
type Backend interface {
	board.TaskStore
	settings.ColumnStore
	team.MemberStore
	GetProject(ctx context.Context, projectID string) (model.Project, error)
	GetProjectTasks(ctx context.Context, projectID string) ([]model.Task, error)
	GetStatusLookups(ctx context.Context) ([]model.StatusLookup, error)
}

// Prefs remembers per-user choices between runs.
type Prefs interface {
	LastView(projectID string) (board.View, error)
	SetLastView(projectID string, v board.View) error
	SetLastProject(projectID string) error
}

type Options struct {
	Context   context.Context
	ProjectID string
	Backend   Backend
	// Board must report to Toasts.
	Board    *board.Board
	Toasts   *notify.Toasts
	Resolver *team.Resolver
	Prefs    Prefs
	Changes  <-chan live.Change
	Logger   zerolog.Logger
	Now      func() time.Time
}

type keyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	Grab     key.Binding
	ShiftL   key.Binding
	ShiftR   key.Binding
	Cancel   key.Binding
	Toggle   key.Binding
	Add      key.Binding
	Delete   key.Binding
	View     key.Binding
	Settings key.Binding
	Team     key.Binding
	Copy     key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Left:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "lane")),
		Right:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "lane")),
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card")),
		Grab:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "grab/drop")),
		ShiftL:   key.NewBinding(key.WithKeys("H", "shift+left"), key.WithHelp("H", "move left")),
		ShiftR:   key.NewBinding(key.WithKeys("L", "shift+right"), key.WithHelp("L", "move right")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		Toggle:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "complete")),
		Add:      key.NewBinding(key.WithKeys("a", "n"), key.WithHelp("a", "add")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		View:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "status/technician")),
		Settings: key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "columns")),
		Team:     key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "team")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy summary")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grab, k.ShiftL, k.ShiftR, k.Toggle, k.Add, k.View, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Grab, k.Cancel, k.ShiftL, k.ShiftR},
		{k.Toggle, k.Add, k.Delete, k.Copy},
		{k.View, k.Settings, k.Team, k.Reload, k.Quit},
	}
}

type inputMode int

const (
	inputNone inputMode = iota
	inputAdd
	inputRename
)

// Model is the top-level BubbleTea model for the board TUI.
type Model struct {
	opts    Options
	ctx     context.Context
	board   *board.Board
	toasts  *notify.Toasts
	logger  zerolog.Logger
	state   appState
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	loading      bool
	loaded       bool
	reloadQueued bool
	err          error

	lane    int
	card    int
	grabbed string

	titleInput  textinput.Model
	dateInput   dateInput
	addPriority model.Priority
	addErr      error

	editor    *settings.Editor
	colCursor int
	colInput  textinput.Model
	colMode   inputMode
	saving    bool

	directory  []model.User
	teamCursor int
	teamSaving bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ti := textinput.New()
	ti.Placeholder = "Task title..."
	ti.CharLimit = 256

	ci := textinput.New()
	ci.Placeholder = "Column title..."
	ci.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	return Model{
		opts:        opts,
		ctx:         opts.Context,
		board:       opts.Board,
		toasts:      opts.Toasts,
		logger:      opts.Logger,
		state:       stateBoard,
		keys:        newKeyMap(),
		help:        help.New(),
		spinner:     sp,
		loading:     true,
		titleInput:  ti,
		dateInput:   newDateInput(),
		addPriority: model.PriorityMedium,
		colInput:    ci,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), m.spinner.Tick, tickToasts(), waitForChange(m.opts.Changes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case toastTickMsg:
		m.toasts.Prune()
		return m, tickToasts()

	case boardLoadedMsg:
		return m.onLoaded(msg)

	case errMsg:
		m.loading = false
		m.err = msg.error
		m.logger.Error().Err(msg.error).Msg("board load failed")
		m.toasts.Notify(notify.LevelError, msg.Error())
		return m, nil

	case mutationDoneMsg:
		m.board.Finish(msg.m, msg.err)
		m.clampCursor()
		return m, nil

	case liveChangeMsg:
		m.logger.Debug().
			Str("task_id", msg.TaskID).
			Str("op", msg.Op).
			Msg("remote change")
		next := waitForChange(m.opts.Changes)
		if m.loading {
			m.reloadQueued = true
			return m, next
		}
		m.loading = true
		return m, tea.Batch(m.loadBoard(), next)

	case directoryMsg:
		m.directory = msg
		if m.teamCursor >= len(m.directory) {
			m.teamCursor = 0
		}
		return m, nil

	case teamSavedMsg:
		m.teamSaving = false
		if msg.err != nil {
			m.logger.Error().Err(msg.err).Msg("team update failed")
			m.toasts.Notify(notify.LevelError, "Could not update the team: "+msg.err.Error())
			return m, nil
		}
		m.board.SetTeamMembers(msg.members)
		m.board.SetUsers(msg.users)
		m.toasts.Notify(notify.LevelSuccess, "Team updated")
		m.clampCursor()
		return m, nil

	case columnsSavedMsg:
		m.saving = false
		if m.editor == nil {
			return m, nil
		}
		cols, err := m.editor.Commit(msg.cols, msg.err)
		if err != nil {
			return m, nil
		}
		m.board.SetColumns(cols)
		m.editor = nil
		m.state = stateBoard
		m.clampCursor()
		return m, nil

	case summaryCopiedMsg:
		if msg.err != nil {
			m.logger.Warn().Err(msg.err).Msg("clipboard unavailable")
			m.toasts.Notify(notify.LevelError, msg.err.Error())
			return m, nil
		}
		m.toasts.Notify(notify.LevelInfo, "Board summary copied")
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case stateBoard:
		return m.updateBoard(msg)
	case stateAdd:
		return m.updateAdd(msg)
	case stateConfirm:
		return m.updateConfirm(msg)
	case stateSettings:
		return m.updateSettings(msg)
	case stateTeam:
		return m.updateTeam(msg)
	}

	return m, nil
}

func (m Model) onLoaded(msg boardLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.err = nil
	m.board.Load(msg.project, msg.tasks, msg.lookups)
	m.board.SetUsers(msg.users)

	if !m.loaded {
		m.loaded = true
		if m.opts.Prefs != nil {
			if v, err := m.opts.Prefs.LastView(msg.project.ID); err == nil {
				m.board.SetView(v)
			} else {
				m.logger.Warn().Err(err).Msg("failed to read view preference")
			}
			if err := m.opts.Prefs.SetLastProject(msg.project.ID); err != nil {
				m.logger.Warn().Err(err).Msg("failed to save last project")
			}
		}
	}
	m.clampCursor()

	if m.reloadQueued {
		m.reloadQueued = false
		m.loading = true
		return m, m.loadBoard()
	}
	return m, nil
}

func (m Model) updateBoard(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Left):
		m.moveLane(-1)
	case key.Matches(keyMsg, m.keys.Right):
		m.moveLane(1)
	case key.Matches(keyMsg, m.keys.Up):
		if m.card > 0 {
			m.card--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if lane, ok := m.currentLane(); ok && m.card < len(lane.Tasks)-1 {
			m.card++
		}
	case key.Matches(keyMsg, m.keys.Grab):
		return m.grabOrDrop()
	case key.Matches(keyMsg, m.keys.Cancel):
		m.grabbed = ""
	case key.Matches(keyMsg, m.keys.ShiftL):
		return m.shiftCard(-1)
	case key.Matches(keyMsg, m.keys.ShiftR):
		return m.shiftCard(1)
	case key.Matches(keyMsg, m.keys.Toggle):
		if t, ok := m.currentTask(); ok {
			mu, err := m.board.BeginToggleCompletion(t.ID, !m.board.IsCompleted(t))
			m.logRefused(err, t.ID)
			m.focusTask(t.ID)
			return m, m.run(mu)
		}
	case key.Matches(keyMsg, m.keys.Add):
		m.state = stateAdd
		m.addErr = nil
		m.addPriority = model.PriorityMedium
		m.titleInput.Reset()
		m.dateInput = newDateInput()
		m.dateInput.now = m.opts.Now
		return m, m.titleInput.Focus()
	case key.Matches(keyMsg, m.keys.Delete):
		if _, ok := m.currentTask(); ok {
			m.state = stateConfirm
		}
	case key.Matches(keyMsg, m.keys.View):
		next := board.ViewTechnician
		if m.board.View() == board.ViewTechnician {
			next = board.ViewStatus
		}
		m.board.SetView(next)
		m.grabbed = ""
		m.lane, m.card = 0, 0
		if m.opts.Prefs != nil {
			if err := m.opts.Prefs.SetLastView(m.opts.ProjectID, next); err != nil {
				m.logger.Warn().Err(err).Msg("failed to save view preference")
			}
		}
	case key.Matches(keyMsg, m.keys.Settings):
		m.editor = settings.NewEditor(m.opts.Backend, m.toasts, m.logger, m.opts.ProjectID, m.board.Columns())
		m.colCursor = 0
		m.colMode = inputNone
		m.state = stateSettings
	case key.Matches(keyMsg, m.keys.Team):
		m.state = stateTeam
		m.teamCursor = 0
		m.directory = nil
		return m, m.loadDirectory()
	case key.Matches(keyMsg, m.keys.Copy):
		return m, m.copySummary()
	case key.Matches(keyMsg, m.keys.Reload):
		if !m.loading {
			m.loading = true
			return m, m.loadBoard()
		}
	case key.Matches(keyMsg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// grabOrDrop picks up the card under the cursor, or drops the grabbed card
// on the card or lane under the cursor.
func (m Model) grabOrDrop() (tea.Model, tea.Cmd) {
	if m.grabbed == "" {
		if t, ok := m.currentTask(); ok {
			m.grabbed = t.ID
		}
		return m, nil
	}

	id := m.grabbed
	m.grabbed = ""
	target := ""
	if t, ok := m.currentTask(); ok && t.ID != id {
		target = t.ID
	} else if lane, ok := m.currentLane(); ok {
		target = lane.ID
	}
	mu, err := m.board.BeginDragEnd(id, target)
	m.logRefused(err, id)
	m.focusTask(id)
	return m, m.run(mu)
}

// shiftCard drags the card under the cursor onto the neighbouring lane.
func (m Model) shiftCard(by int) (tea.Model, tea.Cmd) {
	t, ok := m.currentTask()
	if !ok {
		return m, nil
	}
	lanes := m.board.Lanes()
	next := m.lane + by
	if next < 0 || next >= len(lanes) {
		return m, nil
	}
	mu, err := m.board.BeginDragEnd(t.ID, lanes[next].ID)
	m.logRefused(err, t.ID)
	m.focusTask(t.ID)
	return m, m.run(mu)
}

func (m Model) updateAdd(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			return m.submitAdd()
		case "esc":
			m.state = stateBoard
			return m, nil
		case "tab":
			if m.titleInput.Focused() {
				m.titleInput.Blur()
				return m, m.dateInput.Focus()
			}
			m.dateInput.Blur()
			return m, m.titleInput.Focus()
		case "ctrl+p":
			m.addPriority = nextPriority(m.addPriority)
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.titleInput.Focused() {
		m.titleInput, cmd = m.titleInput.Update(msg)
	} else {
		m.dateInput, cmd = m.dateInput.Update(msg)
	}
	return m, cmd
}

func nextPriority(p model.Priority) model.Priority {
	for i, q := range model.Priorities {
		if q == p {
			return model.Priorities[(i+1)%len(model.Priorities)]
		}
	}
	return model.PriorityMedium
}

func (m Model) submitAdd() (tea.Model, tea.Cmd) {
	due, err := m.dateInput.Value()
	if err != nil {
		m.addErr = err
		return m, nil
	}

	data := model.NewTask{Title: m.titleInput.Value(), Priority: m.addPriority}
	if due != "" {
		data.DueDate = &due
	}
	if lane, ok := m.currentLane(); ok && !lane.Virtual {
		if m.board.View() == board.ViewTechnician {
			data.AssigneeID, data.Assignee = lane.ID, lane.Title
		} else {
			data.ColumnID = lane.ID
		}
	}

	mu, err := m.board.BeginCreate(data)
	if errors.Is(err, board.ErrEmptyTitle) {
		m.addErr = err
		return m, nil
	}
	m.state = stateBoard
	if mu != nil {
		m.focusTask(mu.TaskID)
	}
	return m, m.run(mu)
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "y":
			m.state = stateBoard
			if t, ok := m.currentTask(); ok {
				mu, err := m.board.BeginDelete(t.ID)
				m.logRefused(err, t.ID)
				m.clampCursor()
				return m, m.run(mu)
			}
			return m, nil
		case "n", "esc":
			m.state = stateBoard
			return m, nil
		}
	}
	return m, nil
}

func (m Model) updateSettings(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}
	cols := m.editor.Columns()

	if m.colMode != inputNone {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "enter":
				var err error
				if m.colMode == inputAdd {
					_, err = m.editor.Add(m.colInput.Value(), model.ColorGray)
					if err == nil {
						m.colCursor = len(cols)
					}
				} else if m.colCursor < len(cols) {
					err = m.editor.Rename(cols[m.colCursor].ID, m.colInput.Value())
				}
				if err != nil {
					m.toasts.Notify(notify.LevelWarning, err.Error())
					return m, nil
				}
				m.colMode = inputNone
				m.colInput.Blur()
				return m, nil
			case "esc":
				m.colMode = inputNone
				m.colInput.Blur()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.colInput, cmd = m.colInput.Update(msg)
		return m, cmd
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	var current model.Column
	if m.colCursor < len(cols) {
		current = cols[m.colCursor]
	}

	var err error
	switch keyMsg.String() {
	case "j", "down":
		if m.colCursor < len(cols)-1 {
			m.colCursor++
		}
	case "k", "up":
		if m.colCursor > 0 {
			m.colCursor--
		}
	case "a":
		m.colMode = inputAdd
		m.colInput.Reset()
		return m, m.colInput.Focus()
	case "r":
		m.colMode = inputRename
		m.colInput.SetValue(current.Title)
		return m, m.colInput.Focus()
	case "c":
		err = m.editor.Recolor(current.ID, nextColor(current.Color))
	case "K":
		if err = m.editor.MoveUp(current.ID); err == nil && m.colCursor > 0 {
			m.colCursor--
		}
	case "J":
		if err = m.editor.MoveDown(current.ID); err == nil && m.colCursor < len(cols)-1 {
			m.colCursor++
		}
	case "t":
		err = m.editor.SetTerminal(current.ID)
	case "D":
		err = m.editor.SetDefault(current.ID)
	case "d":
		if err = m.editor.Delete(current.ID); err == nil && m.colCursor >= len(cols)-1 && m.colCursor > 0 {
			m.colCursor--
		}
		if errors.Is(err, settings.ErrLastColumn) {
			// already reported by the editor
			err = nil
		}
	case "s", "enter":
		pending, dirty := m.editor.Pending()
		if !dirty {
			m.editor = nil
			m.state = stateBoard
			return m, nil
		}
		m.saving = true
		return m, m.saveColumns(pending)
	case "esc":
		m.editor.Cancel()
		m.editor = nil
		m.state = stateBoard
	}
	if err != nil {
		m.toasts.Notify(notify.LevelWarning, err.Error())
	}
	return m, nil
}

func nextColor(c model.Color) model.Color {
	for i, k := range model.Colors {
		if k == c {
			return model.Colors[(i+1)%len(model.Colors)]
		}
	}
	return model.ColorGray
}

func (m Model) updateTeam(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "j", "down":
		if m.teamCursor < len(m.directory)-1 {
			m.teamCursor++
		}
	case "k", "up":
		if m.teamCursor > 0 {
			m.teamCursor--
		}
	case "enter", " ", "x":
		if m.teamSaving || m.teamCursor >= len(m.directory) {
			return m, nil
		}
		m.teamSaving = true
		return m, m.toggleMember(m.directory[m.teamCursor].ID)
	case "esc", "q":
		m.state = stateBoard
	}
	return m, nil
}

func (m Model) logRefused(err error, taskID string) {
	if err != nil {
		m.logger.Debug().Err(err).Str("task_id", taskID).Msg("change refused")
	}
}

func (m Model) currentLane() (board.Lane, bool) {
	lanes := m.board.Lanes()
	if m.lane < 0 || m.lane >= len(lanes) {
		return board.Lane{}, false
	}
	return lanes[m.lane], true
}

func (m Model) currentTask() (model.Task, bool) {
	lane, ok := m.currentLane()
	if !ok || m.card < 0 || m.card >= len(lane.Tasks) {
		return model.Task{}, false
	}
	return lane.Tasks[m.card], true
}

func (m *Model) moveLane(by int) {
	n := len(m.board.Lanes())
	if n == 0 {
		return
	}
	m.lane = (m.lane + by + n) % n
	m.clampCursor()
}

// focusTask moves the cursor onto the task wherever it is now.
func (m *Model) focusTask(id string) {
	for i, lane := range m.board.Lanes() {
		for j, t := range lane.Tasks {
			if t.ID == id {
				m.lane, m.card = i, j
				return
			}
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	lanes := m.board.Lanes()
	if len(lanes) == 0 {
		m.lane, m.card = 0, 0
		return
	}
	if m.lane >= len(lanes) {
		m.lane = len(lanes) - 1
	}
	if m.lane < 0 {
		m.lane = 0
	}
	if n := len(lanes[m.lane].Tasks); m.card >= n {
		m.card = n - 1
	}
	if m.card < 0 {
		m.card = 0
	}
	if m.grabbed != "" {
		if _, ok := m.board.Task(m.grabbed); !ok {
			m.grabbed = ""
		}
	}
}
