// Package apitest provides an in-memory backend speaking the same routes as
// the real task API. It backs the client tests and the --demo mode.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/nissyi-gh/flowboard/internal/live"
	"github.com/nissyi-gh/flowboard/internal/model"
)

// Call records one request the backend served.
type Call struct {
	Op     string
	TaskID string
	Body   map[string]any
}

// Backend holds the fake state. All methods are safe for concurrent use.
type Backend struct {
	mu            sync.Mutex
	nextID        int
	projects      map[string]model.Project
	tasks         map[string]model.Task
	users         []model.User
	lookups       []model.StatusLookup
	notifications []model.Notification
	calls         []Call
	failures      map[string]int
	delay         time.Duration
	live          *hub
}

func NewBackend() *Backend {
	return &Backend{
		nextID:   100,
		projects: make(map[string]model.Project),
		tasks:    make(map[string]model.Task),
		failures: make(map[string]int),
		live:     newHub(),
	}
}

func (b *Backend) AddProject(p model.Project) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.projects[p.ID] = p
}

func (b *Backend) AddTask(t model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks[t.ID] = t
}

func (b *Backend) SetUsers(users []model.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = users
}

func (b *Backend) SetLookups(lookups []model.StatusLookup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups = lookups
}

// Fail makes every subsequent request for op answer with code. A zero code
// clears the failure.
func (b *Backend) Fail(op string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if code == 0 {
		delete(b.failures, op)
		return
	}
	b.failures[op] = code
}

// SetDelay slows down every mutating request.
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

func (b *Backend) Task(id string) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	return t, ok
}

func (b *Backend) Project(id string) (model.Project, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[id]
	return p, ok
}

func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *Backend) Notifications() []model.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Notification(nil), b.notifications...)
}

// Handler returns the router serving the backend.
func (b *Backend) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/projects/{id}", b.handle("get project", b.getProject)).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/tasks", b.handle("get project tasks", b.getProjectTasks)).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}/tasks", b.handle("create project task", b.createTask)).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/team", b.handle("update team members", b.updateTeam)).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/columns", b.handle("update project columns", b.updateColumns)).Methods(http.MethodPut)
	r.HandleFunc("/lookups/task-statuses", b.handle("get status lookups", b.getLookups)).Methods(http.MethodGet)
	r.HandleFunc("/users", b.handle("get users", b.getUsers)).Methods(http.MethodGet)
	r.HandleFunc("/notifications", b.handle("create notification", b.createNotification)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", b.handle("delete project task", b.deleteTask)).Methods(http.MethodDelete)
	r.HandleFunc("/tasks/{id}/move", b.handle("move task", b.moveTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/assign", b.handle("assign task", b.assignTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/assign", b.handle("unassign task", b.unassignTask)).Methods(http.MethodDelete)
	r.HandleFunc("/tasks/{id}/status", b.handle("update task status", b.updateStatus)).Methods(http.MethodPatch)
	r.HandleFunc("/tasks/{id}/complete", b.handle("complete task", b.completeTask)).Methods(http.MethodPost)
	r.HandleFunc("/live", b.live.serve).Methods(http.MethodGet)

	return r
}

// Start serves the backend on a local test server.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b.Handler())
}

type handlerFunc func(id string, body map[string]any, raw []byte) (int, any)

func (b *Backend) handle(op string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		var body map[string]any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}

		b.mu.Lock()
		b.calls = append(b.calls, Call{Op: op, TaskID: id, Body: body})
		code, failing := b.failures[op]
		delay := b.delay
		b.mu.Unlock()

		if delay > 0 && r.Method != http.MethodGet {
			time.Sleep(delay)
		}
		if failing {
			writeJSON(w, code, map[string]string{"error": op + " failed"})
			return
		}

		b.mu.Lock()
		projectID := b.projectOf(r, id)
		status, out := fn(id, body, raw)
		b.mu.Unlock()

		if r.Method != http.MethodGet && status < 300 && projectID != "" {
			c := live.Change{ProjectID: projectID, Op: op}
			if !strings.HasPrefix(r.URL.Path, "/projects/") {
				c.TaskID = id
			}
			b.live.publish(c)
		}

		if out == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, out)
	}
}

// projectOf returns the project a request touches. Callers hold b.mu.
func (b *Backend) projectOf(r *http.Request, id string) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/projects/"):
		return id
	case strings.HasPrefix(r.URL.Path, "/tasks/"):
		return b.tasks[id].ProjectID
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(what string) (int, any) {
	return http.StatusNotFound, map[string]string{"error": what + " not found"}
}

func (b *Backend) getProject(id string, _ map[string]any, _ []byte) (int, any) {
	p, ok := b.projects[id]
	if !ok {
		return notFound("project")
	}
	return http.StatusOK, p
}

func (b *Backend) getProjectTasks(id string, _ map[string]any, _ []byte) (int, any) {
	if _, ok := b.projects[id]; !ok {
		return notFound("project")
	}
	tasks := make([]model.Task, 0)
	for _, t := range b.tasks {
		if t.ProjectID == id {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return http.StatusOK, tasks
}

func (b *Backend) createTask(id string, _ map[string]any, raw []byte) (int, any) {
	p, ok := b.projects[id]
	if !ok {
		return notFound("project")
	}
	var data model.NewTask
	if err := json.Unmarshal(raw, &data); err != nil || data.Title == "" {
		return http.StatusBadRequest, map[string]string{"error": "invalid task"}
	}
	b.nextID++
	task := model.Task{
		ID:          strconv.Itoa(b.nextID),
		Title:       data.Title,
		Description: data.Description,
		Priority:    model.ParsePriority(string(data.Priority)),
		AssigneeID:  data.AssigneeID,
		Assignee:    data.Assignee,
		ColumnID:    data.ColumnID,
		DueDate:     data.DueDate,
		CreatedAt:   time.Now().UTC(),
		ProjectID:   p.ID,
		ProjectName: p.Name,
	}
	b.tasks[task.ID] = task
	return http.StatusCreated, task
}

func (b *Backend) updateTeam(id string, body map[string]any, _ []byte) (int, any) {
	p, ok := b.projects[id]
	if !ok {
		return notFound("project")
	}
	p.TeamMembers = stringSlice(body["memberIds"])
	b.projects[id] = p
	return http.StatusNoContent, nil
}

func (b *Backend) updateColumns(id string, _ map[string]any, raw []byte) (int, any) {
	p, ok := b.projects[id]
	if !ok {
		return notFound("project")
	}
	var in struct {
		Columns []model.Column `json:"columns"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return http.StatusBadRequest, map[string]string{"error": err.Error()}
	}
	p.Columns = in.Columns
	b.projects[id] = p
	return http.StatusNoContent, nil
}

func (b *Backend) getLookups(string, map[string]any, []byte) (int, any) {
	out := append([]model.StatusLookup{}, b.lookups...)
	return http.StatusOK, out
}

func (b *Backend) getUsers(string, map[string]any, []byte) (int, any) {
	out := append([]model.User{}, b.users...)
	return http.StatusOK, out
}

func (b *Backend) createNotification(_ string, _ map[string]any, raw []byte) (int, any) {
	var n model.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return http.StatusBadRequest, map[string]string{"error": err.Error()}
	}
	b.notifications = append(b.notifications, n)
	return http.StatusCreated, nil
}

func (b *Backend) deleteTask(id string, _ map[string]any, _ []byte) (int, any) {
	_, ok := b.tasks[id]
	delete(b.tasks, id)
	return http.StatusOK, map[string]bool{"deleted": ok}
}

func (b *Backend) moveTask(id string, body map[string]any, _ []byte) (int, any) {
	t, ok := b.tasks[id]
	if !ok {
		return notFound("task")
	}
	t.ColumnID, _ = body["columnId"].(string)
	now := time.Now().UTC()
	t.LastMoved = &now
	b.tasks[id] = t
	return http.StatusNoContent, nil
}

func (b *Backend) assignTask(id string, body map[string]any, _ []byte) (int, any) {
	t, ok := b.tasks[id]
	if !ok {
		return notFound("task")
	}
	t.AssigneeID, _ = body["assigneeId"].(string)
	t.Assignee, _ = body["assigneeName"].(string)
	now := time.Now().UTC()
	t.LastMoved = &now
	b.tasks[id] = t
	return http.StatusNoContent, nil
}

func (b *Backend) unassignTask(id string, _ map[string]any, _ []byte) (int, any) {
	t, ok := b.tasks[id]
	if !ok {
		return notFound("task")
	}
	t.AssigneeID, t.Assignee = "", ""
	b.tasks[id] = t
	return http.StatusNoContent, nil
}

func (b *Backend) updateStatus(id string, body map[string]any, _ []byte) (int, any) {
	t, ok := b.tasks[id]
	if !ok {
		return notFound("task")
	}
	t.ColumnID, _ = body["status"].(string)
	b.tasks[id] = t
	return http.StatusNoContent, nil
}

func (b *Backend) completeTask(id string, _ map[string]any, _ []byte) (int, any) {
	t, ok := b.tasks[id]
	if !ok {
		return notFound("task")
	}
	if p, ok := b.projects[t.ProjectID]; ok {
		for _, c := range p.Columns {
			if c.IsTerminal {
				t.ColumnID = c.ID
				break
			}
		}
	}
	b.tasks[id] = t
	return http.StatusNoContent, nil
}

func stringSlice(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
