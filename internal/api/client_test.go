package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/api"
	"github.com/nissyi-gh/flowboard/internal/api/apitest"
	"github.com/nissyi-gh/flowboard/internal/model"
)

func newClient(t *testing.T) (*api.Client, *apitest.Backend) {
	t.Helper()

	backend := apitest.Demo()
	srv := backend.Start()
	t.Cleanup(srv.Close)

	return api.New(srv.URL, "secret", 2*time.Second, zerolog.Nop()), backend
}

func TestGetProjectTasks(t *testing.T) {
	c, _ := newClient(t)

	tasks, err := c.GetProjectTasks(context.Background(), apitest.DemoProjectID)
	if err != nil {
		t.Fatalf("GetProjectTasks() err=%v, want nil", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("len=%d, want 4", len(tasks))
	}
	if tasks[0].Title != "Design dashboard" {
		t.Fatalf("tasks[0].Title=%q, want %q", tasks[0].Title, "Design dashboard")
	}
}

func TestGetProject_NotFound(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.GetProject(context.Background(), "999")
	if err == nil {
		t.Fatalf("GetProject() err=nil, want 404")
	}
	if !api.IsNotFound(err) {
		t.Fatalf("IsNotFound(%v)=false, want true", err)
	}
}

func TestMoveTask(t *testing.T) {
	c, backend := newClient(t)

	err := c.MoveTask(context.Background(), "11", api.MovePosition{ColumnID: "done", Position: 1})
	if err != nil {
		t.Fatalf("MoveTask() err=%v, want nil", err)
	}

	task, _ := backend.Task("11")
	if task.ColumnID != "done" {
		t.Fatalf("ColumnID=%q, want done", task.ColumnID)
	}

	calls := backend.Calls()
	last := calls[len(calls)-1]
	if last.Op != "move task" || last.TaskID != "11" {
		t.Fatalf("last call=%+v, want move task for 11", last)
	}
	if pos, _ := last.Body["position"].(float64); pos != 1 {
		t.Fatalf("position=%v, want 1", last.Body["position"])
	}
}

func TestAssignAndUnassign(t *testing.T) {
	c, backend := newClient(t)
	ctx := context.Background()

	if err := c.AssignTask(ctx, "13", "u2", "Ben Ortiz"); err != nil {
		t.Fatalf("AssignTask() err=%v", err)
	}
	task, _ := backend.Task("13")
	if task.AssigneeID != "u2" || task.Assignee != "Ben Ortiz" {
		t.Fatalf("assignee=%q/%q, want u2/Ben Ortiz", task.AssigneeID, task.Assignee)
	}

	if err := c.UnassignTask(ctx, "13"); err != nil {
		t.Fatalf("UnassignTask() err=%v", err)
	}
	task, _ = backend.Task("13")
	if task.AssigneeID != "" {
		t.Fatalf("AssigneeID=%q, want empty", task.AssigneeID)
	}
}

func TestCreateAndDeleteTask(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	created, err := c.CreateProjectTask(ctx, model.NewTask{
		Title:     "Write tests",
		Priority:  model.PriorityHigh,
		ColumnID:  "todo",
		ProjectID: apitest.DemoProjectID,
	})
	if err != nil {
		t.Fatalf("CreateProjectTask() err=%v", err)
	}
	if created.ID == "" || created.ProjectName != "Dashboard rollout" {
		t.Fatalf("created=%+v, want id and project name", created)
	}

	deleted, err := c.DeleteProjectTask(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteProjectTask() = %v, %v; want true, nil", deleted, err)
	}

	deleted, err = c.DeleteProjectTask(ctx, created.ID)
	if err != nil || deleted {
		t.Fatalf("second DeleteProjectTask() = %v, %v; want false, nil", deleted, err)
	}
}

func TestStatusError(t *testing.T) {
	c, backend := newClient(t)
	backend.Fail("complete task", http.StatusInternalServerError)

	err := c.CompleteTask(context.Background(), "11")
	var se *api.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v, want *api.StatusError", err)
	}
	if se.Code != http.StatusInternalServerError || se.Op != "complete task" {
		t.Fatalf("StatusError=%+v, want 500 complete task", se)
	}
}

func TestBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := api.New(srv.URL+"/", "tok", time.Second, zerolog.Nop())
	if _, err := c.GetAllUsers(context.Background()); err != nil {
		t.Fatalf("GetAllUsers() err=%v", err)
	}
	if got != "Bearer tok" {
		t.Fatalf("Authorization=%q, want %q", got, "Bearer tok")
	}
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{bad json"))
	}))
	defer srv.Close()

	c := api.New(srv.URL, "", time.Second, zerolog.Nop())
	if _, err := c.GetStatusLookups(context.Background()); err == nil {
		t.Fatalf("GetStatusLookups() err=nil, want decode error")
	}
}

func TestUpdateProjectColumnsAndTeam(t *testing.T) {
	c, backend := newClient(t)
	ctx := context.Background()

	cols := []model.Column{{ID: "a", Title: "A"}, {ID: "b", Title: "B", Position: 1, IsTerminal: true}}
	if err := c.UpdateProjectColumns(ctx, apitest.DemoProjectID, cols); err != nil {
		t.Fatalf("UpdateProjectColumns() err=%v", err)
	}
	if err := c.UpdateProjectTeamMembers(ctx, apitest.DemoProjectID, []string{"u3"}); err != nil {
		t.Fatalf("UpdateProjectTeamMembers() err=%v", err)
	}

	p, _ := backend.Project(apitest.DemoProjectID)
	if len(p.Columns) != 2 || !p.Columns[1].IsTerminal {
		t.Fatalf("columns=%+v, want 2 with terminal b", p.Columns)
	}
	if len(p.TeamMembers) != 1 || p.TeamMembers[0] != "u3" {
		t.Fatalf("team=%v, want [u3]", p.TeamMembers)
	}
}
