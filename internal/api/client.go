// Package api is the HTTP client for the remote task and project backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/model"
)

var ErrNotDeleted = errors.New("task was not deleted")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// MovePosition is the target of a move request.
type MovePosition struct {
	ColumnID string `json:"columnId"`
	Position int    `json:"position"`
}

// Client talks JSON to the backend. The zero value is not usable; use New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// New returns a client for baseURL. Every request is bounded by timeout.
func New(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	var p model.Project
	err := c.do(ctx, "get project", http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, &p)
	return p, err
}

func (c *Client) GetProjectTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	var tasks []model.Task
	err := c.do(ctx, "get project tasks", http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/tasks", nil, &tasks)
	return tasks, err
}

func (c *Client) GetStatusLookups(ctx context.Context) ([]model.StatusLookup, error) {
	var lookups []model.StatusLookup
	err := c.do(ctx, "get status lookups", http.MethodGet, "/lookups/task-statuses", nil, &lookups)
	return lookups, err
}

func (c *Client) MoveTask(ctx context.Context, taskID string, pos MovePosition) error {
	return c.do(ctx, "move task", http.MethodPost, taskPath(taskID, "move"), pos, nil)
}

func (c *Client) AssignTask(ctx context.Context, taskID, assigneeID, assigneeName string) error {
	body := struct {
		AssigneeID   string `json:"assigneeId"`
		AssigneeName string `json:"assigneeName"`
	}{assigneeID, assigneeName}
	return c.do(ctx, "assign task", http.MethodPost, taskPath(taskID, "assign"), body, nil)
}

func (c *Client) UnassignTask(ctx context.Context, taskID string) error {
	return c.do(ctx, "unassign task", http.MethodDelete, taskPath(taskID, "assign"), nil, nil)
}

func (c *Client) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	body := struct {
		Status string `json:"status"`
	}{status}
	return c.do(ctx, "update task status", http.MethodPatch, taskPath(taskID, "status"), body, nil)
}

func (c *Client) CompleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, "complete task", http.MethodPost, taskPath(taskID, "complete"), nil, nil)
}

func (c *Client) CreateProjectTask(ctx context.Context, data model.NewTask) (model.Task, error) {
	var task model.Task
	err := c.do(ctx, "create project task", http.MethodPost, "/projects/"+url.PathEscape(data.ProjectID)+"/tasks", data, &task)
	return task, err
}

// DeleteProjectTask reports whether the backend deleted the task.
func (c *Client) DeleteProjectTask(ctx context.Context, taskID string) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, "delete project task", http.MethodDelete, taskPath(taskID, ""), nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

func (c *Client) GetAllUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := c.do(ctx, "get users", http.MethodGet, "/users", nil, &users)
	return users, err
}

func (c *Client) UpdateProjectTeamMembers(ctx context.Context, projectID string, memberIDs []string) error {
	body := struct {
		MemberIDs []string `json:"memberIds"`
	}{memberIDs}
	return c.do(ctx, "update team members", http.MethodPut, "/projects/"+url.PathEscape(projectID)+"/team", body, nil)
}

func (c *Client) UpdateProjectColumns(ctx context.Context, projectID string, columns []model.Column) error {
	body := struct {
		Columns []model.Column `json:"columns"`
	}{columns}
	return c.do(ctx, "update project columns", http.MethodPut, "/projects/"+url.PathEscape(projectID)+"/columns", body, nil)
}

func (c *Client) CreateNotification(ctx context.Context, n model.Notification) error {
	return c.do(ctx, "create notification", http.MethodPost, "/notifications", n, nil)
}

func taskPath(taskID, action string) string {
	p := "/tasks/" + url.PathEscape(taskID)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("op", op).
			Str("path", path).
			Msg("request failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
