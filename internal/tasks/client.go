// Package tasks talks to the per-day task endpoints of the API.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/auth"
	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/executor"
	"github.com/tidwall/sjson"
)

// DateLayout is the wire format of task dates.
const DateLayout = "2006-01-02"

const (
	taskPath        = "task/"
	updateOrderPath = "task/update-order/"
)

// Task is a single to-do entry.
type Task struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt Timestamp `json:"created_at"`
}

// Client performs task CRUD requests with the session's credential attached.
type Client struct {
	api   *executor.Client
	store auth.CredentialStore
}

// NewClient creates a task client. Requests carry the bearer header built
// from store at call time.
func NewClient(api *executor.Client, store auth.CredentialStore) *Client {
	return &Client{api: api, store: store}
}

// ListByDate returns the tasks posted on date.
func (c *Client) ListByDate(ctx context.Context, date time.Time) ([]Task, error) {
	resp, err := c.do(ctx, http.MethodGet, taskPath, url.Values{"selected_date": {date.Format(DateLayout)}}, nil)
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", date.Format(DateLayout), err)
	}

	var list []Task
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return list, nil
}

// Create adds a task for date with the given priority.
func (c *Client) Create(ctx context.Context, text string, priority int, date time.Time) (*Task, error) {
	body, err := json.Marshal(map[string]any{
		"text":      text,
		"priority":  priority,
		"posted_at": date.Format(DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, taskPath, nil, body)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return decodeTask(resp.Body)
}

// SetCompleted marks a task done or not done.
func (c *Client) SetCompleted(ctx context.Context, id int, completed bool) (*Task, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "completed", completed)
	if err != nil {
		return nil, err
	}
	return c.patch(ctx, id, body)
}

// EditText replaces a task's text.
func (c *Client) EditText(ctx context.Context, id int, text string) (*Task, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "text", text)
	if err != nil {
		return nil, err
	}
	return c.patch(ctx, id, body)
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id int) error {
	if _, err := c.do(ctx, http.MethodDelete, taskItemPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// UpdateOrder sends new priorities keyed by task ID.
func (c *Client) UpdateOrder(ctx context.Context, priorities map[int]int) error {
	body := []byte(`{"priorities":{}}`)
	for id, priority := range priorities {
		var err error
		body, err = sjson.SetBytes(body, "priorities."+strconv.Itoa(id), priority)
		if err != nil {
			return fmt.Errorf("build priorities: %w", err)
		}
	}

	if _, err := c.do(ctx, http.MethodPatch, updateOrderPath, nil, body); err != nil {
		return fmt.Errorf("update task order: %w", err)
	}
	return nil
}

func (c *Client) patch(ctx context.Context, id int, body []byte) (*Task, error) {
	resp, err := c.do(ctx, http.MethodPatch, taskItemPath(id), nil, body)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return decodeTask(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*executor.Response, error) {
	header := auth.BuildAuthHeader(c.store)
	if body != nil {
		header.Set("Content-Type", "application/json")
	}
	return c.api.Do(ctx, &executor.Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
		Header: header,
	})
}

func taskItemPath(id int) string {
	return taskPath + strconv.Itoa(id) + "/"
}

func decodeTask(body []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}
