// Package bench drives a benchmark session: it starts a session, walks its
// tasks and submits the results. Each task carries the endpoint and token the
// agent's back-office client uses for that task only.
package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the benchmark coordinator.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient creates a coordinator client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// SessionParams describes a new session.
type SessionParams struct {
	Benchmark    string `json:"benchmark"`
	Workspace    string `json:"workspace"`
	Name         string `json:"name"`
	Architecture string `json:"architecture"`
}

// Session identifies a started session.
type Session struct {
	SessionID string `json:"session_id"`
}

// Task is one benchmark task, with the per-task credentials for the
// back-office service.
type Task struct {
	TaskID   string `json:"task_id"`
	SpecID   string `json:"spec_id"`
	Text     string `json:"task_text"`
	APIURL   string `json:"api_url"`
	APIToken string `json:"api_token"`
}

// Status is the coordinator's view of a session.
type Status struct {
	SessionID string `json:"session_id"`
	Tasks     []Task `json:"tasks"`
}

// Eval is the grader's verdict on a completed task.
type Eval struct {
	Score float64 `json:"score"`
	Logs  string  `json:"logs"`
}

// TaskResult is returned when a task completes.
type TaskResult struct {
	Eval *Eval `json:"eval,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

// StartSession registers a new session and returns its id.
func (c *Client) StartSession(ctx context.Context, params SessionParams) (Session, error) {
	var session Session
	err := c.post(ctx, "/sessions/start", params, &session)
	return session, err
}

// SessionStatus returns the session's task list.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (Status, error) {
	var status Status
	err := c.post(ctx, "/sessions/status", map[string]string{"session_id": sessionID}, &status)
	return status, err
}

// StartTask marks a task as running; the task's clock starts here.
func (c *Client) StartTask(ctx context.Context, taskID string) error {
	return c.post(ctx, "/tasks/start", map[string]string{"task_id": taskID}, nil)
}

// CompleteTask marks a task as finished and returns the grader's verdict,
// when grading is synchronous.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (TaskResult, error) {
	var result TaskResult
	err := c.post(ctx, "/tasks/complete", map[string]string{"task_id": taskID}, &result)
	return result, err
}

// SubmitSession finalizes the session for scoring.
func (c *Client) SubmitSession(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/sessions/submit", map[string]string{"session_id": sessionID}, nil)
}
