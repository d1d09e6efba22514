package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Error is returned for any non-2xx answer. Callers treat it like any other
// failure; it exists for logging.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient builds a client for the project API. A zero timeout leaves
// requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https, got %q", baseURL)
	}
	return &Client{baseURL: u, http: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	body := map[string]any{
		"user": map[string]string{"email": email, "password": password},
	}
	var out SignInResult
	if err := c.do(ctx, http.MethodPost, "/users/sign_in", "", body, &out); err != nil {
		return SignInResult{}, err
	}
	if out.Token == "" {
		return SignInResult{}, fmt.Errorf("sign in: response carried no token")
	}
	return out, nil
}

func (c *Client) ActiveProjects(ctx context.Context, token string) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, "/admin/active_projects", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Users(ctx context.Context, token string) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/admin/users", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserProjectsAndTasks(ctx context.Context, token string, userID int64) ([]UserProjectTasks, error) {
	var out []UserProjectTasks
	path := "/admin/user_projects_and_tasks/" + strconv.FormatInt(userID, 10)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProjectUsers replaces the project's assignment. An empty userIDs
// unassigns everyone and is sent as an empty list.
func (c *Client) UpdateProjectUsers(ctx context.Context, token string, projectID int64, userIDs []int64) error {
	ids := make([]int64, 0, len(userIDs))
	ids = append(ids, userIDs...)
	body := struct {
		UserIDs   []int64 `json:"user_ids"`
		ProjectID int64   `json:"project_id"`
	}{UserIDs: ids, ProjectID: projectID}
	return c.do(ctx, http.MethodPost, "/admin/update_project_users", token, body, nil)
}

func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/user/me", token, nil, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

func (c *Client) MyProjects(ctx context.Context, token string) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, "/user/projects", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, token string, in NewTask) (Task, error) {
	body := map[string]NewTask{"task": in}
	var out Task
	if err := c.do(ctx, http.MethodPost, "/user/tasks", token, body, &out); err != nil {
		return Task{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
