// Package backendtest runs an in-memory stand-in for the project API.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"projectdesk/console/internal/backend"
)

type Account struct {
	Password string
	Token    string
	User     backend.User
}

type AssignmentRequest struct {
	ProjectID  int64
	UserIDs    []int64
	RawUserIDs json.RawMessage
}

type Server struct {
	*httptest.Server

	mu           sync.Mutex
	accounts     map[string]Account
	projects     []backend.Project
	users        []backend.User
	userProjects map[string][]backend.Project
	details      map[int64][]backend.UserProjectTasks
	failures     map[string]int
	calls        map[string]int
	assignments  []AssignmentRequest
	created      []backend.NewTask
	nextTaskID   int64
}

func New() *Server {
	s := &Server{
		accounts:     make(map[string]Account),
		userProjects: make(map[string][]backend.Project),
		details:      make(map[int64][]backend.UserProjectTasks),
		failures:     make(map[string]int),
		calls:        make(map[string]int),
		nextTaskID:   1000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) AddAccount(email, password, token string, u backend.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = Account{Password: password, Token: token, User: u}
}

func (s *Server) SetActiveProjects(p []backend.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = p
}

func (s *Server) SetUsers(u []backend.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = u
}

func (s *Server) SetUserProjects(token string, p []backend.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userProjects[token] = p
}

func (s *Server) SetDetails(userID int64, d []backend.UserProjectTasks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[userID] = d
}

// FailOn makes every request to method+path answer with status.
func (s *Server) FailOn(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

func (s *Server) Assignments() []AssignmentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AssignmentRequest(nil), s.assignments...)
}

func (s *Server) CreatedTasks() []backend.NewTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.NewTask(nil), s.created...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	s.calls[key]++
	if status, ok := s.failures[key]; ok {
		writeJSON(w, status, map[string]string{"error": "forced failure"})
		return
	}

	if key == "POST /users/sign_in" {
		s.signIn(w, r)
		return
	}

	acct, ok := s.authorize(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/admin/"):
		if acct.User.Role != "admin" {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
		s.serveAdmin(w, r)
	case strings.HasPrefix(r.URL.Path, "/user/"):
		s.serveUser(w, r, acct)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		} `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	acct, ok := s.accounts[req.User.Email]
	if !ok || acct.Password != req.User.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, backend.SignInResult{Token: acct.Token, User: acct.User})
}

func (s *Server) authorize(r *http.Request) (Account, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	for _, acct := range s.accounts {
		if token != "" && acct.Token == token {
			return acct, true
		}
	}
	return Account{}, false
}

func (s *Server) serveAdmin(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/admin/active_projects":
		writeJSON(w, http.StatusOK, nonNil(s.projects))
	case r.Method == http.MethodGet && r.URL.Path == "/admin/users":
		writeJSON(w, http.StatusOK, nonNil(s.users))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/admin/user_projects_and_tasks/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/admin/user_projects_and_tasks/"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(s.details[id]))
	case r.Method == http.MethodPost && r.URL.Path == "/admin/update_project_users":
		var raw struct {
			UserIDs   json.RawMessage `json:"user_ids"`
			ProjectID int64           `json:"project_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
			return
		}
		var ids []int64
		_ = json.Unmarshal(raw.UserIDs, &ids)
		s.assignments = append(s.assignments, AssignmentRequest{ProjectID: raw.ProjectID, UserIDs: ids, RawUserIDs: raw.UserIDs})
		s.applyAssignment(raw.ProjectID, ids)
		writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) applyAssignment(projectID int64, ids []int64) {
	for i := range s.projects {
		if s.projects[i].ID != projectID {
			continue
		}
		assigned := make([]backend.User, 0, len(ids))
		for _, id := range ids {
			for _, u := range s.users {
				if u.ID == id {
					assigned = append(assigned, u)
				}
			}
		}
		s.projects[i].Users = assigned
	}
}

func (s *Server) serveUser(w http.ResponseWriter, r *http.Request, acct Account) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/user/me":
		writeJSON(w, http.StatusOK, acct.User)
	case r.Method == http.MethodGet && r.URL.Path == "/user/projects":
		writeJSON(w, http.StatusOK, nonNil(s.userProjects[acct.Token]))
	case r.Method == http.MethodPost && r.URL.Path == "/user/tasks":
		var req struct {
			Task backend.NewTask `json:"task"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
			return
		}
		s.created = append(s.created, req.Task)
		s.nextTaskID++
		task := backend.Task{
			ID:          s.nextTaskID,
			ProjectID:   req.Task.ProjectID,
			Name:        req.Task.Name,
			Description: req.Task.Description,
			Duration:    backend.Duration(req.Task.Duration),
			StartTime:   req.Task.StartTime,
			EndTime:     req.Task.EndTime,
		}
		projects := s.userProjects[acct.Token]
		for i := range projects {
			if projects[i].ID == req.Task.ProjectID {
				projects[i].Tasks = append(projects[i].Tasks, task)
			}
		}
		writeJSON(w, http.StatusCreated, task)
	default:
		http.NotFound(w, r)
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
