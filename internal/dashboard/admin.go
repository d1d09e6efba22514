package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"projectdesk/console/internal/backend"
)

const (
	AssignmentSavedMessage  = "Users updated successfully!"
	AssignmentFailedMessage = "Failed to update users."
)

type Notice struct {
	Success bool
	Message string
}

// Selections maps a project id to the user ids picked for it. A project
// without an entry has an empty selection.
type Selections map[int64][]int64

func (s Selections) Get(projectID int64) []int64 {
	return append(make([]int64, 0, len(s[projectID])), s[projectID]...)
}

func (s Selections) Set(projectID int64, userIDs []int64) {
	s[projectID] = append(make([]int64, 0, len(userIDs)), userIDs...)
}

func (s Selections) Has(projectID, userID int64) bool {
	for _, id := range s[projectID] {
		if id == userID {
			return true
		}
	}
	return false
}

type AdminDashboard struct {
	api AdminAPI
	log *slog.Logger

	mu         sync.Mutex
	mounted    bool
	projects   []backend.Project
	users      []backend.User
	selections Selections
	details    map[int64][]backend.UserProjectTasks
}

// AdminView is a copy of the dashboard state for rendering.
type AdminView struct {
	Projects   []backend.Project
	Users      []backend.User
	Selections Selections
	Details    map[int64][]backend.UserProjectTasks
}

// Expanded reports whether a user's detail rows have been fetched, even if
// there were none.
func (v AdminView) Expanded(userID int64) bool {
	_, ok := v.Details[userID]
	return ok
}

func NewAdminDashboard(api AdminAPI, logger *slog.Logger) *AdminDashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminDashboard{
		api:        api,
		log:        logger,
		selections: make(Selections),
		details:    make(map[int64][]backend.UserProjectTasks),
	}
}

// Mount loads projects then users and seeds each project's selection from
// its current assignment. Failures are logged and leave earlier data in
// place.
func (d *AdminDashboard) Mount(ctx context.Context, token string) error {
	projects, err := d.api.ActiveProjects(ctx, token)
	if err != nil {
		d.log.Error("failed to fetch active projects", "error", err)
		return fmt.Errorf("fetch active projects: %w", err)
	}

	selections := make(Selections, len(projects))
	for _, p := range projects {
		ids := make([]int64, 0, len(p.Users))
		for _, u := range p.Users {
			ids = append(ids, u.ID)
		}
		selections[p.ID] = ids
	}

	d.mu.Lock()
	d.projects = projects
	d.selections = selections
	d.details = make(map[int64][]backend.UserProjectTasks)
	d.mounted = true
	d.mu.Unlock()

	users, err := d.api.Users(ctx, token)
	if err != nil {
		d.log.Error("failed to fetch users", "error", err)
		return fmt.Errorf("fetch users: %w", err)
	}
	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
	return nil
}

func (d *AdminDashboard) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

func (d *AdminDashboard) View() AdminView {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := make(Selections, len(d.selections))
	for id := range d.selections {
		sel[id] = d.selections.Get(id)
	}
	details := make(map[int64][]backend.UserProjectTasks, len(d.details))
	for id, v := range d.details {
		details[id] = v
	}
	return AdminView{
		Projects:   append([]backend.Project(nil), d.projects...),
		Users:      append([]backend.User(nil), d.users...),
		Selections: sel,
		Details:    details,
	}
}

// Select replaces the local selection for a project without saving it.
func (d *AdminDashboard) Select(projectID int64, userIDs []int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasProjectLocked(projectID) {
		return ErrUnknownProject
	}
	d.selections.Set(projectID, userIDs)
	return nil
}

// Save sends the project's full selection, empty included, and reports the
// outcome as a notice. Nothing is retried.
func (d *AdminDashboard) Save(ctx context.Context, token string, projectID int64) Notice {
	d.mu.Lock()
	known := d.hasProjectLocked(projectID)
	ids := d.selections.Get(projectID)
	d.mu.Unlock()

	if !known {
		return Notice{Message: AssignmentFailedMessage}
	}
	if err := d.api.UpdateProjectUsers(ctx, token, projectID, ids); err != nil {
		d.log.Error("failed to update project users", "project_id", projectID, "error", err)
		return Notice{Message: AssignmentFailedMessage}
	}
	return Notice{Success: true, Message: AssignmentSavedMessage}
}

// Expand loads a user's projects and tasks once and keeps them for the
// lifetime of this dashboard.
func (d *AdminDashboard) Expand(ctx context.Context, token string, userID int64) error {
	d.mu.Lock()
	_, cached := d.details[userID]
	d.mu.Unlock()
	if cached {
		return nil
	}

	rows, err := d.api.UserProjectsAndTasks(ctx, token, userID)
	if err != nil {
		d.log.Error("failed to fetch user projects and tasks", "user_id", userID, "error", err)
		return fmt.Errorf("fetch user projects and tasks: %w", err)
	}
	if rows == nil {
		rows = []backend.UserProjectTasks{}
	}
	d.mu.Lock()
	d.details[userID] = rows
	d.mu.Unlock()
	return nil
}

func (d *AdminDashboard) hasProjectLocked(projectID int64) bool {
	for _, p := range d.projects {
		if p.ID == projectID {
			return true
		}
	}
	return false
}
