package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"projectdesk/console/internal/backend"
)

type UserDashboard struct {
	api      UserAPI
	log      *slog.Logger
	loc      *time.Location
	nowFunc  func() time.Time
	validate *validator.Validate

	mu       sync.Mutex
	mounted  bool
	me       *backend.User
	projects []backend.Project
	drafts   Drafts
	errors   map[int64]FieldErrors
}

type UserView struct {
	Me       *backend.User
	Projects []backend.Project
	Drafts   Drafts
	Errors   map[int64]FieldErrors
}

func (v UserView) CanSubmit(projectID int64) bool {
	return !v.Errors[projectID].Any()
}

func NewUserDashboard(api UserAPI, logger *slog.Logger, loc *time.Location) *UserDashboard {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &UserDashboard{
		api:      api,
		log:      logger,
		loc:      loc,
		nowFunc:  time.Now,
		validate: validator.New(),
		drafts:   make(Drafts),
		errors:   make(map[int64]FieldErrors),
	}
}

// Mount loads the profile and the project list, then seeds one empty draft
// per project.
func (d *UserDashboard) Mount(ctx context.Context, token string) error {
	me, err := d.api.Me(ctx, token)
	if err != nil {
		d.log.Error("failed to fetch current user", "error", err)
		return fmt.Errorf("fetch current user: %w", err)
	}
	d.mu.Lock()
	d.me = &me
	d.mounted = true
	d.mu.Unlock()

	projects, err := d.api.MyProjects(ctx, token)
	if err != nil {
		d.log.Error("failed to fetch projects", "error", err)
		return fmt.Errorf("fetch projects: %w", err)
	}
	drafts := make(Drafts, len(projects))
	for _, p := range projects {
		drafts[p.ID] = TaskDraft{}
	}

	d.mu.Lock()
	d.projects = projects
	d.drafts = drafts
	d.errors = make(map[int64]FieldErrors)
	d.mu.Unlock()
	return nil
}

func (d *UserDashboard) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

func (d *UserDashboard) View() UserView {
	d.mu.Lock()
	defer d.mu.Unlock()

	projects := make([]backend.Project, len(d.projects))
	for i, p := range d.projects {
		p.Tasks = append([]backend.Task(nil), p.Tasks...)
		projects[i] = p
	}
	drafts := make(Drafts, len(d.drafts))
	for id, v := range d.drafts {
		drafts[id] = v
	}
	errs := make(map[int64]FieldErrors, len(d.errors))
	for id, v := range d.errors {
		errs[id] = v
	}
	var me *backend.User
	if d.me != nil {
		cp := *d.me
		me = &cp
	}
	return UserView{Me: me, Projects: projects, Drafts: drafts, Errors: errs}
}

// Edit sets one field of a project's draft. Editing start_time or end_time
// revalidates that project's time pair; other drafts are untouched.
func (d *UserDashboard) Edit(projectID int64, field, value string) (FieldErrors, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasProjectLocked(projectID) {
		return FieldErrors{}, ErrUnknownProject
	}
	next, ok := d.drafts.Get(projectID).with(field, value)
	if !ok {
		return d.errors[projectID], ErrUnknownField
	}
	d.drafts[projectID] = next
	if field == FieldStartTime || field == FieldEndTime {
		d.errors[projectID] = ValidateTimes(next, d.nowFunc(), d.loc)
	}
	return d.errors[projectID], nil
}

// Replace applies a whole submitted form, revalidating the time pair when
// either time changed.
func (d *UserDashboard) Replace(projectID int64, draft TaskDraft) (FieldErrors, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasProjectLocked(projectID) {
		return FieldErrors{}, ErrUnknownProject
	}
	prev := d.drafts.Get(projectID)
	d.drafts[projectID] = draft
	if prev.StartTime != draft.StartTime || prev.EndTime != draft.EndTime {
		d.errors[projectID] = ValidateTimes(draft, d.nowFunc(), d.loc)
	}
	return d.errors[projectID], nil
}

func (d *UserDashboard) CanSubmit(projectID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.errors[projectID].Any()
}

// Submit posts the project's draft. It is refused while a field error is
// set or a field is empty. On success the returned task is appended to the
// project and the draft is reset; on failure the draft stays as typed.
func (d *UserDashboard) Submit(ctx context.Context, token string, projectID int64) (backend.Task, error) {
	d.mu.Lock()
	if !d.hasProjectLocked(projectID) {
		d.mu.Unlock()
		return backend.Task{}, ErrUnknownProject
	}
	if d.errors[projectID].Any() {
		d.mu.Unlock()
		return backend.Task{}, ErrDraftInvalid
	}
	draft := d.drafts.Get(projectID)
	d.mu.Unlock()

	if err := d.validate.Struct(draft); err != nil {
		return backend.Task{}, fmt.Errorf("%w: %w: %v", ErrDraftInvalid, ErrDraftIncomplete, err)
	}

	task, err := d.api.CreateTask(ctx, token, backend.NewTask{
		ProjectID:   projectID,
		Name:        draft.Name,
		Description: draft.Description,
		Duration:    draft.Duration,
		StartTime:   draft.StartTime,
		EndTime:     draft.EndTime,
	})
	if err != nil {
		d.log.Error("error adding task", "project_id", projectID, "error", err)
		return backend.Task{}, fmt.Errorf("create task: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.projects {
		if d.projects[i].ID == projectID {
			d.projects[i].Tasks = append(d.projects[i].Tasks, task)
		}
	}
	d.drafts[projectID] = TaskDraft{}
	delete(d.errors, projectID)
	return task, nil
}

func (d *UserDashboard) hasProjectLocked(projectID int64) bool {
	for _, p := range d.projects {
		if p.ID == projectID {
			return true
		}
	}
	return false
}
