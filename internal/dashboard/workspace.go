package dashboard

import (
	"log/slog"
	"sync"
	"time"
)

// Workspace is the view state of one browser client. It is created lazily
// and dropped on logout, so drafts never outlive the session.
type Workspace struct {
	Admin *AdminDashboard
	User  *UserDashboard

	mu     sync.Mutex
	notice *Notice
}

// Flash stores a notice to be shown once on the next render.
func (w *Workspace) Flash(n Notice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notice = &n
}

func (w *Workspace) TakeFlash() (Notice, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notice == nil {
		return Notice{}, false
	}
	n := *w.notice
	w.notice = nil
	return n, true
}

type Registry struct {
	admin AdminAPI
	user  UserAPI
	log   *slog.Logger
	loc   *time.Location

	mu    sync.Mutex
	items map[string]*Workspace
}

func NewRegistry(admin AdminAPI, user UserAPI, logger *slog.Logger, loc *time.Location) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		admin: admin,
		user:  user,
		log:   logger,
		loc:   loc,
		items: make(map[string]*Workspace),
	}
}

func (r *Registry) Get(clientID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.items[clientID]
	if !ok {
		w = &Workspace{
			Admin: NewAdminDashboard(r.admin, r.log.With("view", "admin")),
			User:  NewUserDashboard(r.user, r.log.With("view", "user"), r.loc),
		}
		r.items[clientID] = w
	}
	return w
}

func (r *Registry) Forget(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, clientID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
