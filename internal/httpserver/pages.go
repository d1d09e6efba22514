package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"projectdesk/console/internal/audit"
	"projectdesk/console/internal/dashboard"
	"projectdesk/console/internal/gate"
	"projectdesk/console/internal/session"
)

func (h *handler) registerPageHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		clientID := h.clientID(w, r)
		s := h.current(r, clientID)

		route := strings.TrimSuffix(r.URL.Path, "/")
		if route == "" {
			route = gate.RouteRoot
		}
		d := gate.Resolve(route, s)
		if d.IsRedirect() {
			redirect(w, r, d.Redirect)
			return
		}

		switch d.View {
		case gate.ViewLogin:
			h.pages.render(w, http.StatusOK, "login", pageData{Title: "Login"})
		case gate.ViewAdmin:
			h.showAdmin(w, r, clientID, s)
		case gate.ViewUser:
			h.showUser(w, r, clientID, s)
		default:
			h.pages.render(w, http.StatusNotFound, "notfound", pageData{Title: "Not found"})
		}
	})
}

func (h *handler) showAdmin(w http.ResponseWriter, r *http.Request, clientID string, s session.Session) {
	ws := h.workspace(r, clientID, s)
	view := ws.Admin.View()
	data := pageData{Title: "Admin Dashboard", Admin: &view}
	if n, ok := ws.TakeFlash(); ok {
		data.Notice = &n
	}
	h.pages.render(w, http.StatusOK, "admin", data)
}

func (h *handler) showUser(w http.ResponseWriter, r *http.Request, clientID string, s session.Session) {
	ws := h.workspace(r, clientID, s)
	view := ws.User.View()
	data := pageData{Title: "User Dashboard", User: &view}
	if n, ok := ws.TakeFlash(); ok {
		data.Notice = &n
	}
	h.pages.render(w, http.StatusOK, "user", data)
}

// workspace returns the client's view state, loading the dashboard of the
// session's role on first use. Load failures are logged by the dashboard and
// leave the view empty.
func (h *handler) workspace(r *http.Request, clientID string, s session.Session) *dashboard.Workspace {
	ws := h.Workspaces.Get(clientID)
	switch {
	case s.Is(session.RoleAdmin) && !ws.Admin.Mounted():
		_ = ws.Admin.Mount(r.Context(), s.Token())
	case s.Is(session.RoleUser) && !ws.User.Mounted():
		_ = ws.User.Mount(r.Context(), s.Token())
	}
	return ws
}

func (h *handler) registerLoginHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		clientID := h.clientID(w, r)
		s := h.current(r, clientID)

		d := gate.Resolve(gate.RouteLogin, s)
		if d.IsRedirect() {
			redirect(w, r, d.Redirect)
			return
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			h.pages.render(w, http.StatusOK, "login", pageData{Title: "Login"})
		case http.MethodPost:
			h.login(w, r, clientID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		clientID := h.clientID(w, r)
		s := h.current(r, clientID)

		if _, err := h.Sessions.SignOut(r.Context(), clientID, s); err != nil {
			h.Logger.Error("sign out failed", "client_id", clientID, "error", err)
			h.auditReq(r, clientID, s, audit.Event{Action: audit.ActionLogout, Outcome: audit.OutcomeFailure, Detail: err.Error()})
			http.Error(w, "sign out failed", http.StatusInternalServerError)
			return
		}
		h.Workspaces.Forget(clientID)
		h.auditReq(r, clientID, s, audit.Event{Action: audit.ActionLogout})
		redirect(w, r, gate.RouteLogin)
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request, clientID string) {
	if err := r.ParseForm(); err != nil {
		h.pages.render(w, http.StatusBadRequest, "login", pageData{Title: "Login", Error: dashboard.InvalidCredentialsMessage})
		return
	}
	form := dashboard.LoginForm{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}

	// Every sign in is stored under a newly issued client id; the id the
	// request arrived with is never promoted.
	fresh := uuid.NewString()
	s, err := h.Auth.Login(r.Context(), fresh, form)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, dashboard.ErrMissingCredentials) {
			status = http.StatusBadRequest
		}
		h.auditReq(r, clientID, s, audit.Event{Actor: strings.TrimSpace(form.Email), Action: audit.ActionLogin, Outcome: audit.OutcomeFailure, Detail: err.Error()})
		h.pages.render(w, status, "login", pageData{Title: "Login", Error: dashboard.LoginMessage(err), Email: form.Email})
		return
	}

	h.setClientID(w, fresh)
	if _, err := h.Sessions.SignOut(r.Context(), clientID, session.Session{}); err != nil {
		h.Logger.Warn("drop previous client session failed", "client_id", clientID, "error", err)
	}
	h.Workspaces.Forget(clientID)
	h.auditReq(r, fresh, s, audit.Event{Actor: strings.TrimSpace(form.Email), Action: audit.ActionLogin, Detail: "previous_client_id=" + clientID})
	redirect(w, r, gate.Home(s))
}

// guard resolves route for the request's session and answers with the
// gate's redirect when the view is not allowed. POSTs that fail the guard
// are redirected the same way a page load would be.
func (h *handler) guard(w http.ResponseWriter, r *http.Request, route string, want gate.View) (string, session.Session, bool) {
	clientID := h.clientID(w, r)
	s := h.current(r, clientID)
	d := gate.Resolve(route, s)
	if d.View != want {
		target := d.Redirect
		if target == "" {
			target = gate.RouteLogin
		}
		redirect(w, r, target)
		return "", session.Session{}, false
	}
	return clientID, s, true
}
