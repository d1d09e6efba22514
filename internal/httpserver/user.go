package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"projectdesk/console/internal/audit"
	"projectdesk/console/internal/dashboard"
	"projectdesk/console/internal/gate"
)

type draftEdit struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type draftState struct {
	Errors    dashboard.FieldErrors `json:"errors"`
	CanSubmit bool                  `json:"can_submit"`
}

func (h *handler) registerUserHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/user/projects/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if id, ok := pathID(r.URL.Path, "/user/projects/", "draft"); ok {
			h.editDraft(w, r, id)
			return
		}
		if id, ok := pathID(r.URL.Path, "/user/projects/", "tasks"); ok {
			h.submitTask(w, r, id)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/user/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		clientID, s, ok := h.guard(w, r, gate.RouteUser, gate.ViewUser)
		if !ok {
			return
		}
		_ = h.Workspaces.Get(clientID).User.Mount(r.Context(), s.Token())
		redirect(w, r, gate.RouteUser)
	})
}

// editDraft applies one field edit sent by the page script and answers with
// the project's current field errors.
func (h *handler) editDraft(w http.ResponseWriter, r *http.Request, projectID int64) {
	clientID := h.clientID(w, r)
	s := h.current(r, clientID)
	if d := gate.Resolve(gate.RouteUser, s); d.View != gate.ViewUser {
		writeError(w, http.StatusUnauthorized, "not signed in as user")
		return
	}

	var req draftEdit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dash := h.workspace(r, clientID, s).User
	fe, err := dash.Edit(projectID, strings.TrimSpace(req.Field), req.Value)
	if err != nil {
		switch {
		case errors.Is(err, dashboard.ErrUnknownProject):
			writeError(w, http.StatusNotFound, "project not found")
		case errors.Is(err, dashboard.ErrUnknownField):
			writeError(w, http.StatusBadRequest, "unknown field")
		default:
			writeError(w, http.StatusInternalServerError, "edit draft failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, draftState{Errors: fe, CanSubmit: !fe.Any()})
}

func (h *handler) submitTask(w http.ResponseWriter, r *http.Request, projectID int64) {
	clientID, s, ok := h.guard(w, r, gate.RouteUser, gate.ViewUser)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	ws := h.workspace(r, clientID, s)
	dash := ws.User
	back := fmt.Sprintf("%s#project-%d", gate.RouteUser, projectID)

	draft := dashboard.TaskDraft{
		Name:        r.PostForm.Get(dashboard.FieldName),
		Description: r.PostForm.Get(dashboard.FieldDescription),
		Duration:    r.PostForm.Get(dashboard.FieldDuration),
		StartTime:   r.PostForm.Get(dashboard.FieldStartTime),
		EndTime:     r.PostForm.Get(dashboard.FieldEndTime),
	}
	if _, err := dash.Replace(projectID, draft); err != nil {
		http.NotFound(w, r)
		return
	}

	task, err := dash.Submit(r.Context(), s.Token(), projectID)
	target := fmt.Sprintf("project:%d", projectID)
	switch {
	case errors.Is(err, dashboard.ErrDraftIncomplete):
		ws.Flash(dashboard.Notice{Message: dashboard.DraftIncompleteMessage})
	case errors.Is(err, dashboard.ErrDraftInvalid):
		// Time errors are rendered next to the inputs on the redirect.
	case err != nil:
		h.auditReq(r, clientID, s, audit.Event{Action: audit.ActionCreateTask, Target: target, Outcome: audit.OutcomeFailure, Detail: err.Error()})
	default:
		h.auditReq(r, clientID, s, audit.Event{Action: audit.ActionCreateTask, Target: target, Detail: fmt.Sprintf("task_id=%d", task.ID)})
	}
	redirect(w, r, back)
}
