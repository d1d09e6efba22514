package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"projectdesk/console/internal/audit"
	"projectdesk/console/internal/dashboard"
	"projectdesk/console/internal/gate"
)

func (h *handler) registerAdminHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/admin/projects/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		clientID, s, ok := h.guard(w, r, gate.RouteAdmin, gate.ViewAdmin)
		if !ok {
			return
		}
		ws := h.workspace(r, clientID, s)

		id, isSelection := pathID(r.URL.Path, "/admin/projects/", "selection")
		if !isSelection {
			var isSave bool
			if id, isSave = pathID(r.URL.Path, "/admin/projects/", "save"); !isSave {
				http.NotFound(w, r)
				return
			}
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		// An empty multi-select posts no values, so the form carries a marker
		// to tell "nothing selected" apart from "selection not sent".
		if isSelection || r.PostForm.Has("selection") {
			ids, err := parseIDs(r.PostForm["user_ids"])
			if err != nil {
				http.Error(w, "invalid user id", http.StatusBadRequest)
				return
			}
			if err := ws.Admin.Select(id, ids); err != nil {
				if errors.Is(err, dashboard.ErrUnknownProject) {
					http.NotFound(w, r)
					return
				}
				http.Error(w, "select users failed", http.StatusInternalServerError)
				return
			}
		}

		if !isSelection {
			notice := ws.Admin.Save(r.Context(), s.Token(), id)
			ws.Flash(notice)
			outcome := audit.OutcomeSuccess
			if !notice.Success {
				outcome = audit.OutcomeFailure
			}
			h.auditReq(r, clientID, s, audit.Event{
				Action:  audit.ActionAssignUsers,
				Target:  fmt.Sprintf("project:%d", id),
				Outcome: outcome,
				Detail:  "user_ids=" + joinIDs(ws.Admin.View().Selections.Get(id)),
			})
		}
		redirect(w, r, fmt.Sprintf("%s#project-%d", gate.RouteAdmin, id))
	})

	mux.HandleFunc("/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		clientID, s, ok := h.guard(w, r, gate.RouteAdmin, gate.ViewAdmin)
		if !ok {
			return
		}
		id, ok := pathID(r.URL.Path, "/admin/users/", "details")
		if !ok {
			http.NotFound(w, r)
			return
		}
		// A failed fetch is logged by the dashboard and simply not expanded.
		_ = h.workspace(r, clientID, s).Admin.Expand(r.Context(), s.Token(), id)
		redirect(w, r, fmt.Sprintf("%s#user-%d", gate.RouteAdmin, id))
	})

	mux.HandleFunc("/admin/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		clientID, s, ok := h.guard(w, r, gate.RouteAdmin, gate.ViewAdmin)
		if !ok {
			return
		}
		_ = h.Workspaces.Get(clientID).Admin.Mount(r.Context(), s.Token())
		redirect(w, r, gate.RouteAdmin)
	})
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	seen := make(map[int64]bool, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse user id %q: %w", v, err)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
