package httpserver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"projectdesk/console/internal/backend"
	"projectdesk/console/internal/dashboard"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static
var embeddedStatic embed.FS

var staticFS = mustSub(embeddedStatic, "web/static")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// pageData is what every page template receives; only the fields of the
// page being rendered are set.
type pageData struct {
	Title  string
	Error  string
	Email  string
	Notice *dashboard.Notice
	Admin  *dashboard.AdminView
	User   *dashboard.UserView
}

type renderer struct {
	pages map[string]*template.Template
}

var pageNames = []string{"login", "admin", "user", "notfound"}

func newRenderer(loc *time.Location) (*renderer, error) {
	funcs := template.FuncMap{
		"formatTime": func(raw string) string {
			return dashboard.FormatTime(raw, loc)
		},
		"firstTask": func(tasks []backend.AssignedTask) backend.AssignedTask {
			if len(tasks) == 0 {
				return backend.AssignedTask{}
			}
			return tasks[0]
		},
		"displayName": func(u *backend.User) string {
			if u == nil {
				return ""
			}
			if u.Name != "" {
				return u.Name
			}
			return u.Email
		},
	}

	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "web/templates/layout.html", "web/templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s page: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *renderer) render(w http.ResponseWriter, status int, name string, data pageData) {
	t, ok := r.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
