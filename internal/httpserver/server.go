package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"projectdesk/console/internal/audit"
	"projectdesk/console/internal/config"
	"projectdesk/console/internal/dashboard"
	"projectdesk/console/internal/session"
)

type SessionManager interface {
	Current(ctx context.Context, clientID string) (session.Session, error)
	SignOut(ctx context.Context, clientID string, s session.Session) (session.Session, error)
}

type Authenticator interface {
	Login(ctx context.Context, clientID string, form dashboard.LoginForm) (session.Session, error)
}

type Workspaces interface {
	Get(clientID string) *dashboard.Workspace
	Forget(clientID string)
}

type AuditLogger interface {
	Record(e audit.Event) error
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type Deps struct {
	Sessions   SessionManager
	Auth       Authenticator
	Workspaces Workspaces
	Audit      AuditLogger
	Logger     *slog.Logger
	Cookie     CookieConfig
	Location   *time.Location
	// Ready reports whether the session store is reachable. Nil means ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) (*Server, error) {
	handler, err := NewHandler(deps)
	if err != nil {
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      loggingMiddleware(deps.Logger, handler),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

type handler struct {
	Deps
	pages *renderer
}

func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "projectdesk_client"
	}
	pages, err := newRenderer(deps.Location)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	h := &handler{Deps: deps, pages: pages}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "session store unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	h.registerPageHandlers(mux)
	h.registerLoginHandlers(mux)
	h.registerAdminHandlers(mux)
	h.registerUserHandlers(mux)

	return mux, nil
}

// clientID returns the browser's client id, issuing a new cookie when the
// request carries none or a malformed one.
func (h *handler) clientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(h.Cookie.Name); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	h.setClientID(w, id)
	return id
}

func (h *handler) setClientID(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    id,
		MaxAge:   clientCookieMaxAge,
		Path:     "/",
		Secure:   h.Cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

const clientCookieMaxAge = 30 * 24 * 60 * 60

// current loads the client's session. A store failure is logged and
// treated as signed out so the gate sends the browser to the login page.
func (h *handler) current(r *http.Request, clientID string) session.Session {
	s, err := h.Sessions.Current(r.Context(), clientID)
	if err != nil {
		h.Logger.Error("load session failed", "client_id", clientID, "error", err)
		return session.Session{}
	}
	return s
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// pathID parses the numeric id in paths shaped prefix/{id}/suffix.
func pathID(path, prefix, suffix string) (int64, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path || !strings.HasSuffix(rest, "/"+suffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(rest, "/"+suffix)
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			return
		}
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		)
	})
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey{})
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// auditReq stamps the event with request metadata and records it. Audit
// failures never change the response.
func (h *handler) auditReq(r *http.Request, clientID string, s session.Session, e audit.Event) {
	if h.Audit == nil {
		return
	}
	e.ClientID = clientID
	e.RequestID = requestIDFromContext(r.Context())
	if e.Role == "" && s.Authenticated() {
		e.Role = string(s.Role())
	}
	parts := []string{"ip=" + clientIP(r)}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		parts = append(parts, "ua="+ua)
	}
	if strings.TrimSpace(e.Detail) != "" {
		parts = append(parts, "detail="+strings.TrimSpace(e.Detail))
	}
	e.Detail = strings.Join(parts, " | ")
	if err := h.Audit.Record(e); err != nil {
		h.Logger.Warn("audit write failed", "action", e.Action, "error", err)
	}
}
