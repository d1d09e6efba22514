package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"projectdesk/console/internal/audit"
	"projectdesk/console/internal/backend"
	"projectdesk/console/internal/backend/backendtest"
	"projectdesk/console/internal/dashboard"
	"projectdesk/console/internal/session"
)

type fakeAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeAudit) Record(e audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, string(e.Action)+":"+e.Outcome)
	}
	return out
}

type swapHandler struct {
	mu sync.RWMutex
	h  http.Handler
}

func (s *swapHandler) set(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = h
}

func (s *swapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	h.ServeHTTP(w, r)
}

type harness struct {
	backend *backendtest.Server
	store   *session.MemoryStore
	audit   *fakeAudit
	handler *swapHandler
	console *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{backend: backendtest.New(), store: session.NewMemoryStore(), audit: &fakeAudit{}}
	t.Cleanup(h.backend.Close)

	h.backend.AddAccount("ann@example.com", "admin-pw", "admin-token", backend.User{ID: 1, Name: "Ann", Email: "ann@example.com", Role: "admin"})
	h.backend.AddAccount("bo@example.com", "user-pw", "user-token", backend.User{ID: 2, Name: "Bo", Email: "bo@example.com", Role: "user"})
	h.backend.SetUsers([]backend.User{
		{ID: 2, Name: "Bo", Email: "bo@example.com", Role: "user"},
		{ID: 3, Name: "Cy", Email: "cy@example.com", Role: "user"},
	})
	h.backend.SetActiveProjects([]backend.Project{
		{ID: 7, Name: "Apollo", StartDate: "2026-10-01", Duration: "30", Users: []backend.User{{ID: 2, Name: "Bo", Role: "user"}}},
	})
	h.backend.SetUserProjects("user-token", []backend.Project{{ID: 10, Name: "Gemini"}})

	h.handler = &swapHandler{h: loggingMiddleware(discardLogger(), h.newHandler(t))}
	h.console = httptest.NewServer(h.handler)
	t.Cleanup(h.console.Close)
	return h
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHandler builds a console over the harness's store and backend. Calling
// it twice simulates a process restart: view state is lost, sessions stay.
func (h *harness) newHandler(t *testing.T) http.Handler {
	t.Helper()
	client, err := backend.NewClient(h.backend.URL, 0)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	log := discardLogger()
	manager, err := session.NewManager(h.store, log)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	handler, err := NewHandler(Deps{
		Sessions:   manager,
		Auth:       dashboard.NewAuthenticator(client, manager, log),
		Workspaces: dashboard.NewRegistry(client, client, log, time.UTC),
		Audit:      h.audit,
		Logger:     log,
		Cookie:     CookieConfig{Name: "pd_client"},
		Location:   time.UTC,
	})
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}
	return handler
}

type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func (h *harness) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &browser{t: t, base: h.console.URL, c: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

type page struct {
	status   int
	location string
	body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.c.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, b.base+path, nil)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postJSON(path string, payload any) page {
	b.t.Helper()
	raw, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, b.base+path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *browser) login(email, password string) page {
	b.t.Helper()
	return b.post("/login", url.Values{"email": {email}, "password": {password}})
}

func (b *browser) setClientCookie(value string) {
	u, _ := url.Parse(b.base)
	b.c.Jar.SetCookies(u, []*http.Cookie{{Name: "pd_client", Value: value, Path: "/"}})
}

func (b *browser) clientCookie() string {
	u, _ := url.Parse(b.base)
	for _, c := range b.c.Jar.Cookies(u) {
		if c.Name == "pd_client" {
			return c.Value
		}
	}
	return ""
}

func expectRedirect(t *testing.T, p page, target string) {
	t.Helper()
	if p.status != http.StatusSeeOther || p.location != target {
		t.Fatalf("expected 303 to %s, got %d to %q", target, p.status, p.location)
	}
}

func TestHealthz(t *testing.T) {
	handler, err := NewHandler(Deps{})
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	loggingMiddleware(discardLogger(), handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header to be set")
	}
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	handler, err := NewHandler(Deps{Ready: func(context.Context) error { return errors.New("redis down") }})
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestStaticAssetsServed(t *testing.T) {
	handler, err := NewHandler(Deps{})
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/draft.js", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "can_submit") {
		t.Fatalf("expected draft script, got %d", rec.Code)
	}
}

func TestUnauthenticatedRoutes(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	expectRedirect(t, b.get("/"), "/login")
	expectRedirect(t, b.get("/admin"), "/login")
	expectRedirect(t, b.get("/user"), "/login")
	expectRedirect(t, b.post("/admin/refresh", nil), "/login")

	if p := b.get("/login"); p.status != http.StatusOK || !strings.Contains(p.body, `action="/login"`) {
		t.Fatalf("expected login page, got %d", p.status)
	}
	if p := b.get("/reports"); p.status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", p.status)
	}
}

func TestLoginFailureShowsMessage(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	p := b.login("ann@example.com", "wrong")
	if p.status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", p.status)
	}
	if !strings.Contains(p.body, dashboard.InvalidCredentialsMessage) {
		t.Fatalf("expected invalid credentials message in body")
	}
	expectRedirect(t, b.get("/admin"), "/login")

	p = b.login("", "")
	if p.status != http.StatusBadRequest || !strings.Contains(p.body, dashboard.MissingCredentialsMessage) {
		t.Fatalf("expected missing credentials message, got %d", p.status)
	}
	if h.backend.Calls(http.MethodPost, "/users/sign_in") != 1 {
		t.Fatalf("empty form must not reach the backend")
	}
	if got := h.audit.actions(); len(got) != 2 || got[0] != "session.login:failed" {
		t.Fatalf("unexpected audit trail: %v", got)
	}
}

func TestLoginIssuesNewClientID(t *testing.T) {
	h := newHarness(t)

	planted := uuid.NewString()
	victim := h.browser(t)
	victim.setClientCookie(planted)
	if p := victim.get("/login"); p.status != http.StatusOK {
		t.Fatalf("expected login page, got %d", p.status)
	}
	expectRedirect(t, victim.login("ann@example.com", "admin-pw"), "/admin")

	issued := victim.clientCookie()
	if issued == "" || issued == planted {
		t.Fatalf("expected a new client id after login, got %q", issued)
	}
	if p := victim.get("/admin"); p.status != http.StatusOK {
		t.Fatalf("expected admin dashboard for the new id, got %d", p.status)
	}

	attacker := h.browser(t)
	attacker.setClientCookie(planted)
	expectRedirect(t, attacker.get("/admin"), "/login")
	if _, err := h.store.Load(context.Background(), planted); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected nothing stored under the planted id, got %v", err)
	}
}

func TestAdminFlowSavesEmptySelection(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	expectRedirect(t, b.login("ann@example.com", "admin-pw"), "/admin")
	expectRedirect(t, b.get("/"), "/admin")
	expectRedirect(t, b.get("/login"), "/admin")
	expectRedirect(t, b.get("/user"), "/login")

	p := b.get("/admin")
	if p.status != http.StatusOK {
		t.Fatalf("expected admin dashboard, got %d", p.status)
	}
	if !strings.Contains(p.body, "Apollo") || !strings.Contains(p.body, "Bo - user") {
		t.Fatalf("expected project with assigned users on dashboard")
	}

	expectRedirect(t, b.post("/admin/projects/7/save", url.Values{"selection": {"1"}}), "/admin#project-7")

	got := h.backend.Assignments()
	if len(got) != 1 {
		t.Fatalf("expected one assignment request, got %d", len(got))
	}
	if got[0].ProjectID != 7 || string(got[0].RawUserIDs) != "[]" {
		t.Fatalf("expected user_ids [] for project 7, got %s for %d", got[0].RawUserIDs, got[0].ProjectID)
	}

	p = b.get("/admin")
	if !strings.Contains(p.body, dashboard.AssignmentSavedMessage) {
		t.Fatalf("expected success notice after save")
	}
	if p = b.get("/admin"); strings.Contains(p.body, dashboard.AssignmentSavedMessage) {
		t.Fatalf("notice must be shown only once")
	}
}

func TestAdminSelectionThenSave(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("ann@example.com", "admin-pw")
	b.get("/admin")

	expectRedirect(t, b.post("/admin/projects/7/selection", url.Values{"user_ids": {"3", "2", "3"}}), "/admin#project-7")
	expectRedirect(t, b.post("/admin/projects/7/save", nil), "/admin#project-7")

	got := h.backend.Assignments()
	if len(got) != 1 || len(got[0].UserIDs) != 2 || got[0].UserIDs[0] != 3 || got[0].UserIDs[1] != 2 {
		t.Fatalf("unexpected assignment: %+v", got)
	}
	if p := b.post("/admin/projects/99/save", url.Values{"selection": {"1"}}); p.status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", p.status)
	}
}

func TestAdminSaveFailureShowsNotice(t *testing.T) {
	h := newHarness(t)
	h.backend.FailOn(http.MethodPost, "/admin/update_project_users", http.StatusInternalServerError)
	b := h.browser(t)
	b.login("ann@example.com", "admin-pw")

	b.post("/admin/projects/7/save", url.Values{"selection": {"1"}, "user_ids": {"2"}})
	if p := b.get("/admin"); !strings.Contains(p.body, dashboard.AssignmentFailedMessage) {
		t.Fatalf("expected failure notice")
	}
	actions := h.audit.actions()
	if actions[len(actions)-1] != "project.assign_users:failed" {
		t.Fatalf("expected failed assignment audit, got %v", actions)
	}
}

func TestAdminUserDetailsAreCached(t *testing.T) {
	h := newHarness(t)
	h.backend.SetDetails(3, []backend.UserProjectTasks{{
		ProjectName: "Mercury",
		Tasks: []backend.AssignedTask{
			{TaskStartTime: "2026-10-20T09:30:00Z", TaskEndTime: "2026-10-20T11:00:00Z"},
			{TaskStartTime: "2026-10-21T09:30:00Z", TaskEndTime: "2026-10-21T11:00:00Z"},
		},
	}})
	b := h.browser(t)
	b.login("ann@example.com", "admin-pw")

	expectRedirect(t, b.post("/admin/users/3/details", nil), "/admin#user-3")
	b.post("/admin/users/3/details", nil)

	p := b.get("/admin")
	if !strings.Contains(p.body, "Mercury") || !strings.Contains(p.body, "9:30 AM, Oct 20") {
		t.Fatalf("expected detail row with formatted first task")
	}
	if n := h.backend.Calls(http.MethodGet, "/admin/user_projects_and_tasks/3"); n != 1 {
		t.Fatalf("expected details fetched once, got %d", n)
	}
}

func TestUserFlowCreatesTask(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	expectRedirect(t, b.login("bo@example.com", "user-pw"), "/user")
	expectRedirect(t, b.get("/admin"), "/login")

	p := b.get("/user")
	if p.status != http.StatusOK || !strings.Contains(p.body, "Logged in as: Bo") {
		t.Fatalf("expected user dashboard, got %d", p.status)
	}
	if !strings.Contains(p.body, "No tasks added yet.") {
		t.Fatalf("expected empty task list")
	}

	now := time.Now().UTC()
	start := now.Add(time.Hour).Format("2006-01-02T15:04")
	end := now.Add(2 * time.Hour).Format("2006-01-02T15:04")
	expectRedirect(t, b.post("/user/projects/10/tasks", url.Values{
		"name":        {"Write docs"},
		"description": {"User guide"},
		"duration":    {"60"},
		"start_time":  {start},
		"end_time":    {end},
	}), "/user#project-10")

	created := h.backend.CreatedTasks()
	if len(created) != 1 || created[0].ProjectID != 10 || created[0].StartTime != start {
		t.Fatalf("unexpected created tasks: %+v", created)
	}

	p = b.get("/user")
	if !strings.Contains(p.body, "<td>Write docs</td>") {
		t.Fatalf("expected new task listed")
	}
	if !strings.Contains(p.body, `name="name" value=""`) || !strings.Contains(p.body, `name="start_time" value=""`) {
		t.Fatalf("expected draft reset after submit")
	}
}

func TestUserPastStartDisablesSubmit(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("bo@example.com", "user-pw")
	b.get("/user")

	past := time.Now().UTC().Add(-time.Hour).Format("2006-01-02T15:04")
	p := b.postJSON("/user/projects/10/draft", draftEdit{Field: "start_time", Value: past})
	if p.status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", p.status, p.body)
	}
	var state draftState
	if err := json.Unmarshal([]byte(p.body), &state); err != nil {
		t.Fatalf("decode draft state: %v", err)
	}
	if state.Errors.StartTime != dashboard.StartInPastMessage || state.CanSubmit {
		t.Fatalf("expected past start error with submit disabled, got %+v", state)
	}

	page := b.get("/user")
	if !strings.Contains(page.body, dashboard.StartInPastMessage) || !strings.Contains(page.body, "disabled") {
		t.Fatalf("expected error text and disabled submit on page")
	}

	b.post("/user/projects/10/tasks", url.Values{
		"name": {"Late"}, "description": {"d"}, "duration": {"5"},
		"start_time": {past}, "end_time": {time.Now().UTC().Add(time.Hour).Format("2006-01-02T15:04")},
	})
	if n := len(h.backend.CreatedTasks()); n != 0 {
		t.Fatalf("past start must not be submitted, got %d tasks", n)
	}
}

func TestUserIncompleteSubmitShowsNotice(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("bo@example.com", "user-pw")

	now := time.Now().UTC()
	expectRedirect(t, b.post("/user/projects/10/tasks", url.Values{
		"name": {"Write docs"}, "description": {""}, "duration": {"an hour"},
		"start_time": {now.Add(time.Hour).Format("2006-01-02T15:04")},
		"end_time":   {now.Add(2 * time.Hour).Format("2006-01-02T15:04")},
	}), "/user#project-10")

	if n := len(h.backend.CreatedTasks()); n != 0 {
		t.Fatalf("incomplete draft must not be submitted, got %d tasks", n)
	}
	p := b.get("/user")
	if !strings.Contains(p.body, dashboard.DraftIncompleteMessage) {
		t.Fatalf("expected incomplete draft notice")
	}
	if !strings.Contains(p.body, `name="name" value="Write docs"`) {
		t.Fatalf("expected draft kept as typed")
	}
	if p = b.get("/user"); strings.Contains(p.body, dashboard.DraftIncompleteMessage) {
		t.Fatalf("notice must be shown once")
	}
}

func TestDraftEndpointRejects(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)

	if p := b.postJSON("/user/projects/10/draft", draftEdit{Field: "name", Value: "x"}); p.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user session, got %d", p.status)
	}

	b.login("bo@example.com", "user-pw")
	if p := b.postJSON("/user/projects/99/draft", draftEdit{Field: "name", Value: "x"}); p.status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", p.status)
	}
	if p := b.postJSON("/user/projects/10/draft", draftEdit{Field: "priority", Value: "x"}); p.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", p.status)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("ann@example.com", "admin-pw")

	all, _ := h.store.All(context.Background())
	if len(all) != 1 {
		t.Fatalf("expected one stored session, got %d", len(all))
	}

	expectRedirect(t, b.post("/logout", nil), "/login")
	expectRedirect(t, b.get("/admin"), "/login")

	all, _ = h.store.All(context.Background())
	if len(all) != 0 {
		t.Fatalf("expected stored session removed, got %d", len(all))
	}
	actions := h.audit.actions()
	if actions[len(actions)-1] != "session.logout:success" {
		t.Fatalf("expected logout audit, got %v", actions)
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	b.login("bo@example.com", "user-pw")

	h.handler.set(loggingMiddleware(discardLogger(), h.newHandler(t)))

	p := b.get("/user")
	if p.status != http.StatusOK || !strings.Contains(p.body, "Gemini") {
		t.Fatalf("expected user dashboard after restart, got %d", p.status)
	}
}
