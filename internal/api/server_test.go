package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	xerrors "quickplan/internal/errors"
	"quickplan/internal/plan"
	"quickplan/internal/web/templates"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *plan.Service) {
	t.Helper()
	svc := plan.NewService(plan.NewMemoryStore())
	renderer, err := templates.New(templates.Options{})
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return NewServer(":0", svc, renderer, opts...), svc
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestCreatePlanRedirects(t *testing.T) {
	server, svc := newTestServer(t)

	rec := postForm(t, server.Handler(), "/plan", url.Values{"new_plan": {"Summer trip"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusCreated)
	}
	redirect := rec.Header().Get("HX-Redirect")
	if !strings.HasPrefix(redirect, "plan/") || len(redirect) != len("plan/")+8 {
		t.Fatalf("unexpected redirect: %q", redirect)
	}

	created, err := svc.GetByURLID(context.Background(), strings.TrimPrefix(redirect, "plan/"))
	if err != nil {
		t.Fatalf("lookup created plan: %v", err)
	}
	if created.Name != "Summer trip" {
		t.Fatalf("unexpected plan name: %q", created.Name)
	}
}

func TestCreatePlanValidation(t *testing.T) {
	server, _ := newTestServer(t)

	cases := map[string]string{
		"too long": strings.Repeat("a", plan.MaxNameLength+1),
		"empty":    "   ",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postForm(t, server.Handler(), "/plan", url.Values{"new_plan": {value}})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}

	rec := postForm(t, server.Handler(), "/plan", url.Values{"new_plan": {strings.Repeat("a", plan.MaxNameLength)}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("a name of exactly %d characters must be accepted, got %d", plan.MaxNameLength, rec.Code)
	}
}

func TestCreatePlanRateLimit(t *testing.T) {
	server, _ := newTestServer(t, WithCreateRateLimit(1))

	if rec := postForm(t, server.Handler(), "/plan", url.Values{"new_plan": {"one"}}); rec.Code != http.StatusCreated {
		t.Fatalf("first request: got %d", rec.Code)
	}
	rec := postForm(t, server.Handler(), "/plan", url.Values{"new_plan": {"two"}})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestPlanPage(t *testing.T) {
	server, svc := newTestServer(t)
	created, err := svc.CreatePlan(context.Background(), "Board games", "")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	rec := get(t, server.Handler(), "/plan/"+created.URLID)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Board games") || !strings.Contains(body, `id="calendar"`) {
		t.Fatalf("plan page is missing content: %s", body)
	}
}

func TestUnknownPlanRendersNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	for _, path := range []string{"/plan/Zz9Zz9Zz", "/plan/not-a-url-id", "/does/not/exist"} {
		rec := get(t, server.Handler(), path)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "404") {
			t.Fatalf("%s: expected not found page", path)
		}
	}
}

func TestJoinAndToggleDate(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()
	created, err := svc.CreatePlan(ctx, "Dinner", "")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	userPath := "/user/" + created.URLID

	rec := postForm(t, server.Handler(), userPath, url.Values{"username": {"ann"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("join: got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), ">ann</option>") {
		t.Fatalf("unexpected fragment: %s", rec.Body.String())
	}

	if rec := postForm(t, server.Handler(), userPath, url.Values{"username": {"ann"}}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate join: expected %d, got %d", http.StatusConflict, rec.Code)
	}
	long := strings.Repeat("b", plan.MaxNameLength+1)
	if rec := postForm(t, server.Handler(), userPath, url.Values{"username": {long}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("long name: expected %d, got %d", http.StatusBadRequest, rec.Code)
	}

	users, err := svc.Users(ctx, created.URLID)
	if err != nil || len(users) != 1 {
		t.Fatalf("list users: %v (%d users)", err, len(users))
	}

	planPath := "/plan/" + created.URLID
	form := url.Values{"date": {"2024-02-14"}, "user": {users[0].WebID}}
	rec = postForm(t, server.Handler(), planPath, form)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "February 2024") || !strings.Contains(body, `title="ann"`) {
		t.Fatalf("calendar fragment does not show the selection: %s", body)
	}

	rec = postForm(t, server.Handler(), planPath, form)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), `title="ann"`) {
		t.Fatalf("second toggle should clear the selection")
	}

	if rec := postForm(t, server.Handler(), planPath, url.Values{"date": {"14/02/2024"}, "user": {users[0].WebID}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if rec := postForm(t, server.Handler(), planPath, url.Values{"date": {"2024-02-14"}, "user": {"nobody"}}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestCalendarFragment(t *testing.T) {
	server, svc := newTestServer(t)
	created, err := svc.CreatePlan(context.Background(), "Calendar", "")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	rec := get(t, server.Handler(), "/plan/calendar?month=2&year=2027&plan_id="+created.URLID)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "February 2027") {
		t.Fatalf("unexpected fragment: %s", rec.Body.String())
	}

	cases := map[string]int{
		"/plan/calendar?month=x&year=2027&plan_id=" + created.URLID:  http.StatusBadRequest,
		"/plan/calendar?month=13&year=2027&plan_id=" + created.URLID: http.StatusBadRequest,
		"/plan/calendar?month=2&year=2027&plan_id=Zz9Zz9Zz":          http.StatusNotFound,
	}
	for path, want := range cases {
		if rec := get(t, server.Handler(), path); rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rec.Code)
		}
	}
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "static"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "static", "output.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatalf("write css: %v", err)
	}
	server, _ := newTestServer(t, WithWebFolder(dir))

	rec := get(t, server.Handler(), "/static/output.css")
	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Fatalf("unexpected static response: %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(t, server.Handler(), "/static/missing.css"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing file: expected %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := get(t, server.Handler(), "/static"); rec.Code != http.StatusNotFound {
		t.Fatalf("directory: expected %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server.Handler(), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "req-42" {
		t.Fatalf("expected request id to be propagated, got %q", got)
	}

	rec = get(t, server.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `handler="/healthz"`) {
		t.Fatalf("metrics do not include the health route")
	}
}

type unreachableStore struct {
	*plan.MemoryStore
}

func (unreachableStore) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestHealthReportsStoreFailure(t *testing.T) {
	renderer, err := templates.New(templates.Options{})
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	svc := plan.NewService(unreachableStore{MemoryStore: plan.NewMemoryStore()})
	server := NewServer(":0", svc, renderer, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec := get(t, server.Handler(), "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestDeletePlan(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, "Dinner", "")
	if err != nil {
		t.Fatalf("CreatePlan returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/plan/"+p.URLID, nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("HX-Redirect") != "/" {
		t.Fatalf("unexpected delete response: %d %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}
	if _, err := svc.GetByURLID(ctx, p.URLID); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected plan to be gone, got %v", err)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/plan/"+p.URLID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d for second delete, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestWithContextRejectsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	withContext(ctx, http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestErrorLogLevelFollowsSeverity(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	server, svc := newTestServer(t, WithLogger(l))
	created, err := svc.CreatePlan(context.Background(), "Levels", "")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	path := "/user/" + created.URLID
	postForm(t, server.Handler(), path, url.Values{"username": {"ann"}})
	logs.Reset()
	if rec := postForm(t, server.Handler(), path, url.Values{"username": {"ann"}}); rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}

	var failure string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, `msg="request failed"`) {
			failure = line
		}
	}
	if !strings.Contains(failure, "level=INFO") || !strings.Contains(failure, "code=CONFLICT") {
		t.Fatalf("client errors should be logged at info with their code, got %q", failure)
	}
}
