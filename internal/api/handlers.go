package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"quickplan/internal/calendar"
	xerrors "quickplan/internal/errors"
	"quickplan/internal/plan"
	"quickplan/internal/web/templates"
)

type pageData struct {
	Title string
}

type planPageData struct {
	Title    string
	Plan     *plan.Plan
	Users    []*plan.User
	Calendar *plan.Calendar
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, templates.PageHome, pageData{Title: "Quickplan"})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, templates.PageAbout, pageData{Title: "About | Quickplan"})
}

// handleHealth 在存储不可达时返回 503。
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.plans.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.Any("error", err),
		)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleCreatePlan 创建计划，并通过 HX-Redirect 让 htmx 跳转到计划页。
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	created, err := s.plans.CreatePlan(r.Context(), r.PostFormValue("new_plan"), r.PostFormValue("description"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("HX-Redirect", "plan/"+created.URLID)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month, err := strconv.Atoi(query.Get("month"))
	if err != nil {
		http.Error(w, "month must be a number", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(query.Get("year"))
	if err != nil {
		http.Error(w, "year must be a number", http.StatusBadRequest)
		return
	}
	cal, err := s.plans.Calendar(r.Context(), query.Get("plan_id"), time.Month(month), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderFragment(w, r, http.StatusOK, templates.FragmentCalendar, cal)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	p, err := s.plans.GetByURLID(r.Context(), slug)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeNotFound {
			s.renderNotFound(w, r)
			return
		}
		s.writeError(w, r, err)
		return
	}
	users, err := s.plans.Users(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cal, err := s.plans.CurrentCalendar(r.Context(), slug)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, templates.PagePlan, planPageData{
		Title:    p.Name + " | Quickplan",
		Plan:     p,
		Users:    users,
		Calendar: cal,
	})
}

// handleToggleDate 切换参与者的一天，返回该日期所在月份的日历片段。
func (s *Server) handleToggleDate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	slug := chi.URLParam(r, "slug")
	date, err := calendar.Parse(r.PostFormValue("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	user := r.PostFormValue("user")
	if user == "" {
		http.Error(w, "join the plan before selecting dates", http.StatusBadRequest)
		return
	}
	if _, err := s.plans.ToggleDate(r.Context(), slug, user, date); err != nil {
		s.writeError(w, r, err)
		return
	}
	cal, err := s.plans.Calendar(r.Context(), slug, date.Month, date.Year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderFragment(w, r, http.StatusOK, templates.FragmentCalendar, cal)
}

// handleDeletePlan 删除计划，htmx 随后跳回首页。
func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.plans.DeletePlan(r.Context(), chi.URLParam(r, "slug")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("HX-Redirect", "/")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	user, err := s.plans.JoinPlan(r.Context(), chi.URLParam(r, "slug"), r.PostFormValue("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.renderFragment(w, r, http.StatusCreated, templates.FragmentUserCreated, user)
}

// handleStatic 从静态目录返回文件，找不到时渲染 404 页面。
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.webFolder != "" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		path := filepath.Join(s.webFolder, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}
	}
	s.renderNotFound(w, r)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusNotFound, templates.PageNotFound, pageData{Title: "Not found | Quickplan"})
}

// writeError 把统一错误码映射为 HTTP 状态码，日志级别取自错误的严重程度。
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.logger.Log(r.Context(), xerrors.LogLevel(err), "request failed",
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.Int("status", status),
		slog.Any("error", err),
	)
	if status >= http.StatusInternalServerError {
		http.Error(w, http.StatusText(status), status)
		return
	}
	message := err.Error()
	if e, ok := xerrors.From(err); ok {
		message = e.Message()
	}
	http.Error(w, message, status)
}

func statusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := s.templates.RenderPage(&buf, page, data); err != nil {
		s.logger.ErrorContext(r.Context(), "render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, &buf)
}

func (s *Server) renderFragment(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.RenderFragment(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "render fragment", slog.String("fragment", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, &buf)
}

func writeHTML(w http.ResponseWriter, status int, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
