package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"quickplan/internal/observability/metrics"
	"quickplan/internal/plan"
	"quickplan/internal/web/templates"
	"quickplan/pkg/logger"
)

// Option 调整 Server 的可选参数。
type Option func(*Server)

// WithWebFolder 设置静态资源目录，为空时只返回 404 页面。
func WithWebFolder(folder string) Option {
	return func(s *Server) {
		s.webFolder = folder
	}
}

// WithCreateRateLimit 限制每个 IP 每分钟创建计划的次数，0 表示不限制。
func WithCreateRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.createRate = perMinute
	}
}

// WithTimeouts 设置读写与优雅关闭的超时，零值保持默认。
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// WithLogger 替换请求日志使用的 logger。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server 负责暴露计划页面与 htmx 片段。
type Server struct {
	addr      string
	plans     *plan.Service
	templates *templates.Renderer
	logger    *slog.Logger

	webFolder       string
	createRate      int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	router http.Handler
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, plans *plan.Service, renderer *templates.Renderer, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		plans:           plans,
		templates:       renderer,
		logger:          logger.Named("api"),
		readTimeout:     15 * time.Second,
		writeTimeout:    15 * time.Second,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s
}

// Handler 返回完整的路由，测试中直接使用。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(observeMetrics)
	r.Use(s.logRequests)

	r.Get("/", s.handleHome)
	r.Get("/about", s.handleAbout)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/plan", func(r chi.Router) {
		r.With(createRateLimit(s.createRate)).Post("/", s.handleCreatePlan)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/{slug}", s.handlePlan)
		r.Post("/{slug}", s.handleToggleDate)
		r.Delete("/{slug}", s.handleDeletePlan)
	})
	r.Post("/user/{slug}", s.handleCreateUser)

	r.NotFound(s.handleStatic)
	return r
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http server listening", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown", slog.Any("error", err))
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
