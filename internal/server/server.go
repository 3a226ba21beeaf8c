// Package server exposes the article store as a JSON API: public reads for
// the site and a token-gated admin surface for editing.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"life-reality/internal/auth"
	"life-reality/internal/cache"
	"life-reality/internal/metrics"
	"life-reality/internal/notify"
	"life-reality/internal/optimize"
	"life-reality/internal/store"
	"life-reality/internal/worker"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Authenticator checks admin credentials and mints tokens.
type Authenticator interface {
	Verify(ctx context.Context, username, password string) (bool, error)
	IssueToken(username string) (string, time.Time, error)
	ParseToken(raw string) (*auth.Claims, error)
}

// Cache stores rendered GET responses tagged by collection. Begin is taken
// before the response is built so Set can refuse results a write overtook.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Begin(ctx context.Context, tags ...notify.Collection) cache.Stamp
	Set(ctx context.Context, key string, body []byte, stamp cache.Stamp)
}

// JobQueue accepts optimization jobs and reports their state.
type JobQueue interface {
	Enqueue(ctx context.Context, req optimize.Request, articleID string) (worker.Job, error)
	Get(ctx context.Context, id uuid.UUID) (worker.Job, bool, error)
}

type Server struct {
	store     store.Store
	auth      Authenticator
	logger    *zap.Logger
	router    *mux.Router
	server    *http.Server
	cache     Cache
	queue     JobQueue
	optimizer optimize.Optimizer
	metrics   *metrics.Metrics
}

type Option func(*Server)

// WithCache enables response caching for public reads.
func WithCache(c Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithQueue makes optimization asynchronous.
func WithQueue(q JobQueue) Option {
	return func(s *Server) { s.queue = q }
}

// WithOptimizer runs optimization inline when no queue is configured.
func WithOptimizer(o optimize.Optimizer) Option {
	return func(s *Server) { s.optimizer = o }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func NewServer(st store.Store, authn Authenticator, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		store:  st,
		auth:   authn,
		logger: logger,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	s.router.Use(s.recoverer, s.instrument)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/home", s.handleHome).Methods("GET")
	api.HandleFunc("/articles", s.handleListArticles).Methods("GET")
	api.HandleFunc("/articles/slug/{slug}", s.handleArticleBySlug).Methods("GET")
	api.HandleFunc("/articles/{id}", s.handleArticleByID).Methods("GET")
	api.HandleFunc("/categories", s.handleListCategories).Methods("GET")
	api.HandleFunc("/categories/{id}", s.handleCategoryByID).Methods("GET")
	api.HandleFunc("/admin/login", s.handleLogin).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/articles", s.handleCreateArticle).Methods("POST")
	admin.HandleFunc("/articles/{id}", s.handleUpdateArticle).Methods("PUT")
	admin.HandleFunc("/articles/{id}", s.handleDeleteArticle).Methods("DELETE")
	admin.HandleFunc("/categories", s.handleCreateCategory).Methods("POST")
	admin.HandleFunc("/categories/{id}", s.handleUpdateCategory).Methods("PUT")
	admin.HandleFunc("/categories/{id}", s.handleDeleteCategory).Methods("DELETE")
	admin.HandleFunc("/slug", s.handleSlug).Methods("POST")
	admin.HandleFunc("/optimize", s.handleOptimize).Methods("POST")
	admin.HandleFunc("/optimize/{id}", s.handleOptimizeStatus).Methods("GET")
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = s.httpServer(addr)
	errCh := make(chan error, 1)
	go func() { errCh <- s.serve() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
	}
}

func (s *Server) serve() error {
	s.logger.Info("Web server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListCategories(r.Context()); err != nil {
		s.logger.Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
