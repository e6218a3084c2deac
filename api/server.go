// Package api exposes the controller's diagnostics over HTTP: scheduler
// state, the schedule table, the process image, tick jitter and Prometheus
// metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/stbs/core/logger"
	"github.com/kilianp07/stbs/core/metrics"
	"github.com/kilianp07/stbs/core/rtdb"
	"github.com/kilianp07/stbs/core/scheduler"
	"github.com/kilianp07/stbs/core/worker"
)

// SchedulerView is the read side of the scheduler used by the API.
type SchedulerView interface {
	Describe() scheduler.Status
	TableView() []scheduler.TickView
	Print(w io.Writer) error
}

// SnapshotReader reads the process image.
type SnapshotReader interface {
	Snapshot() (rtdb.Snapshot, error)
}

// JitterView summarises recent tick lateness.
type JitterView interface {
	Summary() metrics.JitterSummary
}

// WorkerView reports per-task execution statistics.
type WorkerView interface {
	Stats() []worker.Stats
}

// Config holds the listen address.
type Config struct {
	Address string `json:"address" koanf:"address"`
}

// SetDefaults listens on :8080.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

// Server is the diagnostics HTTP server.
type Server struct {
	router   chi.Router
	log      logger.Logger
	sched    SchedulerView
	io       SnapshotReader
	jitter   JitterView
	workers  WorkerView
	gatherer prometheus.Gatherer
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithIO exposes the process image on /api/io.
func WithIO(r SnapshotReader) Option { return func(s *Server) { s.io = r } }

// WithJitter exposes the jitter summary on /api/jitter.
func WithJitter(j JitterView) Option { return func(s *Server) { s.jitter = j } }

// WithWorkers exposes worker statistics on /api/workers.
func WithWorkers(w WorkerView) Option { return func(s *Server) { s.workers = w } }

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option { return func(s *Server) { s.gatherer = g } }

// New creates a Server with all routes registered.
func New(sched SchedulerView, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      logger.OrNop(log),
		sched:    sched,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/scheduler", s.handleScheduler)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/schedule.txt", s.handleScheduleText)
		r.Get("/io", s.handleIO)
		r.Get("/jitter", s.handleJitter)
		r.Get("/workers", s.handleWorkers)
	})
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infof("diagnostics API listening on %s", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.sched.Describe()
	status := http.StatusOK
	if st.State == scheduler.StateFailed.String() {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]string{"status": http.StatusText(status), "state": st.State})
}

// GET /api/scheduler
func (s *Server) handleScheduler(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.sched.Describe())
}

// GET /api/schedule
func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	view := s.sched.TableView()
	if view == nil {
		view = []scheduler.TickView{}
	}
	respondJSON(w, http.StatusOK, view)
}

// GET /api/schedule.txt
func (s *Server) handleScheduleText(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.sched.Print(w); err != nil {
		s.log.Errorf("print schedule: %v", err)
	}
}

// GET /api/io
func (s *Server) handleIO(w http.ResponseWriter, _ *http.Request) {
	if s.io == nil {
		respondError(w, http.StatusNotFound, "process image not available")
		return
	}
	snap, err := s.io.Snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GET /api/jitter
func (s *Server) handleJitter(w http.ResponseWriter, _ *http.Request) {
	if s.jitter == nil {
		respondError(w, http.StatusNotFound, "jitter window not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.jitter.Summary())
}

// GET /api/workers
func (s *Server) handleWorkers(w http.ResponseWriter, _ *http.Request) {
	if s.workers == nil {
		respondError(w, http.StatusNotFound, "worker pool not available")
		return
	}
	respondJSON(w, http.StatusOK, s.workers.Stats())
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
