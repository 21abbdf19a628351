package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/complaint-map-console/internal/draw"
	"github.com/couchcryptid/complaint-map-console/internal/report"
	"github.com/couchcryptid/complaint-map-console/internal/session"
)

// Server exposes the map view websocket, the complaint report API, and
// health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	hub        *session.Hub
	complaints ComplaintAnalyzer
	renderer   *report.Renderer
	logger     *slog.Logger

	// baseCtx is cancelled on Shutdown so hijacked websocket connections,
	// which http.Server.Shutdown does not track, are closed too.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// Routes are the application handlers' collaborators. Complaints may be nil,
// in which case the complaint report route is not registered.
type Routes struct {
	Hub        *session.Hub
	Complaints ComplaintAnalyzer
	Renderer   *report.Renderer
}

// NewServer creates an HTTP server with /ws, /api/tools,
// /api/complaints/{id}/report, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, routes Routes, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		hub:        routes.Hub,
		complaints: routes.Complaints,
		renderer:   routes.Renderer,
		logger:     logger,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	if s.renderer == nil {
		s.renderer = report.NewRenderer()
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/tools", handleTools)
	if s.complaints != nil {
		r.Get("/api/complaints/{id}/report", s.handleComplaintReport)
	}
	if s.hub != nil {
		r.Get("/ws", s.handleWS)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes open map views and gracefully drains connections within
// the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, draw.Tools())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
