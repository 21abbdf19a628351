package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

// Hub tracks the mounted sessions of the process.
type Hub struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewHub creates an empty hub.
func NewHub(cfg Config, deps Deps) *Hub {
	return &Hub{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		sessions: make(map[string]*Session),
	}
}

// Open creates and mounts a session writing to sink. It returns nil once
// the hub is shut down.
func (h *Hub) Open(ctx context.Context, sink Sink) *Session {
	s := New(uuid.NewString(), h.cfg, h.deps, sink)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.Unmount()
		return nil
	}
	h.sessions[s.ID()] = s
	h.mu.Unlock()

	h.metrics.ActiveSessions.Inc()
	s.Mount(ctx)
	return s
}

// Close unmounts and forgets the session. Unknown IDs are ignored.
func (h *Hub) Close(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	s.Unmount()
	h.metrics.ActiveSessions.Dec()
}

// Len returns the number of mounted sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown unmounts every session and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.Close(id)
	}
	h.logger.Info("all map views unmounted", "count", len(ids))
}
