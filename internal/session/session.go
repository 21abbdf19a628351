// Package session composes one mounted map view: its overlays, address
// label, analysis lifecycle, panel, and report modal.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/complaint-map-console/internal/analysis"
	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/draw"
	"github.com/couchcryptid/complaint-map-console/internal/layersync"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
	"github.com/couchcryptid/complaint-map-console/internal/panel"
	"github.com/couchcryptid/complaint-map-console/internal/report"
)

var (
	// ErrNoReport is returned when the report is requested without a
	// displayed analysis result.
	ErrNoReport = errors.New("no analysis result to report")
	// ErrUnknownEvent is returned for unrecognized event types.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrUnmounted is returned for events that arrive after Unmount.
	ErrUnmounted = errors.New("session unmounted")
)

// Config holds the per-view settings shared by all sessions.
type Config struct {
	Style    domain.MapStyle
	Engine   layersync.EngineConfig
	Analysis analysis.Config
}

// Deps are the collaborators shared by all sessions. Geocoder and Publisher
// may be nil.
type Deps struct {
	Source    layersync.OverlaySource
	Analyzer  analysis.Analyzer
	Geocoder  domain.Geocoder
	Publisher analysis.Publisher
	Renderer  *report.Renderer
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Session is one mounted map view.
type Session struct {
	id      string
	cfg     Config
	sink    Sink
	logger  *slog.Logger
	render  *report.Renderer
	surface *layersync.MemorySurface
	engine  *layersync.Engine
	lc      *analysis.Lifecycle

	ctx    context.Context
	cancel context.CancelFunc

	// emitMu serializes frames; state read under it is current when sent.
	emitMu sync.Mutex

	mu        sync.Mutex
	modal     *report.Modal
	mounted   bool
	unmounted bool
}

// New builds an unmounted session that writes frames to sink.
func New(id string, cfg Config, deps Deps, sink Sink) *Session {
	logger := deps.Logger.With("session_id", id)
	s := &Session{
		id:      id,
		cfg:     cfg,
		sink:    sink,
		logger:  logger,
		render:  deps.Renderer,
		surface: layersync.NewMemorySurface(),
	}
	if s.render == nil {
		s.render = report.NewRenderer()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	engineCfg := cfg.Engine
	engineCfg.MarkerStyle = cfg.Style.Marker
	engineCfg.HeatStyle = cfg.Style.Heat
	s.engine = layersync.NewEngine(engineCfg, s.surface, deps.Source, deps.Geocoder, logger, deps.Metrics, s.overlayChanged)

	analysisCfg := cfg.Analysis
	analysisCfg.SessionID = id
	s.lc = analysis.New(s.ctx, analysisCfg, deps.Analyzer, deps.Publisher, logger, deps.Metrics)
	s.lc.Subscribe(s.lifecycleChanged)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mount sends the hello frame and starts overlay polling. Polling stops when
// ctx is cancelled or on Unmount.
func (s *Session) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted || s.unmounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.mu.Unlock()

	s.emit(func() Frame {
		return Frame{Type: FrameHello, Hello: &Hello{
			SessionID: s.id,
			Style:     s.cfg.Style,
			Tools:     draw.Tools(),
			Address:   s.engine.Address(),
		}}
	})
	s.engine.Start(ctx)
	s.logger.Info("map view mounted")
}

// Unmount stops polling, detaches every overlay object, and drops all later
// UI effects, including analyses still in flight. Only the first call acts.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return
	}
	s.unmounted = true
	s.mu.Unlock()

	// Cancel first so a blocked Send returns.
	s.cancel()
	s.emitMu.Lock()
	s.emitMu.Unlock() //nolint:staticcheck // waits for an in-flight emit

	s.engine.Stop()
	s.lc.Close()

	added, removed := s.surface.Counts()
	s.logger.Info("map view unmounted", "objects_added", added, "objects_removed", removed, "objects_attached", s.surface.Attached())
}

// HandleEvent applies one client event. Errors are reported to the client as
// an error frame and returned.
func (s *Session) HandleEvent(e Event) error {
	if s.isUnmounted() {
		return ErrUnmounted
	}
	err := s.handle(e)
	if err != nil {
		s.logger.Debug("event rejected", "type", e.Type, "error", err)
		msg := err.Error()
		s.emit(func() Frame { return Frame{Type: FrameError, Error: msg} })
	}
	return err
}

func (s *Session) handle(e Event) error {
	switch e.Type {
	case EventDraw:
		region, err := draw.Extract(draw.Gesture{Kind: e.Kind, Vertices: e.Vertices})
		if err != nil {
			return fmt.Errorf("draw: %w", err)
		}
		return s.lc.Arm(region)

	case EventMoveEnd:
		if e.Center == nil {
			return errors.New("move_end: missing center")
		}
		if !e.Center.Valid() {
			return fmt.Errorf("move_end: %w", domain.ErrInvalidCoordinate)
		}
		s.engine.MoveEnd(*e.Center)
		return nil

	case EventDismissPanel:
		s.lc.Dismiss()
		return nil

	case EventOpenReport:
		return s.openReport()

	case EventCloseReport:
		s.closeReport()
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
}

func (s *Session) openReport() error {
	st := s.lc.Current()
	if st.Phase != analysis.PhaseSuccess || !st.PanelVisible || st.Result == nil {
		return ErrNoReport
	}
	modal, err := s.render.Open(*st.Result, st.Generation)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}

	s.mu.Lock()
	s.modal = &modal
	s.mu.Unlock()
	s.emitReport()
	return nil
}

func (s *Session) closeReport() {
	s.mu.Lock()
	wasOpen := s.modal != nil
	s.modal = nil
	s.mu.Unlock()
	if wasOpen {
		s.emitReport()
	}
}

// Modal returns the open report modal, or nil.
func (s *Session) Modal() *report.Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modal == nil {
		return nil
	}
	m := *s.modal
	return &m
}

// Analysis returns the current lifecycle state.
func (s *Session) Analysis() analysis.State { return s.lc.Current() }

// Address returns the current address label.
func (s *Session) Address() string { return s.engine.Address() }

// Surface returns the view's layer registry.
func (s *Session) Surface() *layersync.MemorySurface { return s.surface }

// lifecycleChanged runs under the lifecycle lock, so panel frames leave in
// transition order.
func (s *Session) lifecycleChanged(st analysis.State) {
	s.mu.Lock()
	// The modal belongs to the displayed result; it goes with the panel.
	closeModal := s.modal != nil && (s.modal.Generation != st.Generation || !st.PanelVisible)
	if closeModal {
		s.modal = nil
	}
	s.mu.Unlock()

	view := panel.Render(st)
	s.emit(func() Frame { return Frame{Type: FramePanel, Panel: &view} })
	if closeModal {
		s.emitReport()
	}
}

func (s *Session) overlayChanged(kind layersync.ChangeKind) {
	switch kind {
	case layersync.ChangeLabels:
		s.emit(func() Frame {
			labels := append([]domain.OverlayPoint{}, s.engine.Labels()...)
			return Frame{Type: FrameLabels, Labels: &labels}
		})
	case layersync.ChangeHeat:
		s.emit(func() Frame {
			samples := s.engine.Heat()
			tuples := make([][3]float64, len(samples))
			for i, h := range samples {
				tuples[i] = h.Tuple()
			}
			return Frame{Type: FrameHeat, Heat: &tuples}
		})
	case layersync.ChangeAddress:
		s.emit(func() Frame { return Frame{Type: FrameAddress, Address: s.engine.Address()} })
	}
}

func (s *Session) emitReport() {
	s.emit(func() Frame {
		m := s.Modal()
		return Frame{Type: FrameReport, Report: &ReportState{Open: m != nil, Modal: m}}
	})
}

// emit builds and sends a frame. Nothing is sent after Unmount.
func (s *Session) emit(build func() Frame) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	f := build()
	if err := s.sink.Send(s.ctx, f); err != nil && s.ctx.Err() == nil {
		s.logger.Warn("send frame failed", "type", f.Type, "error", err)
	}
}

func (s *Session) isUnmounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unmounted
}
