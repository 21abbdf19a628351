package layersync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

// OverlaySource is the backend side of the two overlays.
type OverlaySource interface {
	FetchMapItems(ctx context.Context) ([]domain.OverlayPoint, error)
	FetchHeatmap(ctx context.Context) ([]domain.HeatSample, error)
}

// ChangeKind says which part of the view an engine change touched.
type ChangeKind string

const (
	ChangeLabels  ChangeKind = "labels"
	ChangeHeat    ChangeKind = "heat"
	ChangeAddress ChangeKind = "address"
)

// EngineConfig holds the engine's timing and the styles passed to the surface.
type EngineConfig struct {
	Poll           PollerConfig
	GeocodeTimeout time.Duration
	MarkerStyle    domain.MarkerStyle
	HeatStyle      domain.HeatStyle
}

// Engine drives the label and heat pollers of one map view and resolves the
// address label on every move-end.
type Engine struct {
	labels     *Handle[domain.OverlayPoint]
	heat       *Handle[domain.HeatSample]
	labelPoll  *Poller[domain.OverlayPoint]
	heatPoll   *Poller[domain.HeatSample]
	geocoder   domain.Geocoder
	geoTimeout time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
	onChange   func(ChangeKind)

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   bool
	address   string
	requested uint64 // last move-end sequence issued
	landed    uint64 // sequence of the response currently displayed
	inflight  sync.WaitGroup
}

// NewEngine wires both pollers onto surface. geocoder may be nil, in which
// case move-end events leave the address label untouched. onChange, if
// non-nil, is called after every applied change; it must not block.
func NewEngine(cfg EngineConfig, surface MapSurface, source OverlaySource, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics, onChange func(ChangeKind)) *Engine {
	if cfg.GeocodeTimeout <= 0 {
		cfg.GeocodeTimeout = 5 * time.Second
	}
	e := &Engine{
		labels:     NewLabelHandle(surface, cfg.MarkerStyle, metrics),
		heat:       NewHeatHandle(surface, cfg.HeatStyle, metrics),
		geocoder:   geocoder,
		geoTimeout: cfg.GeocodeTimeout,
		logger:     logger,
		metrics:    metrics,
		onChange:   onChange,
		address:    domain.DefaultAddressLabel,
	}
	e.labelPoll = NewPoller(cfg.Poll, source.FetchMapItems, e.labels, logger, metrics, e.cycleDone(ChangeLabels))
	e.heatPoll = NewPoller(cfg.Poll, source.FetchHeatmap, e.heat, logger, metrics, e.cycleDone(ChangeHeat))
	return e
}

// Start begins polling both overlays. It is a no-op after the first call.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.ctx != nil || e.stopped {
		e.mu.Unlock()
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.labelPoll.Start(e.ctx)
	e.heatPoll.Start(e.ctx)
}

// Stop halts both pollers, detaches every overlay object, and waits for any
// in-flight geocode lookups. Later geocode responses are discarded.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	e.labelPoll.Stop()
	e.heatPoll.Stop()
	e.inflight.Wait()
}

// MoveEnd starts one reverse-geocode lookup for the new map center. Lookups
// are neither queued nor cancelled by later moves: whichever response lands
// last sets the label, even when it answers an older move.
func (e *Engine) MoveEnd(center domain.Coordinate) {
	if e.geocoder == nil || !center.Valid() {
		return
	}

	e.mu.Lock()
	if e.stopped || e.ctx == nil {
		e.mu.Unlock()
		return
	}
	e.requested++
	seq := e.requested
	ctx := e.ctx
	e.inflight.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.inflight.Done()
		e.geocode(ctx, seq, center)
	}()
}

func (e *Engine) geocode(ctx context.Context, seq uint64, center domain.Coordinate) {
	ctx, cancel := context.WithTimeout(ctx, e.geoTimeout)
	defer cancel()

	res, err := e.geocoder.ReverseGeocode(ctx, center.Lat, center.Lng)
	if err != nil {
		e.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		e.logger.Warn("reverse geocode failed, keeping address", "center", center.String(), "error", err)
		return
	}
	if res.FormattedAddress == "" {
		e.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		e.logger.Debug("reverse geocode returned no address", "center", center.String())
		return
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if seq < e.landed {
		e.metrics.GeocodeOutOfOrder.Inc()
		e.logger.Debug("stale address response applied", "seq", seq, "latest", e.landed)
	}
	e.landed = seq
	e.address = res.FormattedAddress
	e.mu.Unlock()

	e.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	e.changed(ChangeAddress)
}

// Address returns the current address label.
func (e *Engine) Address() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.address
}

// Labels returns the labels currently displayed.
func (e *Engine) Labels() []domain.OverlayPoint { return e.labels.Current() }

// Heat returns the heat samples currently displayed.
func (e *Engine) Heat() []domain.HeatSample { return e.heat.Current() }

func (e *Engine) cycleDone(kind ChangeKind) func(CycleResult) {
	return func(r CycleResult) {
		if r.Err == nil {
			e.changed(kind)
		}
	}
}

func (e *Engine) changed(kind ChangeKind) {
	if e.onChange != nil {
		e.onChange(kind)
	}
}
