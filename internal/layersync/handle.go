package layersync

import (
	"errors"
	"sync"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

// Layer names used in logs and metric labels.
const (
	LayerLabels = "labels"
	LayerHeat   = "heat"
)

// attachFunc adds the objects for items to a surface and returns their IDs.
type attachFunc[T any] func(s MapSurface, items []T) []LayerID

// Handle owns exactly the surface objects it created for one overlay. Every
// object it adds is removed exactly once, either by the next Replace or by Clear.
type Handle[T any] struct {
	layer   string
	surface MapSurface
	attach  attachFunc[T]
	metrics *observability.Metrics

	mu    sync.Mutex
	ids   []LayerID
	items []T
}

// NewLabelHandle returns a handle that attaches one marker per label.
func NewLabelHandle(s MapSurface, style domain.MarkerStyle, metrics *observability.Metrics) *Handle[domain.OverlayPoint] {
	return &Handle[domain.OverlayPoint]{
		layer:   LayerLabels,
		surface: s,
		metrics: metrics,
		attach: func(s MapSurface, points []domain.OverlayPoint) []LayerID {
			ids := make([]LayerID, 0, len(points))
			for _, p := range points {
				ids = append(ids, s.AddMarker(p, style))
			}
			return ids
		},
	}
}

// NewHeatHandle returns a handle that attaches all samples as a single heat
// layer. An empty sample set attaches nothing.
func NewHeatHandle(s MapSurface, style domain.HeatStyle, metrics *observability.Metrics) *Handle[domain.HeatSample] {
	return &Handle[domain.HeatSample]{
		layer:   LayerHeat,
		surface: s,
		metrics: metrics,
		attach: func(s MapSurface, samples []domain.HeatSample) []LayerID {
			if len(samples) == 0 {
				return nil
			}
			return []LayerID{s.AddHeatLayer(samples, style)}
		},
	}
}

// Replace removes every object from the previous set, then attaches items.
// The handle lock is held across both steps so no other Replace or Clear can
// interleave. Removal errors are returned after the new set is attached.
func (h *Handle[T]) Replace(items []T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.detachLocked()

	owned := make([]T, len(items))
	copy(owned, items)
	h.ids = h.attach(h.surface, owned)
	h.items = owned
	h.metrics.LayerOps.WithLabelValues(h.layer, "add").Add(float64(len(h.ids)))
	h.metrics.OverlayObjects.WithLabelValues(h.layer).Add(float64(len(h.ids)))
	return err
}

// Clear removes every owned object.
func (h *Handle[T]) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.detachLocked()
	h.items = nil
	return err
}

// Current returns a copy of the data set last passed to Replace.
func (h *Handle[T]) Current() []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]T, len(h.items))
	copy(out, h.items)
	return out
}

// Len returns the number of surface objects the handle owns.
func (h *Handle[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ids)
}

func (h *Handle[T]) detachLocked() error {
	var errs []error
	for _, id := range h.ids {
		if err := h.surface.RemoveLayer(id); err != nil {
			errs = append(errs, err)
		}
	}
	if n := len(h.ids); n > 0 {
		h.metrics.LayerOps.WithLabelValues(h.layer, "remove").Add(float64(n))
		h.metrics.OverlayObjects.WithLabelValues(h.layer).Sub(float64(n))
	}
	h.ids = nil
	return errors.Join(errs...)
}
