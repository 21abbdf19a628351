// Package layersync keeps the word-cloud and heat overlays of a map view in
// step with the backend, and tracks the address label of the map center.
package layersync

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

// LayerID identifies one object attached to a map surface.
type LayerID string

// ErrUnknownLayer is returned when removing an object that is not attached.
var ErrUnknownLayer = errors.New("layer not attached")

// MapSurface is the registry of rendering objects attached to one map view.
// Styles are passed on every call; a surface has no default icon.
type MapSurface interface {
	AddMarker(p domain.OverlayPoint, style domain.MarkerStyle) LayerID
	AddHeatLayer(samples []domain.HeatSample, style domain.HeatStyle) LayerID
	RemoveLayer(id LayerID) error
}

// Marker is an attached label marker.
type Marker struct {
	ID    LayerID             `json:"id"`
	Point domain.OverlayPoint `json:"point"`
	Style domain.MarkerStyle  `json:"style"`
}

// HeatLayer is an attached heat layer.
type HeatLayer struct {
	ID      LayerID             `json:"id"`
	Samples []domain.HeatSample `json:"samples"`
	Style   domain.HeatStyle    `json:"style"`
}

// Snapshot is the set of objects attached to a surface at one instant.
type Snapshot struct {
	Markers []Marker    `json:"markers"`
	Heat    []HeatLayer `json:"heat"`
}

// MemorySurface is an in-process MapSurface. It counts additions and removals
// so a view can prove that every object it attached was detached exactly once.
type MemorySurface struct {
	mu      sync.Mutex
	order   []LayerID
	markers map[LayerID]Marker
	heat    map[LayerID]HeatLayer
	added   int
	removed int
}

// NewMemorySurface returns an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		markers: make(map[LayerID]Marker),
		heat:    make(map[LayerID]HeatLayer),
	}
}

func (s *MemorySurface) AddMarker(p domain.OverlayPoint, style domain.MarkerStyle) LayerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := LayerID("marker-" + uuid.NewString())
	s.markers[id] = Marker{ID: id, Point: p, Style: style}
	s.order = append(s.order, id)
	s.added++
	return id
}

func (s *MemorySurface) AddHeatLayer(samples []domain.HeatSample, style domain.HeatStyle) LayerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := LayerID("heat-" + uuid.NewString())
	owned := make([]domain.HeatSample, len(samples))
	copy(owned, samples)
	s.heat[id] = HeatLayer{ID: id, Samples: owned, Style: style}
	s.order = append(s.order, id)
	s.added++
	return id
}

func (s *MemorySurface) RemoveLayer(id LayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markers[id]; ok {
		delete(s.markers, id)
	} else if _, ok := s.heat[id]; ok {
		delete(s.heat, id)
	} else {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownLayer)
	}
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.removed++
	return nil
}

// Snapshot returns the attached objects in attachment order.
func (s *MemorySurface) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Markers: []Marker{}, Heat: []HeatLayer{}}
	for _, id := range s.order {
		if m, ok := s.markers[id]; ok {
			snap.Markers = append(snap.Markers, m)
			continue
		}
		h := s.heat[id]
		samples := make([]domain.HeatSample, len(h.Samples))
		copy(samples, h.Samples)
		h.Samples = samples
		snap.Heat = append(snap.Heat, h)
	}
	return snap
}

// Attached returns the number of objects currently on the surface.
func (s *MemorySurface) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Counts returns the lifetime number of additions and removals.
func (s *MemorySurface) Counts() (added, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.added, s.removed
}
