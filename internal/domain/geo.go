package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// MinRegionVertices is the smallest vertex count that forms a polygon.
const MinRegionVertices = 3

var (
	// ErrTooFewVertices is returned when a ring has fewer than three distinct vertices.
	ErrTooFewVertices = errors.New("region needs at least 3 distinct vertices")
	// ErrInvalidCoordinate is returned for latitudes outside [-90,90] or
	// longitudes outside [-180,180].
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within WGS-84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Region is an immutable polygon captured from a single draw gesture. The
// zero value is the "no region" sentinel.
type Region struct {
	id       string
	vertices []Coordinate
}

// NewRegion validates the ring and assigns it a fresh generation ID. The
// vertex order is preserved exactly; winding is not normalized.
func NewRegion(vertices []Coordinate) (Region, error) {
	distinct := make(map[Coordinate]struct{}, len(vertices))
	for i, v := range vertices {
		if !v.Valid() {
			return Region{}, fmt.Errorf("vertex %d (%s): %w", i, v, ErrInvalidCoordinate)
		}
		distinct[v] = struct{}{}
	}
	if len(distinct) < MinRegionVertices {
		return Region{}, fmt.Errorf("%d distinct vertices: %w", len(distinct), ErrTooFewVertices)
	}

	owned := make([]Coordinate, len(vertices))
	copy(owned, vertices)
	return Region{id: uuid.NewString(), vertices: owned}, nil
}

// ID is the generation tag of the region.
func (r Region) ID() string { return r.id }

// IsZero reports whether r is the zero Region.
func (r Region) IsZero() bool { return r.id == "" }

// Len returns the number of vertices.
func (r Region) Len() int { return len(r.vertices) }

// Vertices returns a copy of the ring in draw order.
func (r Region) Vertices() []Coordinate {
	out := make([]Coordinate, len(r.vertices))
	copy(out, r.vertices)
	return out
}

// Polygon returns the ring as [[lat, lng], ...] for the analyze-region request.
func (r Region) Polygon() [][2]float64 {
	out := make([][2]float64, len(r.vertices))
	for i, v := range r.vertices {
		out[i] = [2]float64{v.Lat, v.Lng}
	}
	return out
}

// Ring converts the region to a closed orb ring in (lng, lat) order.
func (r Region) Ring() orb.Ring {
	ring := make(orb.Ring, 0, len(r.vertices)+1)
	for _, v := range r.vertices {
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// Center returns the center of the region's bounding box.
func (r Region) Center() Coordinate {
	c := r.Ring().Bound().Center()
	return Coordinate{Lat: c.Lat(), Lng: c.Lon()}
}

// AreaSqMeters approximates the geodesic area of the region.
func (r Region) AreaSqMeters() float64 {
	if r.IsZero() {
		return 0
	}
	return math.Abs(geo.Area(orb.Polygon{r.Ring()}))
}
