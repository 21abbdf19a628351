// Package draw turns completed map draw gestures into Regions.
package draw

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

// Kind is the draw tool that produced a gesture.
type Kind string

const (
	KindRectangle    Kind = "rectangle"
	KindPolygon      Kind = "polygon"
	KindCircle       Kind = "circle"
	KindMarker       Kind = "marker"
	KindPolyline     Kind = "polyline"
	KindCircleMarker Kind = "circlemarker"
)

var (
	// ErrKindDisabled is returned for draw tools that are never offered.
	ErrKindDisabled = errors.New("draw kind is disabled")
	// ErrUnknownKind is returned for unrecognised draw tools.
	ErrUnknownKind = errors.New("unknown draw kind")
)

// Tool describes one entry of the draw toolbar.
type Tool struct {
	Kind    Kind `json:"kind"`
	Enabled bool `json:"enabled"`
}

// Tools lists the draw toolbar configuration. Only rectangle and polygon are enabled.
func Tools() []Tool {
	return []Tool{
		{Kind: KindRectangle, Enabled: true},
		{Kind: KindPolygon, Enabled: true},
		{Kind: KindCircle},
		{Kind: KindMarker},
		{Kind: KindPolyline},
		{Kind: KindCircleMarker},
	}
}

// Gesture is a completed draw interaction.
type Gesture struct {
	Kind     Kind
	Vertices []domain.Coordinate
}

// Extract returns the gesture's vertex ring as a Region in draw order. An
// explicit closing vertex equal to the first one is dropped; winding is left
// as drawn.
func Extract(g Gesture) (domain.Region, error) {
	switch g.Kind {
	case KindRectangle, KindPolygon:
	case KindCircle, KindMarker, KindPolyline, KindCircleMarker:
		return domain.Region{}, fmt.Errorf("%s: %w", g.Kind, ErrKindDisabled)
	default:
		return domain.Region{}, fmt.Errorf("%q: %w", g.Kind, ErrUnknownKind)
	}

	ring := g.Vertices
	if n := len(ring); n > domain.MinRegionVertices && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}

	region, err := domain.NewRegion(ring)
	if err != nil {
		return domain.Region{}, fmt.Errorf("extract %s: %w", g.Kind, err)
	}
	return region, nil
}

// Rectangle builds the four-corner ring the rectangle tool emits for the
// given south-west and north-east corners: SW, NW, NE, SE.
func Rectangle(sw, ne domain.Coordinate) Gesture {
	return Gesture{
		Kind: KindRectangle,
		Vertices: []domain.Coordinate{
			{Lat: sw.Lat, Lng: sw.Lng},
			{Lat: ne.Lat, Lng: sw.Lng},
			{Lat: ne.Lat, Lng: ne.Lng},
			{Lat: sw.Lat, Lng: ne.Lng},
		},
	}
}
