package backend

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

// Backend API request and response types.

type analyzeRegionRequest struct {
	Polygon [][2]float64 `json:"polygon"`
}

type mapItem struct {
	ID        json.RawMessage `json:"id,omitempty"` // number for complaints, absent for static labels
	Text      string          `json:"text"`
	Lat       float64         `json:"lat"`
	Lng       float64         `json:"lng"`
	Size      string          `json:"size"`
	ClassName string          `json:"class_name"`
	Style     map[string]any  `json:"style"`
}

func (m mapItem) toDomain() domain.OverlayPoint {
	return domain.OverlayPoint{
		Text:         m.Text,
		Position:     domain.Coordinate{Lat: m.Lat, Lng: m.Lng},
		EmphasisSize: m.Size,
		StyleClass:   m.ClassName,
		Style:        m.Style,
	}
}

var errHeatRow = errors.New("heat row must be [lat, lng, intensity]")

// heatSampleFromRow decodes one [lat, lng, intensity] row. Negative intensity
// is clamped to zero.
func heatSampleFromRow(row []float64) (domain.HeatSample, error) {
	if len(row) != 3 {
		return domain.HeatSample{}, fmt.Errorf("%d values: %w", len(row), errHeatRow)
	}
	s := domain.HeatSample{Lat: row[0], Lng: row[1], Intensity: max(row[2], 0)}
	if !(domain.Coordinate{Lat: s.Lat, Lng: s.Lng}).Valid() {
		return domain.HeatSample{}, domain.ErrInvalidCoordinate
	}
	return s, nil
}

// ComplaintReport is the per-complaint analysis returned by
// GET /api/complaint/{id}/analyze.
type ComplaintReport struct {
	Complaint      ComplaintSummary `json:"complaint"`
	AnalysisReport string           `json:"analysis_report"`
}

// ComplaintSummary is the complaint record echoed back with its report.
type ComplaintSummary struct {
	Summary         string `json:"summary"`
	OriginalText    string `json:"original_text"`
	Category        string `json:"category"`
	Location        string `json:"location"`
	UrgencyScore    int    `json:"urgency_score"`
	SafetyRiskScore int    `json:"safety_risk_score"`
}
