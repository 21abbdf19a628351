package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// AnalysisEvent is published to the analysis stream after a region analysis
// is applied to a session.
type AnalysisEvent struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	RegionID     string       `json:"region_id"`
	Polygon      [][2]float64 `json:"polygon"`
	Center       Coordinate   `json:"center"`
	AreaSqMeters float64      `json:"area_sq_m"`
	UrgencyScore int          `json:"urgency_score"`
	Categories   []string     `json:"categories"`
	Counts       []int        `json:"counts"`
	Themes       []string     `json:"themes"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// NewAnalysisEvent builds the stream event for an applied analysis.
func NewAnalysisEvent(sessionID string, region Region, result RegionAnalysisResult) AnalysisEvent {
	themes := make([]string, 0, len(result.Themes))
	for name := range result.Themes {
		themes = append(themes, name)
	}
	slices.Sort(themes)

	return AnalysisEvent{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		RegionID:     region.ID(),
		Polygon:      region.Polygon(),
		Center:       region.Center(),
		AreaSqMeters: region.AreaSqMeters(),
		UrgencyScore: result.UrgencyScore,
		Categories:   slices.Clone(result.ChartData.Categories),
		Counts:       slices.Clone(result.ChartData.Counts),
		Themes:       themes,
		CompletedAt:  clock.Now().UTC(),
	}
}
