package domain

// OverlayPoint is one label of the word-cloud layer.
type OverlayPoint struct {
	Text         string         `json:"text"`
	Position     Coordinate     `json:"position"`
	EmphasisSize string         `json:"size"`       // CSS size, e.g. "3rem"
	StyleClass   string         `json:"class_name"` // CSS classes applied to the tooltip
	Style        map[string]any `json:"style,omitempty"`
}

// HeatSample is one weighted point of the heat layer.
type HeatSample struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

// Tuple returns the sample in the [lat, lng, intensity] wire form.
func (h HeatSample) Tuple() [3]float64 {
	return [3]float64{h.Lat, h.Lng, h.Intensity}
}
