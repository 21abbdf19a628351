package domain

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// ErrChartShape is returned when chart categories and counts differ in length.
var ErrChartShape = errors.New("chart categories and counts differ in length")

// ChartData is the categorical bar chart of an analysis.
type ChartData struct {
	Categories []string `json:"categories"`
	Counts     []int    `json:"counts"`
}

// Total returns the sum of all counts, saturating at the int range.
func (c ChartData) Total() int {
	total := 0
	for _, n := range c.Counts {
		switch {
		case n > 0 && total > math.MaxInt-n:
			total = math.MaxInt
		case n < 0 && total < math.MinInt-n:
			total = math.MinInt
		default:
			total += n
		}
	}
	return total
}

// RegionAnalysisResult is the AI analysis of the complaints inside a Region.
type RegionAnalysisResult struct {
	UrgencyScore       int                 `json:"urgency_score"`
	SentimentBreakdown map[string]float64  `json:"sentiment_breakdown"`
	ChartData          ChartData           `json:"chart_data"`
	Themes             map[string][]string `json:"themes"`
	Context            string              `json:"context"`
	Report             string              `json:"report"`
}

// Normalize clamps the urgency score into 0–100 and checks the chart shape.
// Missing maps are replaced with empty ones so renderers never see nil.
func (r RegionAnalysisResult) Normalize() (RegionAnalysisResult, error) {
	if len(r.ChartData.Categories) != len(r.ChartData.Counts) {
		return RegionAnalysisResult{}, fmt.Errorf("%d categories, %d counts: %w",
			len(r.ChartData.Categories), len(r.ChartData.Counts), ErrChartShape)
	}
	r.UrgencyScore = min(max(r.UrgencyScore, 0), 100)
	if r.SentimentBreakdown == nil {
		r.SentimentBreakdown = map[string]float64{}
	}
	if r.Themes == nil {
		r.Themes = map[string][]string{}
	}
	return r, nil
}

// Clone returns a deep copy so readers can never mutate the owner's payload.
func (r RegionAnalysisResult) Clone() RegionAnalysisResult {
	out := r
	out.SentimentBreakdown = maps.Clone(r.SentimentBreakdown)
	out.ChartData = ChartData{
		Categories: slices.Clone(r.ChartData.Categories),
		Counts:     slices.Clone(r.ChartData.Counts),
	}
	if r.Themes != nil {
		out.Themes = make(map[string][]string, len(r.Themes))
		for name, examples := range r.Themes {
			out.Themes[name] = slices.Clone(examples)
		}
	}
	return out
}
