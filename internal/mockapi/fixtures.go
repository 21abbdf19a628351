// Package mockapi is an in-process stand-in for the complaint analysis
// backend, used for local development and end-to-end tests.
package mockapi

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the data the mock backend serves.
type Fixtures struct {
	WordCloud  []WordCloudItem `yaml:"word_cloud"`
	Complaints []Complaint     `yaml:"complaints"`
	Heatmap    [][]float64     `yaml:"heatmap"`
}

// WordCloudItem is a static map label.
type WordCloudItem struct {
	Text      string         `yaml:"text"`
	Lat       float64        `yaml:"lat"`
	Lng       float64        `yaml:"lng"`
	Size      string         `yaml:"size"`
	ClassName string         `yaml:"class_name"`
	Style     map[string]any `yaml:"style"`
}

// Complaint is one civil complaint with its pre-scored attributes.
type Complaint struct {
	ID              int     `yaml:"id"`
	Summary         string  `yaml:"summary"`
	OriginalText    string  `yaml:"original_text"`
	Category        string  `yaml:"category"`
	Location        string  `yaml:"location"`
	Lat             float64 `yaml:"lat"`
	Lng             float64 `yaml:"lng"`
	UrgencyScore    int     `yaml:"urgency_score"`
	SafetyRiskScore int     `yaml:"safety_risk_score"` // 0–10
	Sentiment       string  `yaml:"sentiment"`
	Theme           string  `yaml:"theme"`
}

// DefaultFixtures returns the built-in Busan demo data.
func DefaultFixtures() (Fixtures, error) {
	return parseFixtures(defaultFixtures)
}

// LoadFixtures reads fixtures from a YAML file.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	seen := make(map[int]bool, len(f.Complaints))
	for _, c := range f.Complaints {
		if seen[c.ID] {
			return Fixtures{}, fmt.Errorf("duplicate complaint id %d", c.ID)
		}
		seen[c.ID] = true
	}
	for i, row := range f.Heatmap {
		if len(row) != 3 {
			return Fixtures{}, fmt.Errorf("heatmap row %d: %w", i, errHeatRow)
		}
	}
	return f, nil
}

var errHeatRow = errors.New("want [lat, lng, intensity]")
