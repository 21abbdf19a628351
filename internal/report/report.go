// Package report builds the report modal from an analysis result the
// lifecycle already holds. It never calls the backend.
package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

// Title is the modal heading.
const Title = "AI 심층 분석 리포트"

// Axis is one spoke of the radar summary.
type Axis struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight,omitempty"` // zero for the frequency axis
	Value  int     `json:"value"`
}

// urgencyAxes are the spokes derived from the urgency score, with their fixed weights.
var urgencyAxes = []struct {
	label  string
	weight float64
}{
	{"긴급도", 1.0},
	{"안전 위험", 0.9},
	{"파급력", 0.8},
	{"민원 감정", 0.7},
}

// FrequencyLabel names the axis derived from the complaint counts.
const FrequencyLabel = "발생 빈도"

// Radar derives the five-axis summary: four weighted urgency axes plus
// frequency = min(sum(counts) × 10, 100).
func Radar(r domain.RegionAnalysisResult) []Axis {
	urgency := float64(min(max(r.UrgencyScore, 0), 100))
	axes := make([]Axis, 0, len(urgencyAxes)+1)
	for _, a := range urgencyAxes {
		axes = append(axes, Axis{Label: a.label, Weight: a.weight, Value: int(math.Round(urgency * a.weight))})
	}
	return append(axes, Axis{Label: FrequencyLabel, Value: frequency(r.ChartData.Total())})
}

// frequency caps before multiplying so large totals cannot wrap.
func frequency(total int) int {
	if total >= 10 {
		return 100
	}
	return max(total, 0) * 10
}

// Modal is the report view model.
type Modal struct {
	Title        string   `json:"title"`
	Generation   string   `json:"generation"`
	UrgencyScore int      `json:"urgency_score"`
	Radar        []Axis   `json:"radar"`
	Context      string   `json:"context,omitempty"`
	Markdown     string   `json:"markdown"`
	HTML         string   `json:"html"`
	Categories   []string `json:"categories"`
	Counts       []int    `json:"counts"`
}

// Renderer turns report narratives into sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewRenderer returns a renderer for GitHub-flavoured markdown narratives.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Open builds the modal for result. The result is copied; the caller's value
// is never modified, so opening and closing any number of times leaves it intact.
func (r *Renderer) Open(result domain.RegionAnalysisResult, generation string) (Modal, error) {
	own := result.Clone()

	md, htmlOut, err := r.Narrative(own.Report)
	if err != nil {
		return Modal{}, err
	}
	return Modal{
		Title:        Title,
		Generation:   generation,
		UrgencyScore: own.UrgencyScore,
		Radar:        Radar(own),
		Context:      own.Context,
		Markdown:     md,
		HTML:         htmlOut,
		Categories:   own.ChartData.Categories,
		Counts:       own.ChartData.Counts,
	}, nil
}

// Narrative renders a report body. Bodies that arrive as HTML are first
// normalized to markdown. It returns the markdown source and the sanitized HTML.
func (r *Renderer) Narrative(src string) (markdown, htmlOut string, err error) {
	markdown = strings.TrimSpace(src)
	if looksLikeHTML(markdown) {
		markdown, err = r.conv.ConvertString(markdown)
		if err != nil {
			return "", "", fmt.Errorf("convert html narrative: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", "", fmt.Errorf("render narrative: %w", err)
	}
	return markdown, r.policy.Sanitize(buf.String()), nil
}

func looksLikeHTML(s string) bool {
	return strings.HasPrefix(s, "<") && strings.Contains(s, "</")
}
