// Package panel renders the analysis panel view model. Rendering is a pure
// function of the lifecycle state; the panel keeps no state of its own.
package panel

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/couchcryptid/complaint-map-console/internal/analysis"
	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

// Static panel copy.
const (
	Title       = "선택된 영역 분석"
	LoadingCopy = "AI가 선택 영역의 민원을 분석하고 있습니다..."
	NoDataCopy  = "분석 데이터가 없습니다."
	ReportLabel = "AI 심층 분석 리포트 생성"
)

// Urgency levels.
const (
	LevelCritical = "critical"
	LevelHigh     = "high"
	LevelMedium   = "medium"
	LevelLow      = "low"
)

// View is the panel as the client draws it. Exactly one of Loading, Error,
// or the success sections is set on a visible panel.
type View struct {
	Visible    bool           `json:"visible"`
	Title      string         `json:"title,omitempty"`
	Phase      analysis.Phase `json:"phase"`
	Generation string         `json:"generation,omitempty"`

	Loading *Loading   `json:"loading,omitempty"`
	Error   *ErrorView `json:"error,omitempty"`

	Summary *Summary   `json:"summary,omitempty"`
	Chart   *BarChart  `json:"chart,omitempty"`
	Themes  []ThemeTag `json:"themes,omitempty"`

	CanOpenReport bool   `json:"can_open_report"`
	ReportLabel   string `json:"report_label,omitempty"`
}

type Loading struct {
	Copy string `json:"copy"`
}

type ErrorView struct {
	Message string `json:"message"`
}

// Summary is the urgency and sentiment section.
type Summary struct {
	UrgencyScore int              `json:"urgency_score"`
	UrgencyText  string           `json:"urgency_text"` // "72/100"
	UrgencyLevel string           `json:"urgency_level"`
	Complaints   int              `json:"complaints"`
	Sentiment    []SentimentShare `json:"sentiment"`
	Context      string           `json:"context,omitempty"`
}

type SentimentShare struct {
	Label   string  `json:"label"`
	Share   float64 `json:"share"`
	Percent int     `json:"percent"`
}

// BarChart is the categorical complaint chart.
type BarChart struct {
	Bars  []Bar `json:"bars"`
	Total int   `json:"total"`
}

// Bar is one category. Ratio is the count relative to the largest bar.
type Bar struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Ratio    float64 `json:"ratio"`
}

// ThemeTag is a theme with the example complaints shown in its pop-over.
type ThemeTag struct {
	Name     string   `json:"name"`
	Examples []string `json:"examples"`
}

// Render derives the panel from a lifecycle snapshot.
func Render(s analysis.State) View {
	if !s.PanelVisible || s.Phase == analysis.PhaseIdle {
		return View{Phase: s.Phase}
	}

	v := View{
		Visible:    true,
		Title:      Title,
		Phase:      s.Phase,
		Generation: s.Generation,
	}
	switch s.Phase {
	case analysis.PhaseLoading:
		v.Loading = &Loading{Copy: LoadingCopy}
	case analysis.PhaseError:
		msg := s.Message
		if msg == "" {
			msg = NoDataCopy
		}
		v.Error = &ErrorView{Message: msg}
	case analysis.PhaseSuccess:
		if s.Result == nil {
			v.Error = &ErrorView{Message: NoDataCopy}
			return v
		}
		v.Summary = summary(*s.Result)
		v.Chart = chart(s.Result.ChartData)
		v.Themes = themes(s.Result.Themes)
		v.CanOpenReport = true
		v.ReportLabel = ReportLabel
	}
	return v
}

// UrgencyLevel buckets a 0–100 urgency score.
func UrgencyLevel(score int) string {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

func summary(r domain.RegionAnalysisResult) *Summary {
	shares := make([]SentimentShare, 0, len(r.SentimentBreakdown))
	var total float64
	for _, v := range r.SentimentBreakdown {
		total += max(v, 0)
	}
	for label, v := range r.SentimentBreakdown {
		share := 0.0
		if total > 0 {
			share = max(v, 0) / total
		}
		shares = append(shares, SentimentShare{Label: label, Share: share, Percent: int(share*100 + 0.5)})
	}
	slices.SortFunc(shares, func(a, b SentimentShare) int {
		if c := cmp.Compare(b.Share, a.Share); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})

	return &Summary{
		UrgencyScore: r.UrgencyScore,
		UrgencyText:  fmt.Sprintf("%d/100", r.UrgencyScore),
		UrgencyLevel: UrgencyLevel(r.UrgencyScore),
		Complaints:   r.ChartData.Total(),
		Sentiment:    shares,
		Context:      r.Context,
	}
}

func chart(c domain.ChartData) *BarChart {
	n := min(len(c.Categories), len(c.Counts))
	peak := 0
	for _, count := range c.Counts[:n] {
		peak = max(peak, count)
	}
	bars := make([]Bar, n)
	for i := range n {
		bars[i] = Bar{Category: c.Categories[i], Count: c.Counts[i]}
		if peak > 0 {
			bars[i].Ratio = float64(max(c.Counts[i], 0)) / float64(peak)
		}
	}
	return &BarChart{Bars: bars, Total: c.Total()}
}

func themes(m map[string][]string) []ThemeTag {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	tags := make([]ThemeTag, 0, len(names))
	for _, name := range names {
		tags = append(tags, ThemeTag{Name: name, Examples: slices.Clone(m[name])})
	}
	return tags
}
