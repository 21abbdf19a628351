package mockapi

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

const (
	riskyThreshold     = 8
	maxThemeExamples   = 3
	statusMessage      = "Busan AI Platform Backend Running"
	emptyRegionContext = "선택한 영역에 접수된 민원이 없습니다."
)

// Options tune the mock's behavior.
type Options struct {
	// Delay is added before every analysis response.
	Delay time.Duration
	Clock clockwork.Clock
}

// Server serves Fixtures over the backend's HTTP API.
type Server struct {
	fixtures Fixtures
	opts     Options
	logger   *slog.Logger
}

// NewServer returns the mock backend.
func NewServer(f Fixtures, opts Options, logger *slog.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Server{fixtures: f, opts: opts, logger: logger}
}

// Handler returns the routes of the backend API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": statusMessage})
	})
	r.Get("/api/map/items", s.handleMapItems)
	r.Get("/api/map/heatmap", s.handleHeatmap)
	r.Post("/api/map/analyze-region", s.handleAnalyzeRegion)
	r.Get("/api/complaint/{id}/analyze", s.handleAnalyzeComplaint)
	return r
}

type mapItem struct {
	ID        int            `json:"id,omitempty"`
	Text      string         `json:"text"`
	Lat       float64        `json:"lat"`
	Lng       float64        `json:"lng"`
	Size      string         `json:"size"`
	ClassName string         `json:"class_name"`
	Style     map[string]any `json:"style"`
}

func (s *Server) handleMapItems(w http.ResponseWriter, _ *http.Request) {
	items := make([]mapItem, 0, len(s.fixtures.WordCloud)+len(s.fixtures.Complaints))
	for _, wc := range s.fixtures.WordCloud {
		items = append(items, mapItem{
			Text: wc.Text, Lat: wc.Lat, Lng: wc.Lng,
			Size: wc.Size, ClassName: wc.ClassName, Style: wc.Style,
		})
	}
	for _, c := range s.fixtures.Complaints {
		item := mapItem{
			ID:        c.ID,
			Text:      cmp.Or(c.Category, "민원"),
			Lat:       c.Lat,
			Lng:       c.Lng,
			Size:      "2rem",
			ClassName: "text-blue-600 font-bold",
			Style:     map[string]any{"zIndex": 1000},
		}
		if c.SafetyRiskScore >= riskyThreshold {
			item.Size = "3rem"
			item.ClassName = "text-red-600 font-black animate-pulse"
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, _ *http.Request) {
	rows := s.fixtures.Heatmap
	if rows == nil {
		rows = [][]float64{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type analyzeRegionRequest struct {
	Polygon [][]float64 `json:"polygon"` // [[lat, lng], ...]
}

func (s *Server) handleAnalyzeRegion(w http.ResponseWriter, r *http.Request) {
	var req analyzeRegionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	ring, err := ringFromPolygon(req.Polygon)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	if !s.wait(r) {
		return
	}

	inside := s.complaintsIn(ring)
	s.logger.Debug("region analyzed", "vertices", len(req.Polygon), "complaints", len(inside))
	writeJSON(w, http.StatusOK, Analyze(inside))
}

func (s *Server) handleAnalyzeComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Complaint not found"})
		return
	}
	idx := slices.IndexFunc(s.fixtures.Complaints, func(c Complaint) bool { return c.ID == id })
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Complaint not found"})
		return
	}
	if !s.wait(r) {
		return
	}

	c := s.fixtures.Complaints[idx]
	writeJSON(w, http.StatusOK, map[string]any{
		"complaint": map[string]any{
			"summary":           c.Summary,
			"original_text":     c.OriginalText,
			"category":          c.Category,
			"location":          c.Location,
			"urgency_score":     c.UrgencyScore,
			"safety_risk_score": c.SafetyRiskScore,
		},
		"analysis_report": complaintReport(c),
	})
}

// wait applies the configured delay. It reports false if the client went away.
func (s *Server) wait(r *http.Request) bool {
	if s.opts.Delay <= 0 {
		return true
	}
	select {
	case <-s.opts.Clock.After(s.opts.Delay):
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *Server) complaintsIn(ring orb.Ring) []Complaint {
	var out []Complaint
	for _, c := range s.fixtures.Complaints {
		if planar.RingContains(ring, orb.Point{c.Lng, c.Lat}) {
			out = append(out, c)
		}
	}
	return out
}

func ringFromPolygon(polygon [][]float64) (orb.Ring, error) {
	ring := make(orb.Ring, 0, len(polygon)+1)
	for i, p := range polygon {
		if len(p) != 2 {
			return nil, fmt.Errorf("polygon vertex %d: want [lat, lng]", i)
		}
		ring = append(ring, orb.Point{p[1], p[0]})
	}
	if len(ring) < domain.MinRegionVertices {
		return nil, fmt.Errorf("polygon needs at least %d vertices", domain.MinRegionVertices)
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// Analyze scores a set of complaints the way the analysis backend reports it.
func Analyze(complaints []Complaint) domain.RegionAnalysisResult {
	result := domain.RegionAnalysisResult{
		SentimentBreakdown: map[string]float64{},
		ChartData:          domain.ChartData{Categories: []string{}, Counts: []int{}},
		Themes:             map[string][]string{},
	}
	if len(complaints) == 0 {
		result.Context = emptyRegionContext
		result.Report = "## 분석 결과\n\n" + emptyRegionContext
		return result
	}

	urgency := 0
	categories := map[string]int{}
	for _, c := range complaints {
		urgency += c.UrgencyScore
		categories[cmp.Or(c.Category, "기타")]++
		result.SentimentBreakdown[cmp.Or(c.Sentiment, "중립")]++
		if c.Theme != "" && len(result.Themes[c.Theme]) < maxThemeExamples {
			result.Themes[c.Theme] = append(result.Themes[c.Theme], c.Summary)
		}
	}
	n := float64(len(complaints))
	result.UrgencyScore = int(math.Round(float64(urgency) / n))
	for label, count := range result.SentimentBreakdown {
		result.SentimentBreakdown[label] = math.Round(count/n*100) / 100
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(categories[b], categories[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, name := range names {
		result.ChartData.Categories = append(result.ChartData.Categories, name)
		result.ChartData.Counts = append(result.ChartData.Counts, categories[name])
	}

	result.Context = fmt.Sprintf("선택 영역 민원 %d건 중 '%s' 유형이 %d건으로 가장 많습니다.",
		len(complaints), names[0], categories[names[0]])
	result.Report = regionReport(result, complaints)
	return result
}

func regionReport(r domain.RegionAnalysisResult, complaints []Complaint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 종합 분석\n\n%s\n\n", r.Context)
	fmt.Fprintf(&b, "- 평균 긴급도: **%d/100**\n", r.UrgencyScore)
	fmt.Fprintf(&b, "- 분석 민원 수: %d건\n\n", len(complaints))

	b.WriteString("## 유형별 현황\n\n| 유형 | 건수 |\n|---|---|\n")
	for i, name := range r.ChartData.Categories {
		fmt.Fprintf(&b, "| %s | %d |\n", name, r.ChartData.Counts[i])
	}

	risky := slices.DeleteFunc(slices.Clone(complaints), func(c Complaint) bool {
		return c.SafetyRiskScore < riskyThreshold
	})
	if len(risky) > 0 {
		b.WriteString("\n## 우선 조치 권고\n\n")
		for _, c := range risky {
			fmt.Fprintf(&b, "1. %s (%s)\n", c.Summary, c.Location)
		}
	}
	return b.String()
}

func complaintReport(c Complaint) string {
	return fmt.Sprintf("## 민원 분석\n\n**%s** (%s)\n\n- 긴급도: %d/100\n- 안전 위험도: %d/10\n\n> %s\n",
		c.Summary, c.Location, c.UrgencyScore, c.SafetyRiskScore, c.OriginalText)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
