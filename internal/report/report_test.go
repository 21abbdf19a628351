package report

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

func sampleResult() domain.RegionAnalysisResult {
	return domain.RegionAnalysisResult{
		UrgencyScore:       72,
		SentimentBreakdown: map[string]float64{"부정": 0.7},
		ChartData: domain.ChartData{
			Categories: []string{"소음", "파손"},
			Counts:     []int{5, 3},
		},
		Themes:  map[string][]string{"도로 파손": {"포트홀"}},
		Context: "연산동 일대",
		Report:  "## 요약\n\n- 야간 소음 민원 **증가**\n- 도로 파손 3건",
	}
}

func TestRadar(t *testing.T) {
	got := Radar(sampleResult())
	want := []Axis{
		{Label: "긴급도", Weight: 1.0, Value: 72},
		{Label: "안전 위험", Weight: 0.9, Value: 65},
		{Label: "파급력", Weight: 0.8, Value: 58},
		{Label: "민원 감정", Weight: 0.7, Value: 50},
		{Label: FrequencyLabel, Value: 80},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("radar mismatch (-want +got):\n%s", diff)
	}
}

func TestRadar_FrequencyCapped(t *testing.T) {
	r := sampleResult()
	r.ChartData.Counts = []int{40, 30}
	axes := Radar(r)
	require.Len(t, axes, 5)
	assert.Equal(t, 100, axes[4].Value)
}

func TestRadar_FrequencyLargeCounts(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   int
	}{
		{"one huge count", []int{math.MaxInt / 5}, 100},
		{"sum past int range", []int{math.MaxInt, math.MaxInt}, 100},
		{"just under cap", []int{9}, 90},
		{"exactly cap", []int{10}, 100},
		{"negative total", []int{-3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleResult()
			r.ChartData = domain.ChartData{Counts: tt.counts}
			assert.Equal(t, tt.want, Radar(r)[4].Value)
		})
	}
}

func TestRadar_Bounds(t *testing.T) {
	r := sampleResult()
	r.UrgencyScore = 100
	r.ChartData = domain.ChartData{}
	axes := Radar(r)
	assert.Equal(t, 100, axes[0].Value)
	assert.Equal(t, 70, axes[3].Value)
	assert.Equal(t, 0, axes[4].Value)
}

func TestOpen(t *testing.T) {
	m, err := NewRenderer().Open(sampleResult(), "gen-1")
	require.NoError(t, err)

	assert.Equal(t, Title, m.Title)
	assert.Equal(t, "gen-1", m.Generation)
	assert.Equal(t, 72, m.UrgencyScore)
	assert.Len(t, m.Radar, 5)
	assert.Contains(t, m.HTML, "<h2")
	assert.Contains(t, m.HTML, "<strong>증가</strong>")
	assert.Contains(t, m.HTML, "<li>")
}

func TestOpen_DoesNotMutateResult(t *testing.T) {
	r := NewRenderer()
	result := sampleResult()
	before := result.Clone()

	for range 5 {
		m, err := r.Open(result, "gen-1")
		require.NoError(t, err)
		m.Counts[0] = 999
		m.Categories[0] = "changed"
	}

	if diff := cmp.Diff(before, result); diff != "" {
		t.Errorf("result mutated (-before +after):\n%s", diff)
	}
}

func TestNarrative_SanitizesScripts(t *testing.T) {
	_, out, err := NewRenderer().Narrative("안내 <script>alert(1)</script> [링크](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
}

func TestNarrative_HTMLInput(t *testing.T) {
	md, out, err := NewRenderer().Narrative("<h2>요약</h2><p>민원 <b>급증</b></p>")
	require.NoError(t, err)
	assert.Contains(t, md, "## 요약")
	assert.Contains(t, md, "**급증**")
	assert.Contains(t, out, "<strong>급증</strong>")
}

func TestNarrative_Empty(t *testing.T) {
	md, out, err := NewRenderer().Narrative("")
	require.NoError(t, err)
	assert.Empty(t, md)
	assert.Empty(t, out)
}
