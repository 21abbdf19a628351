package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

func testClient(t *testing.T, h http.HandlerFunc) (*Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := observability.NewMetricsForTesting()
	return NewClient(srv.URL+"/", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func triangle(t *testing.T) domain.Region {
	t.Helper()
	r, err := domain.NewRegion([]domain.Coordinate{
		{Lat: 35.10, Lng: 129.05},
		{Lat: 35.11, Lng: 129.06},
		{Lat: 35.10, Lng: 129.07},
	})
	require.NoError(t, err)
	return r
}

// --- map items ---

func TestFetchMapItems(t *testing.T) {
	c, m := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/map/items", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[
			{"text":"불법주차","lat":35.18,"lng":129.07,"size":"2.5rem","class_name":"text-orange-500","style":null},
			{"id":7,"text":"도로","lat":35.17,"lng":129.08,"size":"3rem","class_name":"text-red-600","style":{"zIndex":1000}}
		]`))
	})

	got, err := c.FetchMapItems(context.Background())
	require.NoError(t, err)

	want := []domain.OverlayPoint{
		{Text: "불법주차", Position: domain.Coordinate{Lat: 35.18, Lng: 129.07}, EmphasisSize: "2.5rem", StyleClass: "text-orange-500"},
		{Text: "도로", Position: domain.Coordinate{Lat: 35.17, Lng: 129.08}, EmphasisSize: "3rem", StyleClass: "text-red-600", Style: map[string]any{"zIndex": float64(1000)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FetchMapItems mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 1, testutil.ToFloat64(m.BackendRequests.WithLabelValues(endpointItems, "success")), 1e-9)
}

func TestFetchMapItems_InvalidCoordinate(t *testing.T) {
	c, _ := testClient(t, respond(http.StatusOK, `[{"text":"x","lat":135,"lng":129}]`))
	_, err := c.FetchMapItems(context.Background())

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestFetchMapItems_Empty(t *testing.T) {
	c, _ := testClient(t, respond(http.StatusOK, `[]`))
	got, err := c.FetchMapItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- heatmap ---

func TestFetchHeatmap(t *testing.T) {
	c, _ := testClient(t, respond(http.StatusOK, `[[35.1,129.0,0.5],[35.2,129.1,-0.3]]`))
	got, err := c.FetchHeatmap(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.HeatSample{
		{Lat: 35.1, Lng: 129.0, Intensity: 0.5},
		{Lat: 35.2, Lng: 129.1, Intensity: 0},
	}, got)
}

func TestFetchHeatmap_MalformedRows(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "two values", body: `[[35.1,129.0]]`},
		{name: "four values", body: `[[35.1,129.0,0.5,1]]`},
		{name: "bad latitude", body: `[[95,129.0,0.5]]`},
		{name: "not an array", body: `{"rows":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := testClient(t, respond(http.StatusOK, tt.body))
			_, err := c.FetchHeatmap(context.Background())

			var parseErr *domain.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.InDelta(t, 1, testutil.ToFloat64(m.BackendRequests.WithLabelValues(endpointHeatmap, "error")), 1e-9)
		})
	}
}

// --- region analysis ---

func TestAnalyzeRegion_RequestBody(t *testing.T) {
	region := triangle(t)
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/map/analyze-region", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Polygon [][2]float64 `json:"polygon"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, [][2]float64{{35.10, 129.05}, {35.11, 129.06}, {35.10, 129.07}}, req.Polygon)

		_, _ = w.Write([]byte(`{
			"urgency_score": 72,
			"sentiment_breakdown": {"부정": 0.7, "중립": 0.3},
			"chart_data": {"categories": ["소음", "파손"], "counts": [5, 3]},
			"themes": {"보행 안전": ["보도블록 파손"]},
			"context": "소음 민원 집중",
			"report": "## 요약"
		}`))
	})

	got, err := c.AnalyzeRegion(context.Background(), region)
	require.NoError(t, err)

	want := domain.RegionAnalysisResult{
		UrgencyScore:       72,
		SentimentBreakdown: map[string]float64{"부정": 0.7, "중립": 0.3},
		ChartData:          domain.ChartData{Categories: []string{"소음", "파손"}, Counts: []int{5, 3}},
		Themes:             map[string][]string{"보행 안전": {"보도블록 파손"}},
		Context:            "소음 민원 집중",
		Report:             "## 요약",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AnalyzeRegion mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeRegion_Normalizes(t *testing.T) {
	c, _ := testClient(t, respond(http.StatusOK, `{"urgency_score": 140, "chart_data": {"categories": [], "counts": []}}`))
	got, err := c.AnalyzeRegion(context.Background(), triangle(t))
	require.NoError(t, err)

	assert.Equal(t, 100, got.UrgencyScore)
	assert.NotNil(t, got.SentimentBreakdown)
	assert.NotNil(t, got.Themes)
}

func TestAnalyzeRegion_ChartShapeMismatch(t *testing.T) {
	c, _ := testClient(t, respond(http.StatusOK, `{"chart_data": {"categories": ["a","b"], "counts": [1]}}`))
	_, err := c.AnalyzeRegion(context.Background(), triangle(t))

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.ErrorIs(t, err, domain.ErrChartShape)
}

func TestAnalyzeRegion_HTTPError(t *testing.T) {
	c, _ := testClient(t, respond(http.StatusInternalServerError, `{"detail":"graph failed"}`))
	_, err := c.AnalyzeRegion(context.Background(), triangle(t))

	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, `{"detail":"graph failed"}`, httpErr.Body)
	assert.Equal(t, "server returned status 500", domain.ErrorMessage(err))
}

func TestAnalyzeRegion_NetworkError(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, `{}`))
	srv.Close()

	c := NewClient(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	_, err := c.AnalyzeRegion(context.Background(), triangle(t))

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Contains(t, domain.ErrorMessage(err), "network error:")
}

func TestAnalyzeRegion_NotBoundedByFetchTimeout(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})
	c.timeout = 20 * time.Millisecond

	_, err := c.AnalyzeRegion(context.Background(), triangle(t))
	require.NoError(t, err)
}

func TestFetch_BoundedByTimeout(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	})
	c.timeout = 20 * time.Millisecond

	_, err := c.FetchMapItems(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

// --- complaint analysis, readiness ---

func TestAnalyzeComplaint(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/complaint/42/analyze", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"complaint": {"summary":"가로등 고장","original_text":"꺼져 있어요","category":"시설","location":"연산동","urgency_score":70,"safety_risk_score":7},
			"analysis_report": "## 분석"
		}`))
	})

	got, err := c.AnalyzeComplaint(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, ComplaintReport{
		Complaint: ComplaintSummary{
			Summary:         "가로등 고장",
			OriginalText:    "꺼져 있어요",
			Category:        "시설",
			Location:        "연산동",
			UrgencyScore:    70,
			SafetyRiskScore: 7,
		},
		AnalysisReport: "## 분석",
	}, got)
}

func TestAnalyzeComplaint_NotFound(t *testing.T) {
	c, _ := testClient(t, respond(http.StatusNotFound, `{"detail":"Complaint not found"}`))
	_, err := c.AnalyzeComplaint(context.Background(), "999")

	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.False(t, httpErr.Retryable())
}

func TestCheckReadiness(t *testing.T) {
	ok, _ := testClient(t, respond(http.StatusOK, `{"status":"Busan AI Platform Backend Running"}`))
	require.NoError(t, ok.CheckReadiness(context.Background()))

	down, _ := testClient(t, respond(http.StatusServiceUnavailable, ``))
	require.Error(t, down.CheckReadiness(context.Background()))
}
