// Package backend is the HTTP client for the complaint analysis backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

const (
	endpointItems          = "map_items"
	endpointHeatmap        = "heatmap"
	endpointAnalyzeRegion  = "analyze_region"
	endpointComplaintIntel = "complaint_analyze"
	endpointRoot           = "root"

	maxErrorBody = 512
)

// Client calls the backend's map and analysis endpoints.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
}

// NewClient creates a backend client. The timeout bounds overlay fetches and
// readiness checks; analysis calls run under the caller's context deadline.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("github.com/couchcryptid/complaint-map-console/internal/adapter/backend"),
	}
}

// FetchMapItems returns the current word-cloud labels.
func (c *Client) FetchMapItems(ctx context.Context) ([]domain.OverlayPoint, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	var items []mapItem
	if err := c.do(ctx, endpointItems, http.MethodGet, "/api/map/items", nil, &items); err != nil {
		return nil, err
	}
	out := make([]domain.OverlayPoint, 0, len(items))
	for i, it := range items {
		p := it.toDomain()
		if !p.Position.Valid() {
			return nil, &domain.ParseError{Op: endpointItems, Err: fmt.Errorf("item %d: %w", i, domain.ErrInvalidCoordinate)}
		}
		out = append(out, p)
	}
	return out, nil
}

// FetchHeatmap returns the current heat samples.
func (c *Client) FetchHeatmap(ctx context.Context) ([]domain.HeatSample, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	var rows [][]float64
	if err := c.do(ctx, endpointHeatmap, http.MethodGet, "/api/map/heatmap", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.HeatSample, 0, len(rows))
	for i, row := range rows {
		s, err := heatSampleFromRow(row)
		if err != nil {
			return nil, &domain.ParseError{Op: endpointHeatmap, Err: fmt.Errorf("row %d: %w", i, err)}
		}
		out = append(out, s)
	}
	return out, nil
}

// AnalyzeRegion requests the AI analysis of the complaints inside region.
// The polygon is sent exactly as drawn.
func (c *Client) AnalyzeRegion(ctx context.Context, region domain.Region) (domain.RegionAnalysisResult, error) {
	body, err := json.Marshal(analyzeRegionRequest{Polygon: region.Polygon()})
	if err != nil {
		return domain.RegionAnalysisResult{}, fmt.Errorf("encode analyze request: %w", err)
	}

	var result domain.RegionAnalysisResult
	if err := c.do(ctx, endpointAnalyzeRegion, http.MethodPost, "/api/map/analyze-region", body, &result); err != nil {
		return domain.RegionAnalysisResult{}, err
	}
	result, err = result.Normalize()
	if err != nil {
		return domain.RegionAnalysisResult{}, &domain.ParseError{Op: endpointAnalyzeRegion, Err: err}
	}
	return result, nil
}

// AnalyzeComplaint fetches the AI report of a single complaint.
func (c *Client) AnalyzeComplaint(ctx context.Context, id string) (ComplaintReport, error) {
	var report ComplaintReport
	path := "/api/complaint/" + url.PathEscape(id) + "/analyze"
	if err := c.do(ctx, endpointComplaintIntel, http.MethodGet, path, nil, &report); err != nil {
		return ComplaintReport{}, err
	}
	return report, nil
}

// CheckReadiness reports whether the backend answers on its root endpoint.
func (c *Client) CheckReadiness(ctx context.Context) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.do(ctx, endpointRoot, http.MethodGet, "/", nil, nil)
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body []byte, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "backend."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	start := time.Now()
	defer func() {
		c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.HTTPError{Op: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ParseError{Op: endpoint, Err: err}
	}
	return nil
}
