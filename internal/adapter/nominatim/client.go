// Package nominatim reverse-geocodes map centers against an OpenStreetMap
// Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
)

const (
	provider = "nominatim"

	// DefaultCity is used when the response names no city or province.
	DefaultCity = "부산광역시"
)

// Client implements domain.Geocoder using the Nominatim /reverse endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// ReverseGeocode resolves coordinates to a "city district neighbourhood" label.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	params := url.Values{
		"format":         {"json"},
		"lat":            {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', 6, 64)},
		"zoom":           {"14"},
		"addressdetails": {"1"},
	}

	start := time.Now()
	result, err := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Debug("nominatim reverse geocode failed", "lat", lat, "lon", lon, "error", err)
		return domain.GeocodingResult{}, err
	}
	result.Lat, result.Lon = lat, lon
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodingResult, error) {
	const op = "nominatim reverse geocode"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "ko")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, &domain.HTTPError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.GeocodingResult{}, &domain.ParseError{Op: op, Err: err}
	}
	// Nominatim answers {"error":"Unable to geocode"} with a 200.
	if r.Error != "" || r.Address == nil {
		return domain.GeocodingResult{}, nil
	}
	return r.Address.toDomain(), nil
}

// Nominatim API response types.

type response struct {
	Error   string   `json:"error"`
	Address *address `json:"address"`
}

type address struct {
	City          string `json:"city"`
	Province      string `json:"province"`
	CityDistrict  string `json:"city_district"`
	District      string `json:"district"`
	Borough       string `json:"borough"`
	Neighbourhood string `json:"neighbourhood"`
	Quarter       string `json:"quarter"`
	Suburb        string `json:"suburb"`
}

func (a *address) toDomain() domain.GeocodingResult {
	r := domain.GeocodingResult{
		City:         firstNonEmpty(a.City, a.Province, DefaultCity),
		District:     firstNonEmpty(a.CityDistrict, a.District, a.Borough),
		Neighborhood: firstNonEmpty(a.Neighbourhood, a.Quarter, a.Suburb),
	}
	// Fields also collapses the double space left by an empty middle part.
	r.FormattedAddress = strings.Join(strings.Fields(r.City+" "+r.District+" "+r.Neighborhood), " ")
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
