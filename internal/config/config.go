package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

// Geocoder providers.
const (
	GeocoderNominatim = "nominatim"
	GeocoderMapbox    = "mapbox"
	GeocoderNone      = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Backend API.
	BackendURL     string
	BackendTimeout time.Duration

	// Layer synchronization.
	PollInterval time.Duration
	PollRetries  int

	// Region analysis.
	AnalysisTimeout time.Duration

	// Reverse geocoding.
	GeocoderProvider  string
	NominatimURL      string
	GeocoderUserAgent string
	MapboxToken       string
	GeocodeTimeout    time.Duration
	GeocodeCacheSize  int
	GeocodeCacheDB    string

	// Analysis event stream.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaAnalysisTopic string

	// Tracing.
	TracingEnabled     bool
	TracingServiceName string

	// Map view styles, loaded from MAP_STYLE_FILE when set.
	MapStyle domain.MapStyle
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parseDuration("BACKEND_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	analysisTimeout, err := parseDuration("ANALYSIS_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	pollRetries, err := parseNonNegativeInt("POLL_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	style := domain.DefaultMapStyle()
	if path := os.Getenv("MAP_STYLE_FILE"); path != "" {
		style, err = LoadMapStyle(path)
		if err != nil {
			return nil, err
		}
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BackendURL:     strings.TrimRight(sharedcfg.EnvOrDefault("BACKEND_URL", "http://localhost:8000"), "/"),
		BackendTimeout: backendTimeout,

		PollInterval: pollInterval,
		PollRetries:  pollRetries,

		AnalysisTimeout: analysisTimeout,

		GeocoderProvider:  strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", GeocoderNominatim)),
		NominatimURL:      strings.TrimRight(sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"), "/"),
		GeocoderUserAgent: sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "BusanCivilComplaintDashboard/1.0"),
		MapboxToken:       mapboxToken,
		GeocodeTimeout:    geocodeTimeout,
		GeocodeCacheSize:  parseGeocodeCacheSize(),
		GeocodeCacheDB:    os.Getenv("GEOCODE_CACHE_DB"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAnalysisTopic: sharedcfg.EnvOrDefault("KAFKA_ANALYSIS_TOPIC", "region-analyses"),

		TracingEnabled:     os.Getenv("TRACING_ENABLED") == "true",
		TracingServiceName: sharedcfg.EnvOrDefault("TRACING_SERVICE_NAME", "complaint-map-console"),

		MapStyle: style,
	}

	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}
	switch cfg.GeocoderProvider {
	case GeocoderNominatim, GeocoderNone:
	case GeocoderMapbox:
		if cfg.MapboxToken == "" {
			return nil, errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return nil, fmt.Errorf("invalid GEOCODER_PROVIDER %q", cfg.GeocoderProvider)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaAnalysisTopic == "" {
		return nil, errors.New("KAFKA_ANALYSIS_TOPIC is required")
	}

	return cfg, nil
}

// LoadMapStyle reads a YAML style file over the built-in defaults, so a file
// only needs the keys it overrides.
func LoadMapStyle(path string) (domain.MapStyle, error) {
	style := domain.DefaultMapStyle()

	data, err := os.ReadFile(path)
	if err != nil {
		return style, fmt.Errorf("read MAP_STYLE_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, &style); err != nil {
		return style, fmt.Errorf("parse MAP_STYLE_FILE: %w", err)
	}
	if !style.Center.Valid() {
		return style, errors.New("invalid MAP_STYLE_FILE: center out of range")
	}
	if style.Zoom <= 0 {
		return style, errors.New("invalid MAP_STYLE_FILE: zoom must be positive")
	}
	return style, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseGeocodeCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
