package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/complaint-map-console/internal/adapter/backend"
	"github.com/couchcryptid/complaint-map-console/internal/adapter/geocache"
	"github.com/couchcryptid/complaint-map-console/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/complaint-map-console/internal/adapter/kafka"
	"github.com/couchcryptid/complaint-map-console/internal/adapter/mapbox"
	"github.com/couchcryptid/complaint-map-console/internal/adapter/nominatim"
	"github.com/couchcryptid/complaint-map-console/internal/analysis"
	"github.com/couchcryptid/complaint-map-console/internal/config"
	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/layersync"
	"github.com/couchcryptid/complaint-map-console/internal/observability"
	"github.com/couchcryptid/complaint-map-console/internal/report"
	"github.com/couchcryptid/complaint-map-console/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.TracingServiceName,
		SampleRatio: 1.0,
	}, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownTracing(shutdownTracing, logger)

	api := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger, metrics)
	ready := httpadapter.AllReady{api}

	// Reverse geocoder (GEOCODER_PROVIDER), cached in memory and optionally in SQLite.
	var geocoder domain.Geocoder
	var store *geocache.SQLiteStore
	switch cfg.GeocoderProvider {
	case config.GeocoderNominatim:
		geocoder = nominatim.NewClient(cfg.NominatimURL, cfg.GeocoderUserAgent, cfg.GeocodeTimeout, logger, metrics)
	case config.GeocoderMapbox:
		geocoder = mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, logger, metrics)
	}
	if geocoder != nil {
		var persistent geocache.Store
		if cfg.GeocodeCacheDB != "" {
			store, err = geocache.OpenSQLite(ctx, cfg.GeocodeCacheDB)
			if err != nil {
				logger.Error("failed to open geocode cache", "error", err)
				os.Exit(1)
			}
			persistent = store
			ready = append(ready, store)
		}
		geocoder = geocache.NewCachedGeocoder(geocoder, cfg.GeocodeCacheSize, persistent, logger, metrics)
		logger.Info("reverse geocoding enabled", "provider", cfg.GeocoderProvider,
			"cache_size", cfg.GeocodeCacheSize, "cache_db", cfg.GeocodeCacheDB, "timeout", cfg.GeocodeTimeout)
	} else {
		logger.Info("reverse geocoding disabled")
	}

	// Analysis event stream (KAFKA_ENABLED).
	var publisher analysis.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("analysis events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAnalysisTopic)
	}

	renderer := report.NewRenderer()
	hub := session.NewHub(session.Config{
		Style: cfg.MapStyle,
		Engine: layersync.EngineConfig{
			Poll: layersync.PollerConfig{
				Interval: cfg.PollInterval,
				Retries:  cfg.PollRetries,
			},
			GeocodeTimeout: cfg.GeocodeTimeout,
		},
		Analysis: analysis.Config{Timeout: cfg.AnalysisTimeout},
	}, session.Deps{
		Source:    api,
		Analyzer:  api,
		Geocoder:  geocoder,
		Publisher: publisher,
		Renderer:  renderer,
		Logger:    logger,
		Metrics:   metrics,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, httpadapter.Routes{
		Hub:        hub,
		Complaints: api,
		Renderer:   renderer,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	hub.Shutdown()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("geocode cache close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
