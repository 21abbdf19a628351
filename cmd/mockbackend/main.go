// Command mockbackend serves demo complaint data over the analysis backend's
// HTTP API so the console can run without the real backend.
//
// Usage:
//
//	go run ./cmd/mockbackend -addr :8000 -delay 2s
//	go run ./cmd/mockbackend -fixtures data/fixtures.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/complaint-map-console/internal/mockapi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mock backend failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8000", "listen address")
	fixturesPath := flag.String("fixtures", "", "YAML fixtures file (default: built-in Busan demo data)")
	delay := flag.Duration("delay", 0, "artificial latency added to analysis responses")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fixtures, err := loadFixtures(*fixturesPath)
	if err != nil {
		return err
	}
	logger.Info("fixtures loaded",
		"complaints", len(fixtures.Complaints),
		"labels", len(fixtures.WordCloud),
		"heat_points", len(fixtures.Heatmap))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mockapi.NewServer(fixtures, mockapi.Options{Delay: *delay}, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock backend listening", "addr", *addr, "delay", *delay)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadFixtures(path string) (mockapi.Fixtures, error) {
	if path == "" {
		return mockapi.DefaultFixtures()
	}
	return mockapi.LoadFixtures(path)
}
