package geocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS reverse_geocode_cache (
    key               TEXT PRIMARY KEY,
    lat               REAL NOT NULL,
    lon               REAL NOT NULL,
    formatted_address TEXT NOT NULL,
    city              TEXT NOT NULL DEFAULT '',
    district          TEXT NOT NULL DEFAULT '',
    neighborhood      TEXT NOT NULL DEFAULT '',
    confidence        REAL NOT NULL DEFAULT 0,
    cached_at         TEXT NOT NULL
);`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	DB *sql.DB
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache %q: %w", path, err)
	}
	// SQLite permits a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verify geocode cache %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create geocode cache table: %w", err)
	}
	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (domain.GeocodingResult, bool, error) {
	if s.DB == nil {
		return domain.GeocodingResult{}, false, errors.New("geocode cache: db is nil")
	}

	var r domain.GeocodingResult
	err := s.DB.QueryRowContext(ctx, `
	SELECT
        lat,
        lon,
        formatted_address,
        city,
        district,
        neighborhood,
        confidence
    FROM reverse_geocode_cache
    WHERE key = ?;
	`, key).Scan(&r.Lat, &r.Lon, &r.FormattedAddress, &r.City, &r.District, &r.Neighborhood, &r.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GeocodingResult{}, false, nil
	}
	if err != nil {
		return domain.GeocodingResult{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	return r, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, r domain.GeocodingResult) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert geocode cache: empty key")
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT OR REPLACE INTO reverse_geocode_cache (
        key,
        lat,
        lon,
        formatted_address,
        city,
        district,
        neighborhood,
        confidence,
        cached_at
    )
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, key, r.Lat, r.Lon, r.FormattedAddress, r.City, r.District, r.Neighborhood, r.Confidence,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert geocode cache key=%q: %w", key, err)
	}
	return nil
}

// CheckReadiness verifies the database is reachable.
func (s *SQLiteStore) CheckReadiness(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
