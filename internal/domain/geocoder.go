package domain

import "context"

// DefaultAddressLabel is shown until the first successful reverse geocode.
const DefaultAddressLabel = "부산광역시 연제구 (중심)"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string // display label for the map center
	City             string
	District         string
	Neighborhood     string
	Confidence       float64 // 0.0–1.0 provider confidence score, 0 when unknown
}

// Geocoder resolves a map center to a human-readable address.
type Geocoder interface {
	// ReverseGeocode converts coordinates to place details. An empty
	// FormattedAddress with a nil error means the provider had no match.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
