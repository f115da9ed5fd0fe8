package domain

import (
	"context"
)

// IncidentRepo stores incidents keyed by their source ID.
type IncidentRepo interface {
	// InsertAll adds incidents whose IDs are not yet stored and returns how
	// many were new. Existing IDs are left untouched.
	InsertAll(ctx context.Context, incidents []Incident) (int, error)
	QueryByMonthAndBoundingBox(ctx context.Context, month Month, lat, lng, radius float64) ([]Incident, error)
	// CountByMonth counts incidents in the box for each of the given months.
	// Months with no incidents are omitted.
	CountByMonth(ctx context.Context, months []Month, lat, lng, radius float64) (map[Month]int, error)
	Count(ctx context.Context) (int, error)
}

// ExportRepository writes incident listings to files.
type ExportRepository interface {
	Store(ctx context.Context, path string, incidents []Incident) error
	Get(ctx context.Context, path string) ([]Incident, error)
}

// Fetcher retrieves incidents and publication metadata from the source.
type Fetcher interface {
	// Fetch returns the incidents near lat/lng for month. Source failures
	// yield an empty result; the only error is context cancellation.
	Fetch(ctx context.Context, lat, lng float64, month Month) ([]Incident, error)
	// LastUpdated returns the most recent published month, if known.
	LastUpdated(ctx context.Context) (Month, bool)
}

// CoordinateResolver turns a location such as a postcode into coordinates.
type CoordinateResolver interface {
	Resolve(ctx context.Context, location string) (Coordinates, error)
}

// Stats summarises the local store.
type Stats struct {
	Incidents int               `json:"incidents" yaml:"incidents"`
	Locations []LocationSummary `json:"locations" yaml:"locations"`
}
