package domain

import (
	"context"
	"time"
)

// FetchCacheRepo records which (location, month) pairs have been fetched
// from the source. An entry is authoritative even when RecordCount is zero.
type FetchCacheRepo interface {
	Lookup(ctx context.Context, locationKey string, month Month) (*FetchCacheEntry, bool, error)
	Upsert(ctx context.Context, entry FetchCacheEntry) error
	MonthsKnown(ctx context.Context, locationKey string) ([]Month, error)
	Delete(ctx context.Context, locationKey string, month Month) error
	Locations(ctx context.Context) ([]LocationSummary, error)

	// RecordFetch stores the fetched incidents and the cache entry in one
	// transaction and returns the number of incidents that were new.
	RecordFetch(ctx context.Context, entry FetchCacheEntry, incidents []Incident) (int, error)
}

// FetchCacheEntry is the outcome of fetching one location and month.
type FetchCacheEntry struct {
	LocationKey string    `json:"location_key" yaml:"location_key"`
	Month       Month     `json:"month" yaml:"month"`
	Lat         float64   `json:"lat" yaml:"lat"`
	Lng         float64   `json:"lng" yaml:"lng"`
	RecordCount int       `json:"record_count" yaml:"record_count"`
	FetchedAt   time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// LocationSummary aggregates the fetch cache for one location key.
type LocationSummary struct {
	LocationKey string `json:"location_key" yaml:"location_key"`
	Months      int    `json:"months" yaml:"months"`
	FirstMonth  Month  `json:"first_month" yaml:"first_month"`
	LastMonth   Month  `json:"last_month" yaml:"last_month"`
	Records     int    `json:"records" yaml:"records"`
}
