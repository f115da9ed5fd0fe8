package domain

import (
	"math"

	"github.com/pkg/errors"
)

// DefaultSearchRadius is the half-width, in degrees, of the square searched
// around a location.
const DefaultSearchRadius = 0.02

var ErrMalformedIncident = errors.New("malformed incident")

// Incident is a single street-level crime record as published by the source.
type Incident struct {
	ID         string  `json:"id" yaml:"id"`
	Category   string  `json:"category" yaml:"category"`
	Month      string  `json:"month" yaml:"month"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lng        float64 `json:"lng" yaml:"lng"`
	StreetName string  `json:"street_name" yaml:"street_name"`
}

// Validate checks the fields required to persist an incident.
func (i Incident) Validate() error {
	if i.ID == "" {
		return errors.Wrap(ErrMalformedIncident, "missing id")
	}
	if i.Month == "" {
		return errors.Wrapf(ErrMalformedIncident, "incident %s missing month", i.ID)
	}
	if !finite(i.Lat) || !finite(i.Lng) {
		return errors.Wrapf(ErrMalformedIncident, "incident %s has non-finite coordinates", i.ID)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// BoundingBox is an axis-aligned lat/lng square. Bounds are inclusive.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

func NewBoundingBox(lat, lng, radius float64) BoundingBox {
	return BoundingBox{
		MinLat: lat - radius,
		MaxLat: lat + radius,
		MinLng: lng - radius,
		MaxLng: lng + radius,
	}
}

func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// MonthCount is the number of stored incidents near a location in one month.
type MonthCount struct {
	Month   Month `json:"month" yaml:"month"`
	Count   int   `json:"count" yaml:"count"`
	Current bool  `json:"current,omitempty" yaml:"current,omitempty"`
}
