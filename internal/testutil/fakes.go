package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/varoOP/crimedb/internal/domain"
)

// Fetcher is an in-memory domain.Fetcher returning canned incidents per
// month and recording every call.
type Fetcher struct {
	mu         sync.Mutex
	mostRecent domain.Month
	known      bool
	perMonth   map[domain.Month][]domain.Incident
	calls      []domain.Month
}

// NewFetcher returns a fetcher reporting mostRecent as the latest published
// month. A zero month means unknown.
func NewFetcher(mostRecent domain.Month) *Fetcher {
	return &Fetcher{
		mostRecent: mostRecent,
		known:      !mostRecent.IsZero(),
		perMonth:   make(map[domain.Month][]domain.Incident),
	}
}

// SetIncidents makes month return n incidents at lat/lng.
func (f *Fetcher) SetIncidents(month domain.Month, n int, lat, lng float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perMonth[month] = Incidents(month, n, lat, lng)
}

func (f *Fetcher) Fetch(ctx context.Context, _, _ float64, month domain.Month) ([]domain.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, month)

	out := append([]domain.Incident{}, f.perMonth[month]...)
	return out, nil
}

func (f *Fetcher) LastUpdated(context.Context) (domain.Month, bool) {
	return f.mostRecent, f.known
}

// Calls returns the months fetched so far, in call order.
func (f *Fetcher) Calls() []domain.Month {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Month(nil), f.calls...)
}

// CallsFor counts fetches of month.
func (f *Fetcher) CallsFor(month domain.Month) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.calls {
		if m == month {
			n++
		}
	}
	return n
}

var ErrUnknownLocation = errors.New("unknown test location")

// Resolver resolves locations from a fixed table keyed by normalised
// location.
type Resolver struct {
	mu     sync.Mutex
	coords map[string]domain.Coordinates
	calls  int
}

func NewResolver(coords map[string]domain.Coordinates) *Resolver {
	normalised := make(map[string]domain.Coordinates, len(coords))
	for k, v := range coords {
		normalised[domain.NormalizeLocationKey(k)] = v
	}
	return &Resolver{coords: normalised}
}

func (r *Resolver) Resolve(_ context.Context, location string) (domain.Coordinates, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++

	c, ok := r.coords[domain.NormalizeLocationKey(location)]
	if !ok {
		return domain.Coordinates{}, errors.Wrap(ErrUnknownLocation, location)
	}
	return c, nil
}

func (r *Resolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Incidents builds n distinct incidents for month at lat/lng.
func Incidents(month domain.Month, n int, lat, lng float64) []domain.Incident {
	out := make([]domain.Incident, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Incident{
			ID:         fmt.Sprintf("%s-%.4f-%.4f-%d", month, lat, lng, i),
			Category:   "anti-social-behaviour",
			Month:      month.String(),
			Lat:        lat,
			Lng:        lng,
			StreetName: "On or near Test Street",
		})
	}
	return out
}
