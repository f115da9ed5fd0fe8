package app

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/backfill"
	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/metrics"
	"github.com/varoOP/crimedb/internal/spatial"
)

// ErrUnresolvableLocation is returned when a location cannot be turned into
// coordinates. Nothing is fetched or cached in that case.
var ErrUnresolvableLocation = errors.New("cannot resolve location")

type Source string

const (
	SourceCache Source = "cache"
	SourceAPI   Source = "api"
)

type QueryOptions struct {
	SkipBackfill bool
}

// QueryResult is the answer to an interactive query.
type QueryResult struct {
	Location    string              `json:"location" yaml:"location"`
	LocationKey string              `json:"location_key" yaml:"location_key"`
	Lat         float64             `json:"lat" yaml:"lat"`
	Lng         float64             `json:"lng" yaml:"lng"`
	Month       domain.Month        `json:"month" yaml:"month"`
	MostRecent  domain.Month        `json:"most_recent,omitzero" yaml:"most_recent,omitempty"`
	Source      Source              `json:"source" yaml:"source"`
	FetchedAt   time.Time           `json:"fetched_at" yaml:"fetched_at"`
	Records     []domain.Incident   `json:"records" yaml:"records"`
	NewRecords  int                 `json:"new_records" yaml:"new_records"`
	Warning     string              `json:"warning,omitempty" yaml:"warning,omitempty"`
	Counts      []domain.MonthCount `json:"counts" yaml:"counts"`

	BackfillJobID string        `json:"backfill_job_id,omitempty" yaml:"backfill_job_id,omitempty"`
	Backfill      *backfill.Job `json:"-" yaml:"-"`
}

// CountsResult holds per-month counts for one location.
type CountsResult struct {
	LocationKey string              `json:"location_key" yaml:"location_key"`
	Lat         float64             `json:"lat" yaml:"lat"`
	Lng         float64             `json:"lng" yaml:"lng"`
	Counts      []domain.MonthCount `json:"counts" yaml:"counts"`
}

// Deps are the collaborators an App is built from.
type Deps struct {
	Config     *domain.Config
	Clock      clockwork.Clock
	Resolver   domain.CoordinateResolver
	Fetcher    domain.Fetcher
	Incidents  domain.IncidentRepo
	FetchCache domain.FetchCacheRepo
	Spatial    spatial.Service
	Backfills  *backfill.Manager
	Export     domain.ExportRepository
	Metrics    *metrics.Metrics
	// Ping reports store health; nil means always healthy.
	Ping func(ctx context.Context) error
	// Closers run in order on Shutdown after backfills stop.
	Closers []func() error
}

// App answers crime queries for a location and month, keeping the local
// store and fetch cache up to date.
type App struct {
	log        zerolog.Logger
	config     *domain.Config
	clock      clockwork.Clock
	resolver   domain.CoordinateResolver
	fetcher    domain.Fetcher
	incidents  domain.IncidentRepo
	fetchCache domain.FetchCacheRepo
	spatial    spatial.Service
	backfills  *backfill.Manager
	export     domain.ExportRepository
	metrics    *metrics.Metrics
	ping       func(ctx context.Context) error
	closers    []func() error
}

func New(log zerolog.Logger, deps Deps) *App {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	return &App{
		log:        log.With().Str("module", "app").Logger(),
		config:     deps.Config,
		clock:      deps.Clock,
		resolver:   deps.Resolver,
		fetcher:    deps.Fetcher,
		incidents:  deps.Incidents,
		fetchCache: deps.FetchCache,
		spatial:    deps.Spatial,
		backfills:  deps.Backfills,
		export:     deps.Export,
		metrics:    deps.Metrics,
		ping:       deps.Ping,
		closers:    deps.Closers,
	}
}

// DefaultMonth is the calendar month before the current one.
func (a *App) DefaultMonth() domain.Month {
	return domain.MonthOf(a.clock.Now()).Prev()
}

type target struct {
	location string
	key      string
	coords   domain.Coordinates
	month    domain.Month
}

// prepare validates the month before touching the network, then resolves
// the location.
func (a *App) prepare(ctx context.Context, location, month string) (target, error) {
	m, err := domain.ValidateMonth(month, domain.Month{})
	if err != nil {
		return target{}, err
	}

	if strings.TrimSpace(location) == "" {
		return target{}, errors.Wrap(ErrUnresolvableLocation, "empty location")
	}

	coords, err := a.resolver.Resolve(ctx, location)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return target{}, ctxErr
		}
		return target{}, errors.Wrapf(ErrUnresolvableLocation, "%s: %v", location, err)
	}

	return target{
		location: location,
		key:      domain.NormalizeLocationKey(location),
		coords:   coords,
		month:    m,
	}, nil
}

// Query returns incidents near location for month, from the fetch cache
// when the pair has been fetched before and from the source otherwise. When
// the most recent published month is known it also starts a background
// backfill of every other month for the location.
func (a *App) Query(ctx context.Context, location, month string, opts QueryOptions) (*QueryResult, error) {
	if _, err := domain.ValidateMonth(month, domain.Month{}); err != nil {
		return nil, err
	}

	mostRecent, known := a.fetcher.LastUpdated(ctx)

	var warning string
	if known {
		if _, err := domain.ValidateMonth(month, mostRecent); domain.IsWarning(err) {
			if a.config.StrictMonths {
				return nil, err
			}
			warning = err.Error()
			a.log.Warn().Str("month", month).Stringer("most_recent", mostRecent).Msg("Month is after the most recent published data")
		}
	}

	t, err := a.prepare(ctx, location, month)
	if err != nil {
		return nil, err
	}

	log := a.log.With().Str("location_key", t.key).Stringer("month", t.month).Logger()

	result := &QueryResult{
		Location:    location,
		LocationKey: t.key,
		Lat:         t.coords.Lat,
		Lng:         t.coords.Lng,
		Month:       t.month,
		MostRecent:  mostRecent,
		Warning:     warning,
	}

	entry, found, err := a.fetchCache.Lookup(ctx, t.key, t.month)
	if err != nil {
		return nil, errors.Wrap(err, "fetch cache lookup")
	}

	if found {
		a.metrics.CacheLookups.WithLabelValues("hit").Inc()

		records, err := a.spatial.Records(ctx, t.month, t.coords.Lat, t.coords.Lng)
		if err != nil {
			return nil, err
		}
		result.Source = SourceCache
		result.FetchedAt = entry.FetchedAt
		result.Records = records

		if entry.RecordCount == 0 {
			log.Info().Msg("Cache shows no crimes for this location and month")
		} else {
			log.Info().Int("records", len(records)).Msg("Loaded crimes from cache")
		}
	} else {
		a.metrics.CacheLookups.WithLabelValues("miss").Inc()

		if err := a.fetchAndRecord(ctx, t, result); err != nil {
			return nil, err
		}
	}

	counts, err := a.spatial.MonthlyCounts(ctx, t.key, t.coords.Lat, t.coords.Lng, t.month)
	if err != nil {
		return nil, err
	}
	result.Counts = counts

	if !opts.SkipBackfill {
		if known {
			job := a.backfills.Start(backfill.Request{
				LocationKey: t.key,
				Lat:         t.coords.Lat,
				Lng:         t.coords.Lng,
				Processed:   t.month,
				MostRecent:  mostRecent,
			})
			result.Backfill = job
			result.BackfillJobID = job.ID
		} else {
			log.Warn().Msg("Most recent published month unknown, skipping backfill")
		}
	}

	return result, nil
}

// Refetch bypasses the fetch cache for one location and month, replacing
// its entry. It repairs months cached as empty after a source outage.
func (a *App) Refetch(ctx context.Context, location, month string) (*QueryResult, error) {
	t, err := a.prepare(ctx, location, month)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Location:    location,
		LocationKey: t.key,
		Lat:         t.coords.Lat,
		Lng:         t.coords.Lng,
		Month:       t.month,
	}

	if err := a.fetchAndRecord(ctx, t, result); err != nil {
		return nil, err
	}

	counts, err := a.spatial.MonthlyCounts(ctx, t.key, t.coords.Lat, t.coords.Lng, t.month)
	if err != nil {
		return nil, err
	}
	result.Counts = counts

	return result, nil
}

func (a *App) fetchAndRecord(ctx context.Context, t target, result *QueryResult) error {
	records, err := a.fetcher.Fetch(ctx, t.coords.Lat, t.coords.Lng, t.month)
	if err != nil {
		return err
	}

	fetchedAt := a.clock.Now().UTC().Truncate(time.Second)
	added, err := a.fetchCache.RecordFetch(ctx, domain.FetchCacheEntry{
		LocationKey: t.key,
		Month:       t.month,
		Lat:         t.coords.Lat,
		Lng:         t.coords.Lng,
		RecordCount: len(records),
		FetchedAt:   fetchedAt,
	}, records)
	if err != nil {
		return errors.Wrap(err, "record fetch")
	}

	a.metrics.IncidentsInserted.Add(float64(added))
	a.log.Info().
		Str("location_key", t.key).
		Stringer("month", t.month).
		Int("fetched", len(records)).
		Int("added", added).
		Msg("Fetched crimes from source")

	result.Source = SourceAPI
	result.FetchedAt = fetchedAt
	result.Records = records
	result.NewRecords = added

	return nil
}

// Backfill starts, or returns the running, backfill for location covering
// every published month not yet cached.
func (a *App) Backfill(ctx context.Context, location string) (*backfill.Job, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.Wrap(ErrUnresolvableLocation, "empty location")
	}

	mostRecent, known := a.fetcher.LastUpdated(ctx)
	if !known {
		return nil, backfill.ErrMostRecentUnknown
	}

	coords, err := a.resolver.Resolve(ctx, location)
	if err != nil {
		return nil, errors.Wrapf(ErrUnresolvableLocation, "%s: %v", location, err)
	}

	return a.backfills.Start(backfill.Request{
		LocationKey: domain.NormalizeLocationKey(location),
		Lat:         coords.Lat,
		Lng:         coords.Lng,
		MostRecent:  mostRecent,
	}), nil
}

// BackfillJob looks up a running or recently finished backfill.
func (a *App) BackfillJob(id string) (*backfill.Job, bool) {
	return a.backfills.Get(id)
}

// Counts returns per-month counts over every cached month for location,
// flagging current.
func (a *App) Counts(ctx context.Context, location string, current domain.Month) (*CountsResult, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.Wrap(ErrUnresolvableLocation, "empty location")
	}

	coords, err := a.resolver.Resolve(ctx, location)
	if err != nil {
		return nil, errors.Wrapf(ErrUnresolvableLocation, "%s: %v", location, err)
	}

	key := domain.NormalizeLocationKey(location)
	counts, err := a.spatial.MonthlyCounts(ctx, key, coords.Lat, coords.Lng, current)
	if err != nil {
		return nil, err
	}

	return &CountsResult{LocationKey: key, Lat: coords.Lat, Lng: coords.Lng, Counts: counts}, nil
}

// Stats summarises the local store.
func (a *App) Stats(ctx context.Context) (*domain.Stats, error) {
	total, err := a.incidents.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count incidents")
	}

	locations, err := a.fetchCache.Locations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list locations")
	}

	return &domain.Stats{Incidents: total, Locations: locations}, nil
}

// Export runs a query without starting a backfill and writes its records to
// path.
func (a *App) Export(ctx context.Context, location, month, path string) (*QueryResult, error) {
	result, err := a.Query(ctx, location, month, QueryOptions{SkipBackfill: true})
	if err != nil {
		return nil, err
	}

	if err := a.export.Store(ctx, path, result.Records); err != nil {
		return nil, errors.Wrap(err, "export records")
	}

	return result, nil
}

// ReadExport loads records previously written by Export.
func (a *App) ReadExport(ctx context.Context, path string) ([]domain.Incident, error) {
	records, err := a.export.Get(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read export %s", path)
	}
	return records, nil
}

// Ready reports whether the store is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.ping == nil {
		return nil
	}
	return a.ping(ctx)
}

// Shutdown stops running backfills and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := a.backfills.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Backfills did not stop in time")
		firstErr = err
	}

	for _, closer := range a.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
