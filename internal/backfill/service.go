package backfill

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/metrics"
)

// ErrMostRecentUnknown is returned when a backfill has no upper bound.
var ErrMostRecentUnknown = errors.New("most recent published month is unknown")

// Request describes the location and bounds of a backfill.
type Request struct {
	LocationKey string
	Lat         float64
	Lng         float64
	// Processed is skipped because the caller has just fetched it. The zero
	// month skips nothing.
	Processed  domain.Month
	MostRecent domain.Month
}

// Progress is emitted after each month is recorded.
type Progress struct {
	Month   domain.Month `json:"month"`
	Index   int          `json:"index"`
	Total   int          `json:"total"`
	Fetched int          `json:"fetched"`
	Added   int          `json:"added"`
}

// Report summarises a backfill run.
type Report struct {
	Pending         int  `json:"pending"`
	MonthsFetched   int  `json:"months_fetched"`
	RecordsAdded    int  `json:"records_added"`
	AlreadyComplete bool `json:"already_complete"`
	Cancelled       bool `json:"cancelled"`
}

type Service interface {
	// Pending lists the months in [DataFloor, MostRecent] that still need
	// fetching for the request's location, in ascending order.
	Pending(ctx context.Context, req Request) ([]domain.Month, error)
	// Run fetches and records every pending month. Each month is committed
	// on its own, so a cancelled run leaves only complete months behind and
	// a later run resumes from the rest.
	Run(ctx context.Context, req Request, progress chan<- Progress) (Report, error)
}

type service struct {
	log     zerolog.Logger
	fetcher domain.Fetcher
	cache   domain.FetchCacheRepo
	metrics *metrics.Metrics
}

func NewService(log zerolog.Logger, fetcher domain.Fetcher, cache domain.FetchCacheRepo, m *metrics.Metrics) Service {
	return &service{
		log:     log.With().Str("module", "backfill").Logger(),
		fetcher: fetcher,
		cache:   cache,
		metrics: m,
	}
}

func (s *service) Pending(ctx context.Context, req Request) ([]domain.Month, error) {
	if req.MostRecent.IsZero() {
		return nil, ErrMostRecentUnknown
	}

	known, err := s.cache.MonthsKnown(ctx, req.LocationKey)
	if err != nil {
		return nil, errors.Wrapf(err, "known months for %s", req.LocationKey)
	}

	seen := make(map[domain.Month]struct{}, len(known)+1)
	for _, m := range known {
		seen[m] = struct{}{}
	}
	if !req.Processed.IsZero() {
		seen[req.Processed] = struct{}{}
	}

	pending := []domain.Month{}
	for _, m := range domain.MonthRange(domain.DataFloor, req.MostRecent) {
		if _, ok := seen[m]; !ok {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

func (s *service) Run(ctx context.Context, req Request, progress chan<- Progress) (Report, error) {
	log := s.log.With().Str("location_key", req.LocationKey).Logger()

	pending, err := s.Pending(ctx, req)
	if err != nil {
		return Report{}, err
	}

	report := Report{Pending: len(pending)}
	if len(pending) == 0 {
		report.AlreadyComplete = true
		log.Info().Msg("Database up to date, no months left to fetch")
		return report, nil
	}

	log.Info().Int("months", len(pending)).Msgf("Fetching %d months from %s to %s", len(pending), pending[0], pending[len(pending)-1])

	for i, month := range pending {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			return report, err
		}

		records, err := s.fetcher.Fetch(ctx, req.Lat, req.Lng, month)
		if err != nil {
			report.Cancelled = true
			return report, err
		}

		added, err := s.cache.RecordFetch(ctx, domain.FetchCacheEntry{
			LocationKey: req.LocationKey,
			Month:       month,
			Lat:         req.Lat,
			Lng:         req.Lng,
			RecordCount: len(records),
		}, records)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Cancelled = true
				return report, ctxErr
			}
			return report, errors.Wrapf(err, "record %s", month)
		}

		report.MonthsFetched++
		report.RecordsAdded += added
		s.metrics.BackfillMonths.Inc()
		s.metrics.IncidentsInserted.Add(float64(added))

		log.Debug().Stringer("month", month).Int("fetched", len(records)).Int("added", added).Msg("Backfilled month")

		if progress != nil {
			select {
			case progress <- Progress{Month: month, Index: i + 1, Total: len(pending), Fetched: len(records), Added: added}:
			case <-ctx.Done():
			}
		}
	}

	log.Info().Int("months", report.MonthsFetched).Int("added", report.RecordsAdded).Msg("Backfill complete")

	return report, nil
}
