package spatial

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/domain"
)

type Service interface {
	// Records returns stored incidents for month within the search radius.
	Records(ctx context.Context, month domain.Month, lat, lng float64) ([]domain.Incident, error)
	// CountsByMonth counts stored incidents per month, restricted to months
	// the fetch cache knows for locationKey. Zero months are omitted.
	CountsByMonth(ctx context.Context, locationKey string, lat, lng float64) (map[domain.Month]int, error)
	// MonthlyCounts returns one entry per known month in ascending order,
	// including months with zero incidents, flagging current.
	MonthlyCounts(ctx context.Context, locationKey string, lat, lng float64, current domain.Month) ([]domain.MonthCount, error)
}

type service struct {
	log       zerolog.Logger
	incidents domain.IncidentRepo
	cache     domain.FetchCacheRepo
	radius    float64
}

func NewService(log zerolog.Logger, incidents domain.IncidentRepo, cache domain.FetchCacheRepo, radius float64) Service {
	if radius <= 0 {
		radius = domain.DefaultSearchRadius
	}

	return &service{
		log:       log.With().Str("module", "spatial").Logger(),
		incidents: incidents,
		cache:     cache,
		radius:    radius,
	}
}

func (s *service) Records(ctx context.Context, month domain.Month, lat, lng float64) ([]domain.Incident, error) {
	records, err := s.incidents.QueryByMonthAndBoundingBox(ctx, month, lat, lng, s.radius)
	if err != nil {
		return nil, errors.Wrapf(err, "query incidents for %s", month)
	}
	return records, nil
}

func (s *service) CountsByMonth(ctx context.Context, locationKey string, lat, lng float64) (map[domain.Month]int, error) {
	months, err := s.cache.MonthsKnown(ctx, locationKey)
	if err != nil {
		return nil, errors.Wrapf(err, "known months for %s", locationKey)
	}

	counts, err := s.incidents.CountByMonth(ctx, months, lat, lng, s.radius)
	if err != nil {
		return nil, errors.Wrapf(err, "count incidents for %s", locationKey)
	}

	return counts, nil
}

func (s *service) MonthlyCounts(ctx context.Context, locationKey string, lat, lng float64, current domain.Month) ([]domain.MonthCount, error) {
	months, err := s.cache.MonthsKnown(ctx, locationKey)
	if err != nil {
		return nil, errors.Wrapf(err, "known months for %s", locationKey)
	}

	counts, err := s.incidents.CountByMonth(ctx, months, lat, lng, s.radius)
	if err != nil {
		return nil, errors.Wrapf(err, "count incidents for %s", locationKey)
	}

	result := make([]domain.MonthCount, 0, len(months))
	for _, m := range months {
		result = append(result, domain.MonthCount{
			Month:   m,
			Count:   counts[m],
			Current: m == current,
		})
	}

	s.log.Debug().Str("location_key", locationKey).Int("months", len(result)).Msg("Built monthly counts")

	return result, nil
}
