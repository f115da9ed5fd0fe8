package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/crimedb/internal/domain"
)

// IncidentRepo implements domain.IncidentRepo
type IncidentRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewIncidentRepo creates a new incident repository
func NewIncidentRepo(log zerolog.Logger, db *DB) *IncidentRepo {
	return &IncidentRepo{
		log: log.With().Str("repo", "incidents").Logger(),
		db:  db,
	}
}

var _ domain.IncidentRepo = (*IncidentRepo)(nil)

// InsertAll inserts incidents whose IDs are not yet stored. Malformed
// incidents are skipped with a warning.
func (r *IncidentRepo) InsertAll(ctx context.Context, incidents []domain.Incident) (int, error) {
	r.db.lock.Lock()
	defer r.db.lock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	added, err := insertIncidents(ctx, tx, r.db.squirrel, r.log, incidents)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "error committing transaction")
	}

	return added, nil
}

func insertIncidents(ctx context.Context, exec execer, builder sq.StatementBuilderType, log zerolog.Logger, incidents []domain.Incident) (int, error) {
	added := 0
	for _, incident := range incidents {
		if err := incident.Validate(); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed incident")
			continue
		}

		query, args, err := builder.
			Insert("incidents").
			Columns("id", "category", "month", "lat", "lng", "street_name").
			Values(incident.ID, incident.Category, incident.Month, incident.Lat, incident.Lng, incident.StreetName).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return added, errors.Wrap(err, "error building query")
		}

		log.Trace().Str("query", query).Interface("args", args).Msg("InsertIncident")

		res, err := exec.ExecContext(ctx, query, args...)
		if err != nil {
			return added, errors.Wrapf(err, "error inserting incident %s", incident.ID)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return added, errors.Wrap(err, "error reading rows affected")
		}
		added += int(n)
	}

	return added, nil
}

// QueryByMonthAndBoundingBox returns incidents for month whose coordinates
// lie within radius degrees of lat/lng on both axes, bounds inclusive.
func (r *IncidentRepo) QueryByMonthAndBoundingBox(ctx context.Context, month domain.Month, lat, lng, radius float64) ([]domain.Incident, error) {
	box := domain.NewBoundingBox(lat, lng, radius)

	queryBuilder := r.db.squirrel.
		Select("id", "category", "month", "lat", "lng", "street_name").
		From("incidents").
		Where(sq.Eq{"month": month.String()}).
		Where(boxFilter(box)).
		OrderBy("id")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("QueryByMonthAndBoundingBox")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	incidents := []domain.Incident{}
	for rows.Next() {
		var i domain.Incident
		if err := rows.Scan(&i.ID, &i.Category, &i.Month, &i.Lat, &i.Lng, &i.StreetName); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		incidents = append(incidents, i)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return incidents, nil
}

// CountByMonth counts incidents in the bounding box for each given month.
// Months without incidents are absent from the result.
func (r *IncidentRepo) CountByMonth(ctx context.Context, months []domain.Month, lat, lng, radius float64) (map[domain.Month]int, error) {
	counts := make(map[domain.Month]int)
	if len(months) == 0 {
		return counts, nil
	}

	keys := make([]string, 0, len(months))
	for _, m := range months {
		keys = append(keys, m.String())
	}

	queryBuilder := r.db.squirrel.
		Select("month", "COUNT(*)").
		From("incidents").
		Where(sq.Eq{"month": keys}).
		Where(boxFilter(domain.NewBoundingBox(lat, lng, radius))).
		GroupBy("month")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("CountByMonth")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			month domain.Month
			count int
		)
		if err := rows.Scan(&month, &count); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		counts[month] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return counts, nil
}

// Count returns the total number of stored incidents.
func (r *IncidentRepo) Count(ctx context.Context) (int, error) {
	query, args, err := r.db.squirrel.Select("COUNT(*)").From("incidents").ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "error building query")
	}

	var count int
	if err := r.db.handler.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "error executing query")
	}

	return count, nil
}

func boxFilter(box domain.BoundingBox) sq.And {
	return sq.And{
		sq.GtOrEq{"lat": box.MinLat},
		sq.LtOrEq{"lat": box.MaxLat},
		sq.GtOrEq{"lng": box.MinLng},
		sq.LtOrEq{"lng": box.MaxLng},
	}
}
