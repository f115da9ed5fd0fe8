package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/crimedb/internal/domain"
)

// FetchCacheRepo implements domain.FetchCacheRepo
type FetchCacheRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewFetchCacheRepo creates a new fetch cache repository
func NewFetchCacheRepo(log zerolog.Logger, db *DB) *FetchCacheRepo {
	return &FetchCacheRepo{
		log: log.With().Str("repo", "fetch_cache").Logger(),
		db:  db,
	}
}

var _ domain.FetchCacheRepo = (*FetchCacheRepo)(nil)

// Lookup returns the entry for the location and month, if one exists.
func (r *FetchCacheRepo) Lookup(ctx context.Context, locationKey string, month domain.Month) (*domain.FetchCacheEntry, bool, error) {
	queryBuilder := r.db.squirrel.
		Select("location_key", "month", "lat", "lng", "record_count", "fetched_at").
		From("fetch_cache").
		Where(sq.Eq{"location_key": locationKey, "month": month.String()})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, false, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Lookup")

	var (
		entry     domain.FetchCacheEntry
		fetchedAt string
	)
	err = r.db.handler.QueryRowContext(ctx, query, args...).
		Scan(&entry.LocationKey, &entry.Month, &entry.Lat, &entry.Lng, &entry.RecordCount, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "error executing query")
	}

	entry.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return nil, false, errors.Wrapf(err, "invalid fetched_at %q", fetchedAt)
	}

	return &entry, true, nil
}

// Upsert inserts or replaces the entry for its location and month.
func (r *FetchCacheRepo) Upsert(ctx context.Context, entry domain.FetchCacheEntry) error {
	r.db.lock.Lock()
	defer r.db.lock.Unlock()

	return r.upsert(ctx, r.db.handler, entry)
}

func (r *FetchCacheRepo) upsert(ctx context.Context, exec execer, entry domain.FetchCacheEntry) error {
	if entry.LocationKey == "" || entry.Month.IsZero() {
		return errors.New("fetch cache entry requires a location key and month")
	}
	if entry.RecordCount < 0 {
		return errors.Errorf("negative record count %d", entry.RecordCount)
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = r.db.clock.Now()
	}

	queryBuilder := r.db.squirrel.
		Replace("fetch_cache").
		Columns("location_key", "month", "lat", "lng", "record_count", "fetched_at").
		Values(entry.LocationKey, entry.Month.String(), entry.Lat, entry.Lng, entry.RecordCount, entry.FetchedAt.UTC().Format(time.RFC3339))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// RecordFetch stores incidents and the cache entry atomically, so a fetch is
// either fully recorded or not at all. It returns the number of new incidents.
func (r *FetchCacheRepo) RecordFetch(ctx context.Context, entry domain.FetchCacheEntry, incidents []domain.Incident) (int, error) {
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

	if err := r.upsert(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "error committing transaction")
	}

	r.log.Debug().
		Str("location_key", entry.LocationKey).
		Stringer("month", entry.Month).
		Int("fetched", entry.RecordCount).
		Int("added", added).
		Msg("Recorded fetch")

	return added, nil
}

// MonthsKnown returns the months cached for a location in ascending order.
func (r *FetchCacheRepo) MonthsKnown(ctx context.Context, locationKey string) ([]domain.Month, error) {
	queryBuilder := r.db.squirrel.
		Select("month").
		From("fetch_cache").
		Where(sq.Eq{"location_key": locationKey}).
		OrderBy("month")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("MonthsKnown")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	months := []domain.Month{}
	for rows.Next() {
		var m domain.Month
		if err := rows.Scan(&m); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		months = append(months, m)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return months, nil
}

// Delete removes the entry for a location and month. Stored incidents are
// kept.
func (r *FetchCacheRepo) Delete(ctx context.Context, locationKey string, month domain.Month) error {
	r.db.lock.Lock()
	defer r.db.lock.Unlock()

	queryBuilder := r.db.squirrel.
		Delete("fetch_cache").
		Where(sq.Eq{"location_key": locationKey, "month": month.String()})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	return nil
}

// Locations summarises the cache per location key.
func (r *FetchCacheRepo) Locations(ctx context.Context) ([]domain.LocationSummary, error) {
	queryBuilder := r.db.squirrel.
		Select("location_key", "COUNT(*)", "MIN(month)", "MAX(month)", "COALESCE(SUM(record_count), 0)").
		From("fetch_cache").
		GroupBy("location_key").
		OrderBy("location_key")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Locations")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	summaries := []domain.LocationSummary{}
	for rows.Next() {
		var s domain.LocationSummary
		if err := rows.Scan(&s.LocationKey, &s.Months, &s.FirstMonth, &s.LastMonth, &s.Records); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return summaries, nil
}
