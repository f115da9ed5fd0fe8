package database

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/crimedb/internal/domain"
)

func TestFetchCacheRepo_LookupMissing(t *testing.T) {
	repo := NewFetchCacheRepo(zerolog.Nop(), newTestDB(t))

	entry, found, err := repo.Lookup(context.Background(), "SW1A1AA", domain.MustParseMonth("2023-05"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, entry)
}

func TestFetchCacheRepo_ZeroCountEntryIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	repo := NewFetchCacheRepo(zerolog.Nop(), newTestDB(t))
	month := domain.MustParseMonth("2023-05")

	require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{
		LocationKey: "SW1A1AA",
		Month:       month,
		Lat:         centerLat,
		Lng:         centerLng,
	}))

	entry, found, err := repo.Lookup(ctx, "SW1A1AA", month)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0, entry.RecordCount)
	assert.Equal(t, month, entry.Month)
	assert.True(t, entry.FetchedAt.Equal(testNow), "zero fetched_at is stamped from the clock")
}

func TestFetchCacheRepo_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewFetchCacheRepo(zerolog.Nop(), newTestDB(t))
	month := domain.MustParseMonth("2023-05")
	later := testNow.Add(time.Hour)

	require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "K", Month: month, RecordCount: 3, FetchedAt: testNow}))
	require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "K", Month: month, RecordCount: 5, FetchedAt: later}))

	entry, found, err := repo.Lookup(ctx, "K", month)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, entry.RecordCount)
	assert.True(t, entry.FetchedAt.Equal(later))

	months, err := repo.MonthsKnown(ctx, "K")
	require.NoError(t, err)
	assert.Len(t, months, 1)
}

func TestFetchCacheRepo_UpsertRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := NewFetchCacheRepo(zerolog.Nop(), newTestDB(t))

	assert.Error(t, repo.Upsert(ctx, domain.FetchCacheEntry{Month: domain.MustParseMonth("2023-05")}))
	assert.Error(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "K"}))
	assert.Error(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "K", Month: domain.MustParseMonth("2023-05"), RecordCount: -1}))
}

func TestFetchCacheRepo_MonthsKnownOrdered(t *testing.T) {
	ctx := context.Background()
	repo := NewFetchCacheRepo(zerolog.Nop(), newTestDB(t))

	for _, m := range []string{"2023-07", "2022-11", "2023-01"} {
		require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "K", Month: domain.MustParseMonth(m)}))
	}
	require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "OTHER", Month: domain.MustParseMonth("2023-03")}))

	months, err := repo.MonthsKnown(ctx, "K")
	require.NoError(t, err)
	assert.Equal(t, []domain.Month{
		domain.MustParseMonth("2022-11"),
		domain.MustParseMonth("2023-01"),
		domain.MustParseMonth("2023-07"),
	}, months)

	none, err := repo.MonthsKnown(ctx, "MISSING")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFetchCacheRepo_RecordFetch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewFetchCacheRepo(zerolog.Nop(), db)
	incidents := NewIncidentRepo(zerolog.Nop(), db)
	month := domain.MustParseMonth("2023-05")

	_, err := incidents.InsertAll(ctx, []domain.Incident{{ID: "seen", Month: "2023-05", Lat: centerLat, Lng: centerLng}})
	require.NoError(t, err)

	fetched := []domain.Incident{
		{ID: "seen", Month: "2023-05", Lat: centerLat, Lng: centerLng},
		{ID: "new-1", Month: "2023-05", Lat: centerLat, Lng: centerLng},
		{ID: "new-2", Month: "2023-05", Lat: centerLat, Lng: centerLng},
	}
	added, err := repo.RecordFetch(ctx, domain.FetchCacheEntry{
		LocationKey: "K",
		Month:       month,
		Lat:         centerLat,
		Lng:         centerLng,
		RecordCount: len(fetched),
	}, fetched)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	entry, found, err := repo.Lookup(ctx, "K", month)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, entry.RecordCount, "record count is the fetched length, not the number inserted")

	total, err := incidents.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestFetchCacheRepo_RecordFetchSkipsNonFiniteCoordinates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewFetchCacheRepo(zerolog.Nop(), db)
	incidents := NewIncidentRepo(zerolog.Nop(), db)
	month := domain.MustParseMonth("2023-05")

	fetched := []domain.Incident{
		{ID: "good", Month: "2023-05", Lat: centerLat, Lng: centerLng},
		{ID: "nan-lat", Month: "2023-05", Lat: math.NaN(), Lng: centerLng},
		{ID: "inf-lng", Month: "2023-05", Lat: centerLat, Lng: math.Inf(1)},
	}
	added, err := repo.RecordFetch(ctx, domain.FetchCacheEntry{
		LocationKey: "K",
		Month:       month,
		Lat:         centerLat,
		Lng:         centerLng,
		RecordCount: len(fetched),
	}, fetched)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	_, found, err := repo.Lookup(ctx, "K", month)
	require.NoError(t, err)
	assert.True(t, found)

	got, err := incidents.QueryByMonthAndBoundingBox(ctx, month, centerLat, centerLng, radius)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)
}

func TestFetchCacheRepo_RecordFetchIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewFetchCacheRepo(zerolog.Nop(), db)
	incidents := NewIncidentRepo(zerolog.Nop(), db)

	_, err := repo.RecordFetch(ctx, domain.FetchCacheEntry{
		LocationKey: "K",
		Month:       domain.MustParseMonth("2023-05"),
		RecordCount: -1,
	}, []domain.Incident{{ID: "a", Month: "2023-05"}})
	require.Error(t, err)

	total, err := incidents.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "incidents roll back with a failed cache write")
}

func TestFetchCacheRepo_DeleteAndLocations(t *testing.T) {
	ctx := context.Background()
	repo := NewFetchCacheRepo(zerolog.Nop(), newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "A", Month: domain.MustParseMonth("2023-01"), RecordCount: 4}))
	require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "A", Month: domain.MustParseMonth("2023-03"), RecordCount: 6}))
	require.NoError(t, repo.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "B", Month: domain.MustParseMonth("2023-02")}))

	locations, err := repo.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LocationSummary{
		{LocationKey: "A", Months: 2, FirstMonth: domain.MustParseMonth("2023-01"), LastMonth: domain.MustParseMonth("2023-03"), Records: 10},
		{LocationKey: "B", Months: 1, FirstMonth: domain.MustParseMonth("2023-02"), LastMonth: domain.MustParseMonth("2023-02"), Records: 0},
	}, locations)

	require.NoError(t, repo.Delete(ctx, "A", domain.MustParseMonth("2023-01")))
	_, found, err := repo.Lookup(ctx, "A", domain.MustParseMonth("2023-01"))
	require.NoError(t, err)
	assert.False(t, found)
}
