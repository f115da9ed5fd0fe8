package spatial

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/crimedb/internal/database"
	"github.com/varoOP/crimedb/internal/domain"
)

const (
	lat = 51.5
	lng = -0.1
)

func newTestService(t *testing.T) (Service, *database.IncidentRepo, *database.FetchCacheRepo) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "crimedb.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	incidents := database.NewIncidentRepo(zerolog.Nop(), db)
	cache := database.NewFetchCacheRepo(zerolog.Nop(), db)
	return NewService(zerolog.Nop(), incidents, cache, 0), incidents, cache
}

func TestService_Records(t *testing.T) {
	ctx := context.Background()
	svc, incidents, _ := newTestService(t)

	_, err := incidents.InsertAll(ctx, []domain.Incident{
		{ID: "near", Month: "2023-05", Lat: lat + 0.01, Lng: lng - 0.01},
		{ID: "far", Month: "2023-05", Lat: lat + 0.05, Lng: lng},
	})
	require.NoError(t, err)

	got, err := svc.Records(ctx, domain.MustParseMonth("2023-05"), lat, lng)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)
}

func TestService_CountsOnlyKnownMonths(t *testing.T) {
	ctx := context.Background()
	svc, incidents, cache := newTestService(t)

	_, err := incidents.InsertAll(ctx, []domain.Incident{
		{ID: "a", Month: "2023-04", Lat: lat, Lng: lng},
		{ID: "b", Month: "2023-05", Lat: lat, Lng: lng},
		{ID: "c", Month: "2023-05", Lat: lat, Lng: lng},
		{ID: "d", Month: "2023-06", Lat: lat, Lng: lng},
	})
	require.NoError(t, err)

	for _, m := range []string{"2023-05", "2023-07"} {
		require.NoError(t, cache.Upsert(ctx, domain.FetchCacheEntry{LocationKey: "K", Month: domain.MustParseMonth(m), Lat: lat, Lng: lng}))
	}

	counts, err := svc.CountsByMonth(ctx, "K", lat, lng)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Month]int{domain.MustParseMonth("2023-05"): 2}, counts)

	monthly, err := svc.MonthlyCounts(ctx, "K", lat, lng, domain.MustParseMonth("2023-05"))
	require.NoError(t, err)
	assert.Equal(t, []domain.MonthCount{
		{Month: domain.MustParseMonth("2023-05"), Count: 2, Current: true},
		{Month: domain.MustParseMonth("2023-07"), Count: 0},
	}, monthly)
}

func TestService_CountsUnknownLocation(t *testing.T) {
	svc, _, _ := newTestService(t)

	counts, err := svc.CountsByMonth(context.Background(), "NOWHERE", lat, lng)
	require.NoError(t, err)
	assert.Empty(t, counts)

	monthly, err := svc.MonthlyCounts(context.Background(), "NOWHERE", lat, lng, domain.MustParseMonth("2023-05"))
	require.NoError(t, err)
	assert.Empty(t, monthly)
}
