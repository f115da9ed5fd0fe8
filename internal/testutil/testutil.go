package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/app"
	"github.com/varoOP/crimedb/internal/backfill"
	"github.com/varoOP/crimedb/internal/database"
	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/metrics"
	"github.com/varoOP/crimedb/internal/repository"
	"github.com/varoOP/crimedb/internal/spatial"
)

// Now is the fake clock's start time in every test environment.
var Now = time.Date(2024, time.November, 3, 12, 0, 0, 0, time.UTC)

// NewTestDB opens a SQLite store in a temp dir, closed when the test ends.
func NewTestDB(t *testing.T, clock clockwork.Clock) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "crimedb.db"), zerolog.Nop(), database.WithClock(clock))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewTestConfig returns a valid config for tests.
func NewTestConfig() *domain.Config {
	return &domain.Config{
		DBPath:            "crimedb.db",
		PoliceAPIURL:      "http://police.invalid",
		PostcodesAPIURL:   "http://postcodes.invalid",
		RateLimitInterval: time.Millisecond,
		HTTPTimeout:       time.Second,
		SearchRadius:      domain.DefaultSearchRadius,
		GeocodeCacheSize:  16,
		HTTPAddr:          ":0",
	}
}

// Env is an App wired to fakes and a real temp-dir store.
type Env struct {
	App        *app.App
	Config     *domain.Config
	Clock      *clockwork.FakeClock
	DB         *database.DB
	Incidents  *database.IncidentRepo
	FetchCache *database.FetchCacheRepo
	Fetcher    *Fetcher
	Resolver   *Resolver
	Metrics    *metrics.Metrics
}

// NewEnv builds an Env. The App is shut down when the test ends.
func NewEnv(t *testing.T, cfg *domain.Config, fetcher *Fetcher, resolver *Resolver) *Env {
	t.Helper()
	if cfg == nil {
		cfg = NewTestConfig()
	}

	log := zerolog.Nop()
	clock := clockwork.NewFakeClockAt(Now)
	db := NewTestDB(t, clock)
	m := metrics.NewForTesting()

	incidents := database.NewIncidentRepo(log, db)
	fetchCache := database.NewFetchCacheRepo(log, db)
	backfills := backfill.NewManager(log, backfill.NewService(log, fetcher, fetchCache, m), nil, m, clock)

	a := app.New(log, app.Deps{
		Config:     cfg,
		Clock:      clock,
		Resolver:   resolver,
		Fetcher:    fetcher,
		Incidents:  incidents,
		FetchCache: fetchCache,
		Spatial:    spatial.NewService(log, incidents, fetchCache, cfg.SearchRadius),
		Backfills:  backfills,
		Export:     repository.NewFileRepository(log),
		Metrics:    m,
		Ping:       db.Ping,
	})
	t.Cleanup(func() { a.Shutdown(context.Background()) })

	return &Env{
		App:        a,
		Config:     cfg,
		Clock:      clock,
		DB:         db,
		Incidents:  incidents,
		FetchCache: fetchCache,
		Fetcher:    fetcher,
		Resolver:   resolver,
		Metrics:    m,
	}
}
