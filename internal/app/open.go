package app

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/backfill"
	"github.com/varoOP/crimedb/internal/database"
	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/geocode"
	"github.com/varoOP/crimedb/internal/metrics"
	"github.com/varoOP/crimedb/internal/notification"
	"github.com/varoOP/crimedb/internal/police"
	"github.com/varoOP/crimedb/internal/repository"
	"github.com/varoOP/crimedb/internal/spatial"
)

// Open builds an App backed by the SQLite store at cfg.DBPath and the live
// police and postcode APIs. Metrics register with the default Prometheus
// registry, so Open is called once per process.
func Open(cfg *domain.Config, log zerolog.Logger) (*App, error) {
	clock := clockwork.NewRealClock()

	db, err := database.NewDB(cfg.DBPath, log, database.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.New()

	incidents := database.NewIncidentRepo(log, db)
	fetchCache := database.NewFetchCacheRepo(log, db)

	resolver, err := geocode.NewCachedResolver(geocode.NewClient(log, cfg.PostcodesAPIURL, cfg.HTTPTimeout), cfg.GeocodeCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize geocoder: %w", err)
	}

	fetcher := police.NewClient(log, cfg, m)
	notifier := notification.NewService(log, cfg.DiscordWebhookURL)
	backfills := backfill.NewManager(log, backfill.NewService(log, fetcher, fetchCache, m), notifier, m, clock)

	return New(log, Deps{
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
		Closers:    []func() error{db.Close},
	}), nil
}
