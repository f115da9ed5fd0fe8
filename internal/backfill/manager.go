package backfill

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/metrics"
)

const finishedJobsRetained = 256

// Manager runs backfill jobs in the background, at most one per location.
type Manager struct {
	log      zerolog.Logger
	svc      Service
	notifier domain.NotificationService
	metrics  *metrics.Metrics
	clock    clockwork.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	active map[string]*Job
	jobs   *lru.Cache[string, *Job]
}

func NewManager(log zerolog.Logger, svc Service, notifier domain.NotificationService, m *metrics.Metrics, clock clockwork.Clock) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	jobs, _ := lru.New[string, *Job](finishedJobsRetained)

	return &Manager{
		log:      log.With().Str("module", "backfill").Logger(),
		svc:      svc,
		notifier: notifier,
		metrics:  m,
		clock:    clock,
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[string]*Job),
		jobs:     jobs,
	}
}

// Start launches a backfill for the request's location, or returns the job
// already running for it. The job outlives the caller's request; it stops on
// Cancel or Shutdown.
func (m *Manager) Start(req Request) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.active[req.LocationKey]; ok {
		return job
	}

	ctx, cancel := context.WithCancel(m.ctx)
	job := newJob(uuid.NewString(), req, m.clock.Now(), cancel)
	m.jobs.Add(job.ID, job)

	if m.closed {
		job.finish(Report{Cancelled: true}, context.Canceled, m.clock.Now())
		return job
	}

	m.active[req.LocationKey] = job
	m.wg.Add(1)
	go m.run(ctx, job)

	m.log.Info().Str("job_id", job.ID).Str("location_key", req.LocationKey).Msg("Started backfill")

	return job
}

// Get returns a running or recently finished job.
func (m *Manager) Get(id string) (*Job, bool) {
	return m.jobs.Get(id)
}

// Shutdown cancels running jobs and waits for them to stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, job *Job) {
	defer m.wg.Done()

	m.metrics.BackfillJobsRunning.Inc()
	defer m.metrics.BackfillJobsRunning.Dec()

	updates := make(chan Progress)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for p := range updates {
			job.update(p)
		}
	}()

	report, err := m.svc.Run(ctx, job.Request, updates)
	close(updates)
	<-forwarded

	log := m.log.With().Str("job_id", job.ID).Str("location_key", job.Request.LocationKey).Logger()
	switch {
	case report.Cancelled:
		log.Warn().Int("months", report.MonthsFetched).Msg("Backfill cancelled")
	case err != nil:
		log.Error().Err(err).Msg("Backfill failed")
	}

	m.mu.Lock()
	if m.active[job.Request.LocationKey] == job {
		delete(m.active, job.Request.LocationKey)
	}
	m.mu.Unlock()

	m.notify(ctx, job, report, err)
	job.finish(report, err, m.clock.Now())
}

func (m *Manager) notify(ctx context.Context, job *Job, report Report, err error) {
	if m.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var notifyErr error
	switch {
	case err != nil && !report.Cancelled:
		notifyErr = m.notifier.SendBackfillError(ctx, job.Request.LocationKey, err)
	case err == nil && report.MonthsFetched > 0:
		notifyErr = m.notifier.SendBackfillComplete(ctx, domain.BackfillSummary{
			JobID:         job.ID,
			LocationKey:   job.Request.LocationKey,
			MonthsPending: report.Pending,
			MonthsFetched: report.MonthsFetched,
			RecordsAdded:  report.RecordsAdded,
			Duration:      m.clock.Since(job.StartedAt),
		})
	}

	if notifyErr != nil {
		m.log.Warn().Err(notifyErr).Str("job_id", job.ID).Msg("Failed to send backfill notification")
	}
}
