package backfill

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Job is a backfill running in the background.
type Job struct {
	ID        string
	Request   Request
	StartedAt time.Time

	cancel   context.CancelFunc
	progress chan Progress
	done     chan struct{}

	mu         sync.RWMutex
	state      State
	last       Progress
	report     Report
	err        error
	finishedAt time.Time
}

// Status is a point-in-time view of a job.
type Status struct {
	ID          string     `json:"id"`
	LocationKey string     `json:"location_key"`
	State       State      `json:"state"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Progress    Progress   `json:"progress"`
	Report      Report     `json:"report"`
	Error       string     `json:"error,omitempty"`
}

func newJob(id string, req Request, startedAt time.Time, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        id,
		Request:   req,
		StartedAt: startedAt,
		cancel:    cancel,
		progress:  make(chan Progress, 64),
		done:      make(chan struct{}),
		state:     StateRunning,
	}
}

// Progress streams per-month updates and is closed when the job ends.
// Updates are dropped rather than blocking the job when nobody reads.
func (j *Job) Progress() <-chan Progress {
	return j.progress
}

// Done is closed when the job ends.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel stops the job after the month in flight.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job ends or ctx is done.
func (j *Job) Wait(ctx context.Context) (Report, error) {
	select {
	case <-j.done:
		j.mu.RLock()
		defer j.mu.RUnlock()
		return j.report, j.err
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Status{
		ID:          j.ID,
		LocationKey: j.Request.LocationKey,
		State:       j.state,
		StartedAt:   j.StartedAt,
		Progress:    j.last,
		Report:      j.report,
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

func (j *Job) update(p Progress) {
	j.mu.Lock()
	j.last = p
	j.mu.Unlock()

	select {
	case j.progress <- p:
	default:
	}
}

func (j *Job) finish(report Report, err error, at time.Time) {
	j.mu.Lock()
	j.report = report
	j.err = err
	j.finishedAt = at
	switch {
	case report.Cancelled:
		j.state = StateCancelled
	case err != nil:
		j.state = StateFailed
	default:
		j.state = StateCompleted
	}
	j.mu.Unlock()

	j.cancel()
	close(j.progress)
	close(j.done)
}
