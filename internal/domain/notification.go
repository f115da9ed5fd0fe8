package domain

import (
	"context"
	"time"
)

// NotificationService defines the interface for notification services
type NotificationService interface {
	// SendBackfillComplete reports a finished backfill job
	SendBackfillComplete(ctx context.Context, summary BackfillSummary) error

	// SendBackfillError reports a backfill job that stopped on an error
	SendBackfillError(ctx context.Context, locationKey string, err error) error
}

// BackfillSummary holds the outcome of a backfill job
type BackfillSummary struct {
	JobID         string
	LocationKey   string
	MonthsPending int
	MonthsFetched int
	RecordsAdded  int
	Duration      time.Duration
}
