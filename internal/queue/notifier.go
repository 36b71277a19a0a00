// Package queue carries job-created signals between the upload path and the
// polling worker. The signal is purely a latency optimization: the durable
// claim in the repository remains the only correctness mechanism, so a lost
// or duplicated signal is harmless.
package queue

import (
	"context"

	"github.com/downoff/lucius-backend/internal/domain"
)

// Notifier announces newly created jobs.
type Notifier interface {
	JobCreated(ctx context.Context, jobID string, jobType domain.JobType) error
}

// NopNotifier is used when no queue backend is configured; the worker then
// relies on polling alone.
type NopNotifier struct{}

func (NopNotifier) JobCreated(context.Context, string, domain.JobType) error {
	return nil
}
