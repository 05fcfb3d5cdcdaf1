// Package dispatcher hands queued jobs to polling workers and tracks their
// leases. It is the only component that interprets the lease state machine;
// the repository below it just executes guarded updates.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/transcodarr/transcodarr/internal/config"
	"github.com/transcodarr/transcodarr/internal/models"
	"github.com/transcodarr/transcodarr/internal/observability"
	"github.com/transcodarr/transcodarr/internal/repository"
)

// Dispatcher coordinates job claims, heartbeats and completion reports.
type Dispatcher struct {
	repo         repository.JobRepository
	leaseTimeout time.Duration
	logger       *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Dispatcher.
func New(repo repository.JobRepository, cfg config.DispatchConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:         repo,
		leaseTimeout: cfg.LeaseTimeout,
		logger:       observability.WithComponent(logger, "dispatcher"),
		now:          time.Now,
	}
}

// NextJob records the worker's liveness and claims the next dispatchable job.
// Returns nil when the queue has nothing to hand out. A claim that races
// another worker is treated the same as an empty queue; the worker polls
// again on its own schedule.
func (d *Dispatcher) NextJob(ctx context.Context, machineName string) (*models.Job, error) {
	machineName = strings.TrimSpace(machineName)
	if machineName == "" {
		return nil, models.ErrMachineNameRequired
	}

	now := d.now()
	if err := d.repo.RecordWorkerHeartbeat(ctx, machineName, now); err != nil {
		return nil, fmt.Errorf("recording worker heartbeat: %w", err)
	}

	job, err := d.repo.ClaimNext(ctx, now, d.leaseTimeout)
	if err != nil {
		if errors.Is(err, models.ErrClaimLost) {
			d.logger.Debug("claim lost to concurrent worker", "machine_name", machineName)
			return nil, nil
		}
		return nil, fmt.Errorf("claiming next job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	d.logger.Info("job dispatched",
		"job_id", job.ID,
		"correlation_id", job.CorrelationID,
		"kind", job.Kind,
		"machine_name", machineName)
	return job, nil
}

// Heartbeat refreshes the lease of a claimed job.
func (d *Dispatcher) Heartbeat(ctx context.Context, jobID int64) error {
	if err := d.repo.Heartbeat(ctx, jobID, d.now()); err != nil {
		return fmt.Errorf("refreshing lease for job %d: %w", jobID, err)
	}
	return nil
}

// Complete marks a claimed job done. Done jobs are never dispatched again.
func (d *Dispatcher) Complete(ctx context.Context, jobID int64) error {
	if err := d.repo.MarkDone(ctx, jobID); err != nil {
		return fmt.Errorf("completing job %d: %w", jobID, err)
	}
	d.logger.Info("job completed", "job_id", jobID)
	return nil
}

// Fail records a worker-reported failure and parks the job until an operator
// resumes or deletes it.
func (d *Dispatcher) Fail(ctx context.Context, jobID int64, reason string) error {
	if err := d.repo.MarkFailed(ctx, jobID, reason); err != nil {
		return fmt.Errorf("failing job %d: %w", jobID, err)
	}
	d.logger.Warn("job failed", "job_id", jobID, "reason", reason)
	return nil
}

// Pause deactivates a request's jobs that are not done and not currently
// claimed. Jobs a worker holds run to completion.
func (d *Dispatcher) Pause(ctx context.Context, correlationID models.ULID) (int64, error) {
	paused, err := d.repo.Pause(ctx, correlationID)
	if err != nil {
		return 0, fmt.Errorf("pausing request %s: %w", correlationID, err)
	}
	d.logger.Info("request paused", "correlation_id", correlationID, "jobs_paused", paused)
	return paused, nil
}

// Job retrieves a single job for inspection.
func (d *Dispatcher) Job(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := d.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job %d: %w", jobID, err)
	}
	if job == nil {
		return nil, models.ErrJobNotFound
	}
	return job, nil
}

// LeaseTimeout exposes the configured lease length for state reporting.
func (d *Dispatcher) LeaseTimeout() time.Duration {
	return d.leaseTimeout
}
