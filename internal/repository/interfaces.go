// Package repository provides data access interfaces and GORM implementations
// for transcodarr.
package repository

import (
	"context"
	"time"

	"github.com/transcodarr/transcodarr/internal/models"
)

// JobRepository defines the persistence operations of the job plane.
//
// All mutating operations run inside a transaction. ClaimNext additionally
// guards its update with the lease values it read, so two concurrent
// claimers can never both succeed on the same row.
type JobRepository interface {
	// AddRequest atomically persists a request together with its planned
	// jobs and parts. On any failure nothing is committed.
	AddRequest(ctx context.Context, req *models.Request, jobs []*models.Job, parts []*models.Part) (models.ULID, error)

	// ClaimNext selects one dispatchable job (deadline ascending, id
	// tiebreak), marks it taken with a fresh heartbeat, and returns it.
	// Returns nil when no job is dispatchable. Returns models.ErrClaimLost
	// when the conditional update raced another claimer; the caller does
	// not retry within this call.
	ClaimNext(ctx context.Context, now time.Time, leaseTimeout time.Duration) (*models.Job, error)

	// Heartbeat refreshes a claimed job's lease.
	Heartbeat(ctx context.Context, jobID int64, now time.Time) error

	// MarkDone records successful completion of a claimed job.
	MarkDone(ctx context.Context, jobID int64) error

	// MarkFailed records a failure reason and deactivates the job until an
	// operator intervenes.
	MarkFailed(ctx context.Context, jobID int64, reason string) error

	// Pause deactivates the request's jobs that are neither done nor
	// currently taken. Returns the number of jobs affected.
	Pause(ctx context.Context, correlationID models.ULID) (int64, error)

	// RecordWorkerHeartbeat upserts a worker liveness row.
	RecordWorkerHeartbeat(ctx context.Context, machineName string, now time.Time) error

	// GetRequest retrieves a request by correlation id. Returns nil when
	// not found.
	GetRequest(ctx context.Context, correlationID models.ULID) (*models.Request, error)

	// GetJob retrieves a job by id. Returns nil when not found.
	GetJob(ctx context.Context, jobID int64) (*models.Job, error)

	// GetJobs retrieves a request's jobs in insertion order.
	GetJobs(ctx context.Context, correlationID models.ULID) ([]*models.Job, error)

	// GetParts retrieves a request's parts ordered by target then chunk.
	GetParts(ctx context.Context, correlationID models.ULID) ([]*models.Part, error)

	// ListWorkers retrieves all known workers ordered by machine name.
	ListWorkers(ctx context.Context) ([]*models.Worker, error)

	// PruneFinished deletes done jobs last touched before the cutoff, then
	// removes requests (and their parts) that no longer have any jobs.
	// Returns the number of jobs deleted.
	PruneFinished(ctx context.Context, before time.Time) (int64, error)
}
