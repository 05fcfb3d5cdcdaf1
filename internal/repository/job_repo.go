package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/transcodarr/transcodarr/internal/models"
)

// jobRepo implements JobRepository using GORM.
type jobRepo struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *jobRepo {
	return &jobRepo{db: db}
}

// AddRequest atomically persists a request with its jobs and parts.
// The jobs are created in slice order, so their autoincrement ids preserve
// the planner's ordering (audio jobs before video chunks).
func (r *jobRepo) AddRequest(ctx context.Context, req *models.Request, jobs []*models.Job, parts []*models.Part) (models.ULID, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		for _, job := range jobs {
			job.CorrelationID = req.CorrelationID
			if err := tx.Create(job).Error; err != nil {
				return fmt.Errorf("creating job: %w", err)
			}
		}

		for _, part := range parts {
			part.CorrelationID = req.CorrelationID
			if err := tx.Create(part).Error; err != nil {
				return fmt.Errorf("creating part: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return models.ULID{}, err
	}
	return req.CorrelationID, nil
}

// ClaimNext selects and claims one dispatchable job.
//
// The select orders by deadline ascending with a stable id tiebreak. The
// claim is a conditional update guarded by the (taken, heartbeat) values
// the select observed; if another claimer got there first the update
// affects zero rows and the operation fails with models.ErrClaimLost.
func (r *jobRepo) ClaimNext(ctx context.Context, now time.Time, leaseTimeout time.Duration) (*models.Job, error) {
	var job models.Job
	found := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cutoff := now.Add(-leaseTimeout)

		err := tx.
			Where("active = ? AND done = ?", true, false).
			Where("taken = ? OR heartbeat < ?", false, cutoff).
			Order("needed ASC, id ASC").
			Limit(1).
			First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("selecting dispatchable job: %w", err)
		}

		update := tx.Model(&models.Job{}).
			Where("id = ? AND taken = ?", job.ID, job.Taken)
		if job.Heartbeat == nil {
			update = update.Where("heartbeat IS NULL")
		} else {
			update = update.Where("heartbeat = ?", *job.Heartbeat)
		}

		res := update.Updates(map[string]any{
			"taken":     true,
			"heartbeat": now,
		})
		if res.Error != nil {
			return fmt.Errorf("claiming job %d: %w", job.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrClaimLost
		}

		job.Taken = true
		job.Heartbeat = &now
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &job, nil
}

// Heartbeat refreshes a claimed job's lease. Leases carry no holder
// identity: any caller that knows the job id refreshes the current lease,
// including a worker whose own lease has already been reclaimed.
func (r *jobRepo) Heartbeat(ctx context.Context, jobID int64, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND taken = ? AND done = ?", jobID, true, false).
		Update("heartbeat", now)
	if res.Error != nil {
		return fmt.Errorf("updating heartbeat for job %d: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// MarkDone records successful completion of a claimed job.
func (r *jobRepo) MarkDone(ctx context.Context, jobID int64) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND taken = ?", jobID, true).
		Update("done", true)
	if res.Error != nil {
		return fmt.Errorf("marking job %d done: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// MarkFailed records the failure reason and deactivates the job. The lease
// is released so the row no longer counts as held, but the job stays out of
// dispatch until an operator reactivates it.
func (r *jobRepo) MarkFailed(ctx context.Context, jobID int64, reason string) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND done = ?", jobID, false).
		Updates(map[string]any{
			"active":     false,
			"taken":      false,
			"heartbeat":  nil,
			"last_error": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("marking job %d failed: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// Pause deactivates a request's jobs that are neither done nor taken.
// Jobs currently held by a worker are left untouched.
func (r *jobRepo) Pause(ctx context.Context, correlationID models.ULID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("correlation_id = ? AND done = ? AND taken = ?", correlationID, false, false).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("pausing request %s: %w", correlationID, res.Error)
	}
	return res.RowsAffected, nil
}

// RecordWorkerHeartbeat upserts a worker liveness row.
func (r *jobRepo) RecordWorkerHeartbeat(ctx context.Context, machineName string, now time.Time) error {
	worker := models.Worker{MachineName: machineName, LastSeen: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "machine_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
		}).
		Create(&worker).Error
	if err != nil {
		return fmt.Errorf("recording worker heartbeat for %s: %w", machineName, err)
	}
	return nil
}

// GetRequest retrieves a request by correlation id.
func (r *jobRepo) GetRequest(ctx context.Context, correlationID models.ULID) (*models.Request, error) {
	var req models.Request
	if err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting request %s: %w", correlationID, err)
	}
	return &req, nil
}

// GetJob retrieves a job by id.
func (r *jobRepo) GetJob(ctx context.Context, jobID int64) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting job %d: %w", jobID, err)
	}
	return &job, nil
}

// GetJobs retrieves a request's jobs in insertion order.
func (r *jobRepo) GetJobs(ctx context.Context, correlationID models.ULID) ([]*models.Job, error) {
	var jobs []*models.Job
	if err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("id ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("getting jobs for request %s: %w", correlationID, err)
	}
	return jobs, nil
}

// GetParts retrieves a request's parts ordered by target then chunk number.
func (r *jobRepo) GetParts(ctx context.Context, correlationID models.ULID) ([]*models.Part, error) {
	var parts []*models.Part
	if err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("target_index ASC, number ASC, id ASC").
		Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("getting parts for request %s: %w", correlationID, err)
	}
	return parts, nil
}

// ListWorkers retrieves all known workers.
func (r *jobRepo) ListWorkers(ctx context.Context) ([]*models.Worker, error) {
	var workers []*models.Worker
	if err := r.db.WithContext(ctx).Order("machine_name ASC").Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}
	return workers, nil
}

// PruneFinished deletes done jobs last touched before the cutoff, then
// removes requests and parts left without any jobs.
func (r *jobRepo) PruneFinished(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("done = ? AND updated_at < ?", true, before).Delete(&models.Job{})
		if res.Error != nil {
			return fmt.Errorf("deleting finished jobs: %w", res.Error)
		}
		deleted = res.RowsAffected
		if deleted == 0 {
			return nil
		}

		orphans := tx.Model(&models.Request{}).
			Select("correlation_id").
			Where("NOT EXISTS (SELECT 1 FROM jobs WHERE jobs.correlation_id = requests.correlation_id)")

		if err := tx.Where("correlation_id IN (?)", orphans).Delete(&models.Part{}).Error; err != nil {
			return fmt.Errorf("deleting orphaned parts: %w", err)
		}
		if err := tx.Where("NOT EXISTS (SELECT 1 FROM jobs WHERE jobs.correlation_id = requests.correlation_id)").
			Delete(&models.Request{}).Error; err != nil {
			return fmt.Errorf("deleting orphaned requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
