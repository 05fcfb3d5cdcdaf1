// Package janitor prunes finished jobs on a cron schedule. Requests whose
// jobs have all been pruned are removed together with their parts.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/transcodarr/transcodarr/internal/config"
	"github.com/transcodarr/transcodarr/internal/observability"
	"github.com/transcodarr/transcodarr/internal/repository"
)

// Janitor runs retention cleanup on a cron schedule.
type Janitor struct {
	mu sync.Mutex

	repo      repository.JobRepository
	schedule  cron.Schedule
	retention time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Janitor from configuration. The cron expression uses the
// standard 5-field format.
func New(repo repository.JobRepository, cfg config.JanitorConfig, logger *slog.Logger) (*Janitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("parsing janitor cron %q: %w", cfg.Cron, err)
	}

	return &Janitor{
		repo:      repo,
		schedule:  schedule,
		retention: cfg.Retention,
		logger:    observability.WithComponent(logger, "janitor"),
	}, nil
}

// Start begins the background cleanup loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil {
		return fmt.Errorf("janitor already started")
	}

	ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.loop(ctx)

	j.logger.Info("janitor started",
		slog.Time("next_run", j.schedule.Next(time.Now())),
		slog.Duration("retention", j.retention))
	return nil
}

// Stop cancels the loop and waits for a running cleanup to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("cleanup run failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single cleanup pass, deleting done jobs last touched
// before the retention cutoff.
func (j *Janitor) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)

	pruned, err := j.repo.PruneFinished(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning finished jobs: %w", err)
	}

	if pruned > 0 {
		j.logger.Info("pruned finished jobs",
			slog.Int64("jobs", pruned),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
