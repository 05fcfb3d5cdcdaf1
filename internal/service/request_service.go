// Package service implements the request intake pipeline: validation,
// source inspection, decomposition into unit jobs, and atomic persistence.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/transcodarr/transcodarr/internal/ffmpeg"
	"github.com/transcodarr/transcodarr/internal/models"
	"github.com/transcodarr/transcodarr/internal/observability"
	"github.com/transcodarr/transcodarr/internal/planner"
	"github.com/transcodarr/transcodarr/internal/repository"
)

// MediaProbe inspects a media file for duration and framerate.
type MediaProbe interface {
	Inspect(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// RequestService validates incoming requests, plans their jobs and persists
// the result atomically. It never mutates jobs after submission; the
// dispatcher owns the lease lifecycle.
type RequestService struct {
	repo    repository.JobRepository
	planner *planner.Planner
	probe   MediaProbe
	logger  *slog.Logger
}

// NewRequestService creates a RequestService.
func NewRequestService(repo repository.JobRepository, p *planner.Planner, probe MediaProbe, logger *slog.Logger) *RequestService {
	return &RequestService{
		repo:    repo,
		planner: p,
		probe:   probe,
		logger:  observability.WithComponent(logger, "service"),
	}
}

// SubmitInput is a validated-on-entry transcode request.
type SubmitInput struct {
	VideoSource string
	AudioSource string
	Destination string
	Needed      time.Time
	Targets     []models.TargetRendition
	EnableDash  bool
}

// SubmitResult reports what a submission produced.
type SubmitResult struct {
	CorrelationID models.ULID
	JobCount      int
	PartCount     int
}

// Submit validates a transcode request, probes its primary source, plans the
// unit jobs and persists everything in one transaction.
func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := s.validateSources(in.VideoSource, in.AudioSource, in.Destination); err != nil {
		return nil, err
	}
	if len(in.Targets) == 0 {
		return nil, models.ErrNoTargets
	}
	for _, target := range in.Targets {
		if target.Width <= 0 || target.Height <= 0 || target.VideoBitrate <= 0 || target.AudioBitrate <= 0 {
			return nil, fmt.Errorf("%w: %dx%d v=%dk a=%dk",
				models.ErrInvalidTarget, target.Width, target.Height, target.VideoBitrate, target.AudioBitrate)
		}
	}

	// Probe the video source when present; an audio-only request probes the
	// audio source for its duration.
	primary := in.VideoSource
	if primary == "" {
		primary = in.AudioSource
	}
	media, err := s.probe.Inspect(ctx, primary)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", primary, err)
	}

	req := &models.Request{
		CorrelationID: models.NewULID(),
		VideoSource:   in.VideoSource,
		AudioSource:   in.AudioSource,
		Destination:   in.Destination,
		Needed:        in.Needed,
		EnableDash:    in.EnableDash,
	}

	jobs, parts := s.planner.Plan(req, in.Targets, *media)
	correlationID, err := s.repo.AddRequest(ctx, req, jobs, parts)
	if err != nil {
		return nil, fmt.Errorf("persisting request: %w", err)
	}

	s.logger.Info("request accepted",
		"correlation_id", correlationID,
		"jobs", len(jobs),
		"parts", len(parts),
		"duration_seconds", media.DurationSeconds,
		"needed", in.Needed)

	return &SubmitResult{CorrelationID: correlationID, JobCount: len(jobs), PartCount: len(parts)}, nil
}

// SubmitMuxInput is a remux request joining a finished video track with a
// finished audio track.
type SubmitMuxInput struct {
	VideoSource string
	AudioSource string
	Destination string
	Needed      time.Time
	// Inpoint optionally skips the start of both inputs.
	Inpoint *time.Duration
}

// SubmitMux validates a mux request and persists its single job.
func (s *RequestService) SubmitMux(ctx context.Context, in SubmitMuxInput) (*SubmitResult, error) {
	if in.VideoSource == "" || in.AudioSource == "" {
		return nil, models.ErrNoSource
	}
	if err := s.validateSources(in.VideoSource, in.AudioSource, in.Destination); err != nil {
		return nil, err
	}

	media, err := s.probe.Inspect(ctx, in.VideoSource)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", in.VideoSource, err)
	}

	req := &models.Request{
		CorrelationID: models.NewULID(),
		VideoSource:   in.VideoSource,
		AudioSource:   in.AudioSource,
		Destination:   in.Destination,
		Needed:        in.Needed,
	}

	job := s.planner.PlanMux(planner.MuxInput{
		VideoSource:     in.VideoSource,
		AudioSource:     in.AudioSource,
		OutputPath:      in.Destination,
		Inpoint:         in.Inpoint,
		Needed:          in.Needed,
		DurationSeconds: media.DurationSeconds,
	})
	job.CorrelationID = req.CorrelationID

	correlationID, err := s.repo.AddRequest(ctx, req, []*models.Job{job}, nil)
	if err != nil {
		return nil, fmt.Errorf("persisting mux request: %w", err)
	}

	s.logger.Info("mux request accepted", "correlation_id", correlationID)
	return &SubmitResult{CorrelationID: correlationID, JobCount: 1}, nil
}

// RequestStatus is a request together with its jobs' lease states and the
// planned output files.
type RequestStatus struct {
	Request *models.Request
	Jobs    []*models.Job
	States  []models.LeaseState
	Parts   []*models.Part
}

// Status returns a request, the current lease state of each of its jobs,
// and its planned parts.
func (s *RequestService) Status(ctx context.Context, correlationID models.ULID, leaseTimeout time.Duration) (*RequestStatus, error) {
	req, err := s.repo.GetRequest(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("loading request %s: %w", correlationID, err)
	}
	if req == nil {
		return nil, models.ErrRequestNotFound
	}

	jobs, err := s.repo.GetJobs(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("loading jobs for %s: %w", correlationID, err)
	}

	parts, err := s.repo.GetParts(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("loading parts for %s: %w", correlationID, err)
	}

	now := time.Now()
	states := make([]models.LeaseState, len(jobs))
	for i, job := range jobs {
		states[i] = job.State(now, leaseTimeout)
	}

	return &RequestStatus{Request: req, Jobs: jobs, States: states, Parts: parts}, nil
}

// Workers returns all known workers ordered by machine name.
func (s *RequestService) Workers(ctx context.Context) ([]*models.Worker, error) {
	workers, err := s.repo.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}
	return workers, nil
}

// validateSources checks that every declared source file exists and the
// destination's parent folder exists.
func (s *RequestService) validateSources(videoSource, audioSource, destination string) error {
	if videoSource == "" && audioSource == "" {
		return models.ErrNoSource
	}
	for _, source := range []string{videoSource, audioSource} {
		if source == "" {
			continue
		}
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("%w: %s", models.ErrSourceNotFound, source)
		}
	}
	if destination == "" {
		return models.ErrDestinationInvalid
	}
	info, err := os.Stat(filepath.Dir(destination))
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", models.ErrDestinationInvalid, filepath.Dir(destination))
	}
	return nil
}
