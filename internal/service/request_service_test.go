package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/transcodarr/transcodarr/internal/config"
	"github.com/transcodarr/transcodarr/internal/ffmpeg"
	"github.com/transcodarr/transcodarr/internal/models"
	"github.com/transcodarr/transcodarr/internal/observability"
	"github.com/transcodarr/transcodarr/internal/planner"
	"github.com/transcodarr/transcodarr/internal/repository"
)

type stubProbe struct {
	info   ffmpeg.MediaInfo
	err    error
	probed []string
}

func (s *stubProbe) Inspect(_ context.Context, path string) (*ffmpeg.MediaInfo, error) {
	s.probed = append(s.probed, path)
	if s.err != nil {
		return nil, s.err
	}
	info := s.info
	return &info, nil
}

type serviceFixture struct {
	svc   *RequestService
	db    *gorm.DB
	probe *stubProbe

	videoSource string
	audioSource string
	destination string
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Request{}, &models.Job{}, &models.Part{}, &models.Worker{}))

	dir := t.TempDir()
	videoSource := filepath.Join(dir, "src.mov")
	audioSource := filepath.Join(dir, "src.wav")
	require.NoError(t, os.WriteFile(videoSource, []byte("v"), 0o644))
	require.NoError(t, os.WriteFile(audioSource, []byte("a"), 0o644))

	probe := &stubProbe{info: ffmpeg.MediaInfo{DurationSeconds: 180, Framerate: 25}}
	logger := observability.NewLogger(config.LoggingConfig{Level: "error", Format: "text"})
	p := planner.New(config.EncodeConfig{ChunkSeconds: 60})

	return &serviceFixture{
		svc:         NewRequestService(repository.NewJobRepository(db), p, probe, logger),
		db:          db,
		probe:       probe,
		videoSource: videoSource,
		audioSource: audioSource,
		destination: filepath.Join(dir, "final.mp4"),
	}
}

func (f *serviceFixture) submitInput() SubmitInput {
	return SubmitInput{
		VideoSource: f.videoSource,
		Destination: f.destination,
		Needed:      time.Now().Add(time.Hour),
		Targets: []models.TargetRendition{
			{Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128},
		},
	}
}

func TestSubmit(t *testing.T) {
	f := setupService(t)

	result, err := f.svc.Submit(context.Background(), f.submitInput())
	require.NoError(t, err)
	assert.False(t, result.CorrelationID.IsZero())
	assert.Equal(t, 4, result.JobCount)
	assert.Equal(t, 4, result.PartCount)
	assert.Equal(t, []string{f.videoSource}, f.probe.probed)

	var jobCount int64
	require.NoError(t, f.db.Model(&models.Job{}).Count(&jobCount).Error)
	assert.Equal(t, int64(4), jobCount)
}

func TestSubmitValidation(t *testing.T) {
	f := setupService(t)

	tests := []struct {
		name    string
		mutate  func(*SubmitInput)
		wantErr error
	}{
		{
			name:    "no sources",
			mutate:  func(in *SubmitInput) { in.VideoSource = "" },
			wantErr: models.ErrNoSource,
		},
		{
			name:    "video source missing on disk",
			mutate:  func(in *SubmitInput) { in.VideoSource = "/nonexistent/src.mov" },
			wantErr: models.ErrSourceNotFound,
		},
		{
			name:    "audio source missing on disk",
			mutate:  func(in *SubmitInput) { in.AudioSource = "/nonexistent/src.wav" },
			wantErr: models.ErrSourceNotFound,
		},
		{
			name:    "destination folder missing",
			mutate:  func(in *SubmitInput) { in.Destination = "/nonexistent/out/final.mp4" },
			wantErr: models.ErrDestinationInvalid,
		},
		{
			name:    "no targets",
			mutate:  func(in *SubmitInput) { in.Targets = nil },
			wantErr: models.ErrNoTargets,
		},
		{
			name: "zero-width target",
			mutate: func(in *SubmitInput) {
				in.Targets = []models.TargetRendition{{Height: 720, VideoBitrate: 2000, AudioBitrate: 128}}
			},
			wantErr: models.ErrInvalidTarget,
		},
		{
			name: "negative bitrate target",
			mutate: func(in *SubmitInput) {
				in.Targets = []models.TargetRendition{{Width: 1280, Height: 720, VideoBitrate: -1, AudioBitrate: 128}}
			},
			wantErr: models.ErrInvalidTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.submitInput()
			tt.mutate(&in)
			_, err := f.svc.Submit(context.Background(), in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubmitProbesAudioWhenNoVideo(t *testing.T) {
	f := setupService(t)

	in := f.submitInput()
	in.VideoSource = ""
	in.AudioSource = f.audioSource

	result, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{f.audioSource}, f.probe.probed)
	// Audio-only requests plan no video chunks.
	assert.Equal(t, 1, result.JobCount)
}

func TestSubmitProbeFailure(t *testing.T) {
	f := setupService(t)
	f.probe.err = models.ErrProbeFailed

	_, err := f.svc.Submit(context.Background(), f.submitInput())
	assert.ErrorIs(t, err, models.ErrProbeFailed)

	// Nothing persisted.
	var count int64
	require.NoError(t, f.db.Model(&models.Request{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitMux(t *testing.T) {
	f := setupService(t)

	inpoint := 5 * time.Second
	result, err := f.svc.SubmitMux(context.Background(), SubmitMuxInput{
		VideoSource: f.videoSource,
		AudioSource: f.audioSource,
		Destination: f.destination,
		Needed:      time.Now().Add(time.Hour),
		Inpoint:     &inpoint,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.JobCount)

	var job models.Job
	require.NoError(t, f.db.First(&job, "correlation_id = ?", result.CorrelationID).Error)
	assert.Equal(t, models.JobKindMux, job.Kind)
	assert.Contains(t, job.Arguments, "-ss 0:00:05 -xerror")
	assert.Contains(t, job.Arguments, "-c copy -y")
}

func TestSubmitMuxRequiresBothSources(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.SubmitMux(context.Background(), SubmitMuxInput{
		VideoSource: f.videoSource,
		Destination: f.destination,
	})
	assert.ErrorIs(t, err, models.ErrNoSource)
}

func TestStatus(t *testing.T) {
	f := setupService(t)

	result, err := f.svc.Submit(context.Background(), f.submitInput())
	require.NoError(t, err)

	status, err := f.svc.Status(context.Background(), result.CorrelationID, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, result.CorrelationID, status.Request.CorrelationID)
	require.Len(t, status.Jobs, 4)
	for _, state := range status.States {
		assert.Equal(t, models.LeaseStateQueued, state)
	}
}

func TestStatusUnknownRequest(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.Status(context.Background(), models.NewULID(), 2*time.Minute)
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}
