package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/transcodarr/transcodarr/internal/config"
	"github.com/transcodarr/transcodarr/internal/dispatcher"
	"github.com/transcodarr/transcodarr/internal/ffmpeg"
	"github.com/transcodarr/transcodarr/internal/models"
	"github.com/transcodarr/transcodarr/internal/observability"
	"github.com/transcodarr/transcodarr/internal/planner"
	"github.com/transcodarr/transcodarr/internal/repository"
	"github.com/transcodarr/transcodarr/internal/service"
)

type fixedProbe struct {
	info ffmpeg.MediaInfo
}

func (p *fixedProbe) Inspect(_ context.Context, _ string) (*ffmpeg.MediaInfo, error) {
	info := p.info
	return &info, nil
}

type handlerFixture struct {
	requests *RequestHandler
	workers  *WorkerHandler
	jobs     *JobHandler
	db       *gorm.DB

	videoSource string
	audioSource string
	destination string
}

func setupHandlers(t *testing.T) *handlerFixture {
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

	logger := observability.NewLogger(config.LoggingConfig{Level: "error", Format: "text"})
	repo := repository.NewJobRepository(db)
	p := planner.New(config.EncodeConfig{ChunkSeconds: 60})
	probe := &fixedProbe{info: ffmpeg.MediaInfo{DurationSeconds: 180, Framerate: 25}}
	svc := service.NewRequestService(repo, p, probe, logger)
	d := dispatcher.New(repo, config.DispatchConfig{LeaseTimeout: 2 * time.Minute}, logger)

	return &handlerFixture{
		requests:    NewRequestHandler(svc, d),
		workers:     NewWorkerHandler(d, svc),
		jobs:        NewJobHandler(d),
		db:          db,
		videoSource: videoSource,
		audioSource: audioSource,
		destination: filepath.Join(dir, "final.mp4"),
	}
}

func (f *handlerFixture) submit(t *testing.T) models.ULID {
	t.Helper()

	input := &SubmitRequestInput{}
	input.Body.VideoSource = f.videoSource
	input.Body.Destination = f.destination
	input.Body.Needed = time.Now().Add(time.Hour)
	input.Body.Targets = []TargetRendition{{Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128}}

	output, err := f.requests.Submit(context.Background(), input)
	require.NoError(t, err)
	return output.Body.CorrelationID
}

func TestSubmitRequest(t *testing.T) {
	f := setupHandlers(t)

	input := &SubmitRequestInput{}
	input.Body.VideoSource = f.videoSource
	input.Body.Destination = f.destination
	input.Body.Needed = time.Now().Add(time.Hour)
	input.Body.Targets = []TargetRendition{{Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128}}

	output, err := f.requests.Submit(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Body.CorrelationID.IsZero())
	assert.Equal(t, 4, output.Body.Jobs)
	assert.Equal(t, 4, output.Body.Parts)
}

func TestSubmitRequestErrorMapping(t *testing.T) {
	f := setupHandlers(t)

	tests := []struct {
		name       string
		mutate     func(*SubmitRequestInput)
		wantStatus int
	}{
		{
			name:       "no sources is a bad request",
			mutate:     func(in *SubmitRequestInput) { in.Body.VideoSource = "" },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no targets is a bad request",
			mutate:     func(in *SubmitRequestInput) { in.Body.Targets = nil },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "alternate audio flag without a path is a bad request",
			mutate: func(in *SubmitRequestInput) {
				in.Body.HasAlternateAudio = true
				in.Body.AudioSource = ""
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing source file is unprocessable",
			mutate:     func(in *SubmitRequestInput) { in.Body.VideoSource = "/nonexistent/src.mov" },
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing destination folder is unprocessable",
			mutate:     func(in *SubmitRequestInput) { in.Body.Destination = "/nonexistent/out/final.mp4" },
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &SubmitRequestInput{}
			input.Body.VideoSource = f.videoSource
			input.Body.Destination = f.destination
			input.Body.Needed = time.Now().Add(time.Hour)
			input.Body.Targets = []TargetRendition{{Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128}}
			tt.mutate(input)

			_, err := f.requests.Submit(context.Background(), input)
			require.Error(t, err)
			var statusErr huma.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.wantStatus, statusErr.GetStatus())
		})
	}
}

func TestSubmitRequestAlternateAudio(t *testing.T) {
	f := setupHandlers(t)

	input := &SubmitRequestInput{}
	input.Body.VideoSource = f.videoSource
	input.Body.AudioSource = f.audioSource
	input.Body.HasAlternateAudio = true
	input.Body.Destination = f.destination
	input.Body.Needed = time.Now().Add(time.Hour)
	input.Body.Targets = []TargetRendition{{Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128}}

	output, err := f.requests.Submit(context.Background(), input)
	require.NoError(t, err)

	var req models.Request
	require.NoError(t, f.db.First(&req, "correlation_id = ?", output.Body.CorrelationID).Error)
	assert.Equal(t, f.audioSource, req.AudioSource)
}

func TestSubmitMuxRequest(t *testing.T) {
	f := setupHandlers(t)

	inpoint := 5.0
	input := &SubmitMuxInput{}
	input.Body.VideoSource = f.videoSource
	input.Body.AudioSource = f.audioSource
	input.Body.Destination = f.destination
	input.Body.Needed = time.Now().Add(time.Hour)
	input.Body.InpointSeconds = &inpoint

	output, err := f.requests.SubmitMux(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, output.Body.Jobs)

	var job models.Job
	require.NoError(t, f.db.First(&job, "correlation_id = ?", output.Body.CorrelationID).Error)
	assert.Contains(t, job.Arguments, "-ss 0:00:05 -xerror")
}

func TestNextJobPollAndLifecycle(t *testing.T) {
	f := setupHandlers(t)
	f.submit(t)

	// First poll gets the audio job.
	output, err := f.workers.NextJob(context.Background(), &NextJobInput{MachineName: "worker-1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, output.Status)
	require.NotNil(t, output.Body)
	assert.Equal(t, models.JobKindAudio, output.Body.Kind)
	assert.NotEmpty(t, output.Body.Arguments)

	jobID := output.Body.ID

	// Heartbeat, then report done.
	_, err = f.jobs.Heartbeat(context.Background(), &JobIDInput{ID: jobID})
	require.NoError(t, err)
	_, err = f.jobs.Done(context.Background(), &JobIDInput{ID: jobID})
	require.NoError(t, err)

	// Remaining polls drain the three video jobs, then the queue is empty.
	for i := 0; i < 3; i++ {
		output, err = f.workers.NextJob(context.Background(), &NextJobInput{MachineName: "worker-1"})
		require.NoError(t, err)
		require.NotNil(t, output.Body)
		assert.Equal(t, models.JobKindVideo, output.Body.Kind)
		_, err = f.jobs.Done(context.Background(), &JobIDInput{ID: output.Body.ID})
		require.NoError(t, err)
	}

	output, err = f.workers.NextJob(context.Background(), &NextJobInput{MachineName: "worker-1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, output.Status)
	assert.Nil(t, output.Body)
}

func TestHeartbeatUnknownJob(t *testing.T) {
	f := setupHandlers(t)

	_, err := f.jobs.Heartbeat(context.Background(), &JobIDInput{ID: 12345})
	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.GetStatus())
}

func TestFailedJobReport(t *testing.T) {
	f := setupHandlers(t)
	f.submit(t)

	output, err := f.workers.NextJob(context.Background(), &NextJobInput{MachineName: "worker-1"})
	require.NoError(t, err)
	require.NotNil(t, output.Body)

	input := &JobFailedInput{ID: output.Body.ID}
	input.Body.Reason = "encoder exited with status 1"
	_, err = f.jobs.Failed(context.Background(), input)
	require.NoError(t, err)

	var job models.Job
	require.NoError(t, f.db.First(&job, output.Body.ID).Error)
	assert.False(t, job.Active)
	assert.Equal(t, "encoder exited with status 1", job.LastError)
}

func TestPauseAndListJobs(t *testing.T) {
	f := setupHandlers(t)
	correlationID := f.submit(t)

	pauseOut, err := f.requests.Pause(context.Background(), &PauseInput{CorrelationID: correlationID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(4), pauseOut.Body.Paused)

	listOut, err := f.requests.ListJobs(context.Background(), &ListJobsInput{CorrelationID: correlationID.String()})
	require.NoError(t, err)
	require.Len(t, listOut.Body.Jobs, 4)
	for _, job := range listOut.Body.Jobs {
		assert.Equal(t, models.LeaseStatePaused, job.State)
	}
	require.Len(t, listOut.Body.Parts, 4)
	assert.Contains(t, listOut.Body.Parts[0].Filename, "_0_audio.mp4")
}

func TestGetJob(t *testing.T) {
	f := setupHandlers(t)
	f.submit(t)

	output, err := f.workers.NextJob(context.Background(), &NextJobInput{MachineName: "worker-1"})
	require.NoError(t, err)
	require.NotNil(t, output.Body)

	jobOut, err := f.jobs.Get(context.Background(), &JobIDInput{ID: output.Body.ID})
	require.NoError(t, err)
	assert.Equal(t, output.Body.ID, jobOut.Body.ID)
	assert.Equal(t, models.LeaseStateLeased, jobOut.Body.State)

	_, err = f.jobs.Get(context.Background(), &JobIDInput{ID: 99999})
	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.GetStatus())
}

func TestListJobsUnknownRequest(t *testing.T) {
	f := setupHandlers(t)

	_, err := f.requests.ListJobs(context.Background(), &ListJobsInput{CorrelationID: models.NewULID().String()})
	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.GetStatus())
}

func TestListWorkers(t *testing.T) {
	f := setupHandlers(t)

	_, err := f.workers.NextJob(context.Background(), &NextJobInput{MachineName: "worker-b"})
	require.NoError(t, err)
	_, err = f.workers.NextJob(context.Background(), &NextJobInput{MachineName: "worker-a"})
	require.NoError(t, err)

	output, err := f.workers.ListWorkers(context.Background(), &ListWorkersInput{})
	require.NoError(t, err)
	require.Len(t, output.Body.Workers, 2)
	assert.Equal(t, "worker-a", output.Body.Workers[0].MachineName)
	assert.True(t, output.Body.Workers[0].Alive)
	assert.Equal(t, "worker-b", output.Body.Workers[1].MachineName)
}

func TestGetHealth(t *testing.T) {
	f := setupHandlers(t)
	handler := NewHealthHandler("1.0.0", f.db)

	output, err := handler.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", output.Body.Status)
	assert.Equal(t, "1.0.0", output.Body.Version)
	assert.Equal(t, "ok", output.Body.Database.Status)
	assert.Positive(t, output.Body.CPU.Cores)
}

func TestGetHealthWithoutDB(t *testing.T) {
	handler := NewHealthHandler("1.0.0", nil)

	output, err := handler.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "degraded", output.Body.Status)
	assert.Equal(t, "unknown", output.Body.Database.Status)
}
