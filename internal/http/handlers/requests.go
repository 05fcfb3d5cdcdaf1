// Package handlers provides the HTTP API handlers for transcodarr.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/transcodarr/transcodarr/internal/dispatcher"
	"github.com/transcodarr/transcodarr/internal/models"
	"github.com/transcodarr/transcodarr/internal/service"
)

// RequestHandler handles request intake and operator endpoints.
type RequestHandler struct {
	requests   *service.RequestService
	dispatcher *dispatcher.Dispatcher
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requests *service.RequestService, d *dispatcher.Dispatcher) *RequestHandler {
	return &RequestHandler{requests: requests, dispatcher: d}
}

// TargetRendition is one requested output rendition.
type TargetRendition struct {
	Width        int `json:"width" minimum:"1" doc:"Output width in pixels"`
	Height       int `json:"height" minimum:"1" doc:"Output height in pixels"`
	VideoBitrate int `json:"video_bitrate" minimum:"1" doc:"Video bitrate in kbit/s"`
	AudioBitrate int `json:"audio_bitrate" minimum:"1" doc:"Audio bitrate in kbit/s"`
}

// SubmitRequestInput is the transcode request payload.
type SubmitRequestInput struct {
	Body struct {
		VideoSource string `json:"video_source,omitempty" doc:"Path to the video source file"`
		AudioSource string `json:"audio_source,omitempty" doc:"Path to an alternate audio source file"`
		// A non-empty audio_source implies has_alternate_audio; the flag
		// exists so clients can state the intent explicitly and get a 400
		// instead of a silently video-only plan when the path is missing.
		HasAlternateAudio bool              `json:"has_alternate_audio,omitempty" doc:"Audio is read from audio_source instead of the video file; implied when audio_source is set"`
		Destination       string            `json:"destination" doc:"Final output path; chunk and audio files are placed beside it"`
		Needed            time.Time         `json:"needed" doc:"Deadline used to order dispatch"`
		Targets           []TargetRendition `json:"targets" doc:"Output renditions, at least one"`
		EnableDash        bool              `json:"enable_dash,omitempty" doc:"Emit DASH-compatible keyframe-aligned chunks"`
	}
}

// SubmitRequestOutput reports the accepted request.
type SubmitRequestOutput struct {
	Body struct {
		CorrelationID models.ULID `json:"correlation_id" doc:"Identifier shared by all jobs of this request"`
		Jobs          int         `json:"jobs" doc:"Number of unit jobs planned"`
		Parts         int         `json:"parts" doc:"Number of output files that will be produced"`
	}
}

// SubmitMuxInput is the mux request payload.
type SubmitMuxInput struct {
	Body struct {
		VideoSource    string    `json:"video_source" doc:"Path to the finished video track"`
		AudioSource    string    `json:"audio_source" doc:"Path to the finished audio track"`
		Destination    string    `json:"destination" doc:"Output path for the muxed file"`
		Needed         time.Time `json:"needed" doc:"Deadline used to order dispatch"`
		InpointSeconds *float64  `json:"inpoint_seconds,omitempty" doc:"Optional seek offset applied to both inputs"`
	}
}

// PauseInput addresses a request by correlation id.
type PauseInput struct {
	CorrelationID string `path:"correlationId" doc:"Request correlation id"`
}

// PauseOutput reports how many jobs were deactivated.
type PauseOutput struct {
	Body struct {
		Paused int64 `json:"paused" doc:"Jobs deactivated; claimed jobs run to completion"`
	}
}

// JobStatus is one job with its current lease state.
type JobStatus struct {
	ID            int64             `json:"id"`
	CorrelationID models.ULID       `json:"correlation_id"`
	Kind          models.JobKind    `json:"kind"`
	Arguments     string            `json:"arguments"`
	Needed        time.Time         `json:"needed"`
	State         models.LeaseState `json:"state"`
	Heartbeat     *time.Time        `json:"heartbeat,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
}

// ListJobsInput addresses a request by correlation id.
type ListJobsInput struct {
	CorrelationID string `path:"correlationId" doc:"Request correlation id"`
}

// PartInfo is one planned output file.
type PartInfo struct {
	TargetIndex int    `json:"target_index"`
	Number      int    `json:"number"`
	Filename    string `json:"filename"`
}

// ListJobsOutput lists a request's jobs with lease state and its planned
// output files.
type ListJobsOutput struct {
	Body struct {
		CorrelationID models.ULID `json:"correlation_id"`
		Jobs          []JobStatus `json:"jobs"`
		Parts         []PartInfo  `json:"parts"`
	}
}

// Register registers the request routes with the API.
func (h *RequestHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "submitRequest",
		Method:      "POST",
		Path:        "/api/v1/requests",
		Summary:     "Submit transcode request",
		Description: "Validates the request, plans its unit jobs and queues them",
		Tags:        []string{"Requests"},
	}, h.Submit)

	huma.Register(api, huma.Operation{
		OperationID: "submitMuxRequest",
		Method:      "POST",
		Path:        "/api/v1/requests/mux",
		Summary:     "Submit mux request",
		Description: "Queues a single job joining a video track with an audio track",
		Tags:        []string{"Requests"},
	}, h.SubmitMux)

	huma.Register(api, huma.Operation{
		OperationID: "pauseRequest",
		Method:      "POST",
		Path:        "/api/v1/requests/{correlationId}/pause",
		Summary:     "Pause request",
		Description: "Deactivates the request's unclaimed jobs",
		Tags:        []string{"Requests"},
	}, h.Pause)

	huma.Register(api, huma.Operation{
		OperationID: "listRequestJobs",
		Method:      "GET",
		Path:        "/api/v1/requests/{correlationId}/jobs",
		Summary:     "List request jobs",
		Description: "Returns the request's jobs with their lease states",
		Tags:        []string{"Requests"},
	}, h.ListJobs)
}

// Submit accepts a transcode request.
func (h *RequestHandler) Submit(ctx context.Context, input *SubmitRequestInput) (*SubmitRequestOutput, error) {
	if input.Body.HasAlternateAudio && input.Body.AudioSource == "" {
		return nil, huma.Error400BadRequest("has_alternate_audio is set but audio_source is empty")
	}

	targets := make([]models.TargetRendition, len(input.Body.Targets))
	for i, t := range input.Body.Targets {
		targets[i] = models.TargetRendition{
			Width:        t.Width,
			Height:       t.Height,
			VideoBitrate: t.VideoBitrate,
			AudioBitrate: t.AudioBitrate,
		}
	}

	result, err := h.requests.Submit(ctx, service.SubmitInput{
		VideoSource: input.Body.VideoSource,
		AudioSource: input.Body.AudioSource,
		Destination: input.Body.Destination,
		Needed:      input.Body.Needed,
		Targets:     targets,
		EnableDash:  input.Body.EnableDash,
	})
	if err != nil {
		return nil, mapSubmitError(err)
	}

	out := &SubmitRequestOutput{}
	out.Body.CorrelationID = result.CorrelationID
	out.Body.Jobs = result.JobCount
	out.Body.Parts = result.PartCount
	return out, nil
}

// SubmitMux accepts a mux request.
func (h *RequestHandler) SubmitMux(ctx context.Context, input *SubmitMuxInput) (*SubmitRequestOutput, error) {
	var inpoint *time.Duration
	if input.Body.InpointSeconds != nil {
		d := time.Duration(*input.Body.InpointSeconds * float64(time.Second))
		inpoint = &d
	}

	result, err := h.requests.SubmitMux(ctx, service.SubmitMuxInput{
		VideoSource: input.Body.VideoSource,
		AudioSource: input.Body.AudioSource,
		Destination: input.Body.Destination,
		Needed:      input.Body.Needed,
		Inpoint:     inpoint,
	})
	if err != nil {
		return nil, mapSubmitError(err)
	}

	out := &SubmitRequestOutput{}
	out.Body.CorrelationID = result.CorrelationID
	out.Body.Jobs = result.JobCount
	return out, nil
}

// Pause deactivates the request's unclaimed jobs.
func (h *RequestHandler) Pause(ctx context.Context, input *PauseInput) (*PauseOutput, error) {
	correlationID, err := models.ParseULID(input.CorrelationID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid correlation id", err)
	}

	paused, err := h.dispatcher.Pause(ctx, correlationID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to pause request", err)
	}

	out := &PauseOutput{}
	out.Body.Paused = paused
	return out, nil
}

// ListJobs returns the request's jobs with lease states.
func (h *RequestHandler) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	correlationID, err := models.ParseULID(input.CorrelationID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid correlation id", err)
	}

	status, err := h.requests.Status(ctx, correlationID, h.dispatcher.LeaseTimeout())
	if err != nil {
		if errors.Is(err, models.ErrRequestNotFound) {
			return nil, huma.Error404NotFound("request not found")
		}
		return nil, huma.Error500InternalServerError("failed to load request", err)
	}

	out := &ListJobsOutput{}
	out.Body.CorrelationID = correlationID
	out.Body.Jobs = make([]JobStatus, len(status.Jobs))
	for i, job := range status.Jobs {
		out.Body.Jobs[i] = JobStatus{
			ID:            job.ID,
			CorrelationID: job.CorrelationID,
			Kind:          job.Kind,
			Arguments:     job.Arguments,
			Needed:        job.Needed,
			State:         status.States[i],
			Heartbeat:     job.Heartbeat,
			LastError:     job.LastError,
		}
	}
	out.Body.Parts = make([]PartInfo, len(status.Parts))
	for i, part := range status.Parts {
		out.Body.Parts[i] = PartInfo{
			TargetIndex: part.TargetIndex,
			Number:      part.Number,
			Filename:    part.Filename,
		}
	}
	return out, nil
}

// mapSubmitError translates intake errors to HTTP status codes. Bad payloads
// are 400; payloads referencing files the server cannot see are 422.
func mapSubmitError(err error) error {
	switch {
	case errors.Is(err, models.ErrNoSource),
		errors.Is(err, models.ErrNoTargets),
		errors.Is(err, models.ErrInvalidTarget):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, models.ErrSourceNotFound),
		errors.Is(err, models.ErrDestinationInvalid),
		errors.Is(err, models.ErrProbeFailed):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("failed to submit request", err)
	}
}
