package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/transcodarr/transcodarr/internal/dispatcher"
	"github.com/transcodarr/transcodarr/internal/models"
)

// JobHandler handles worker-side job lifecycle reports.
type JobHandler struct {
	dispatcher *dispatcher.Dispatcher
}

// NewJobHandler creates a new job handler.
func NewJobHandler(d *dispatcher.Dispatcher) *JobHandler {
	return &JobHandler{dispatcher: d}
}

// JobIDInput addresses a job by id.
type JobIDInput struct {
	ID int64 `path:"id" doc:"Job id"`
}

// JobFailedInput carries the worker's failure report.
type JobFailedInput struct {
	ID   int64 `path:"id" doc:"Job id"`
	Body struct {
		Reason string `json:"reason" doc:"Why the job failed, as reported by the worker"`
	}
}

// AckOutput is a bare acknowledgement.
type AckOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

// GetJobOutput is a single job with its lease state.
type GetJobOutput struct {
	Body JobStatus
}

// Register registers the job lifecycle routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get job",
		Description: "Returns a job with its current lease state",
		Tags:        []string{"Jobs"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "heartbeatJob",
		Method:      "POST",
		Path:        "/api/v1/jobs/{id}/heartbeat",
		Summary:     "Heartbeat job",
		Description: "Refreshes the lease on a held job",
		Tags:        []string{"Jobs"},
	}, h.Heartbeat)

	huma.Register(api, huma.Operation{
		OperationID: "completeJob",
		Method:      "POST",
		Path:        "/api/v1/jobs/{id}/done",
		Summary:     "Complete job",
		Description: "Marks a held job done; done jobs are never dispatched again",
		Tags:        []string{"Jobs"},
	}, h.Done)

	huma.Register(api, huma.Operation{
		OperationID: "failJob",
		Method:      "POST",
		Path:        "/api/v1/jobs/{id}/failed",
		Summary:     "Fail job",
		Description: "Records a failure and parks the job until an operator intervenes",
		Tags:        []string{"Jobs"},
	}, h.Failed)
}

// Get returns a job with its lease state.
func (h *JobHandler) Get(ctx context.Context, input *JobIDInput) (*GetJobOutput, error) {
	job, err := h.dispatcher.Job(ctx, input.ID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError("failed to load job", err)
	}

	return &GetJobOutput{
		Body: JobStatus{
			ID:            job.ID,
			CorrelationID: job.CorrelationID,
			Kind:          job.Kind,
			Arguments:     job.Arguments,
			Needed:        job.Needed,
			State:         job.State(time.Now(), h.dispatcher.LeaseTimeout()),
			Heartbeat:     job.Heartbeat,
			LastError:     job.LastError,
		},
	}, nil
}

// Heartbeat refreshes the lease on a held job.
func (h *JobHandler) Heartbeat(ctx context.Context, input *JobIDInput) (*AckOutput, error) {
	if err := h.dispatcher.Heartbeat(ctx, input.ID); err != nil {
		return nil, mapJobError(err, "failed to refresh lease")
	}
	return ack(), nil
}

// Done marks a held job done.
func (h *JobHandler) Done(ctx context.Context, input *JobIDInput) (*AckOutput, error) {
	if err := h.dispatcher.Complete(ctx, input.ID); err != nil {
		return nil, mapJobError(err, "failed to complete job")
	}
	return ack(), nil
}

// Failed records a worker failure report.
func (h *JobHandler) Failed(ctx context.Context, input *JobFailedInput) (*AckOutput, error) {
	if err := h.dispatcher.Fail(ctx, input.ID, input.Body.Reason); err != nil {
		return nil, mapJobError(err, "failed to record job failure")
	}
	return ack(), nil
}

func ack() *AckOutput {
	out := &AckOutput{}
	out.Body.OK = true
	return out
}

// mapJobError translates lifecycle errors. A report for a job that is not
// held (unknown id, lease already reclaimed, already done) is a 404: the
// worker's view of the job is stale either way.
func mapJobError(err error, msg string) error {
	if errors.Is(err, models.ErrJobNotFound) {
		return huma.Error404NotFound("job not held")
	}
	return huma.Error500InternalServerError(msg, err)
}
