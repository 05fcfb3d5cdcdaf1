package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/transcodarr/transcodarr/internal/dispatcher"
	"github.com/transcodarr/transcodarr/internal/models"
	"github.com/transcodarr/transcodarr/internal/service"
)

// workerAliveWindow is how recently a worker must have polled to be
// reported alive.
const workerAliveWindow = 5 * time.Minute

// WorkerHandler handles the worker poll loop and worker listing.
type WorkerHandler struct {
	dispatcher *dispatcher.Dispatcher
	requests   *service.RequestService
}

// NewWorkerHandler creates a new worker handler.
func NewWorkerHandler(d *dispatcher.Dispatcher, requests *service.RequestService) *WorkerHandler {
	return &WorkerHandler{dispatcher: d, requests: requests}
}

// NextJobInput identifies the polling worker.
type NextJobInput struct {
	MachineName string `path:"machine" doc:"Stable name of the polling worker"`
}

// DispatchedJob is the payload a worker needs to execute a job.
type DispatchedJob struct {
	ID            int64          `json:"id"`
	CorrelationID models.ULID    `json:"correlation_id"`
	Kind          models.JobKind `json:"kind"`
	Arguments     string         `json:"arguments" doc:"Complete tool argument string"`
	ChunkDuration int            `json:"chunk_duration" doc:"Covered duration in seconds, for progress estimation"`
}

// NextJobOutput is a dispatched job, or 204 when the queue is empty.
type NextJobOutput struct {
	Status int
	Body   *DispatchedJob
}

// WorkerInfo is one worker's liveness row.
type WorkerInfo struct {
	MachineName string    `json:"machine_name"`
	LastSeen    time.Time `json:"last_seen"`
	Alive       bool      `json:"alive"`
}

// ListWorkersInput is the input for the worker listing.
type ListWorkersInput struct{}

// ListWorkersOutput lists known workers.
type ListWorkersOutput struct {
	Body struct {
		Workers []WorkerInfo `json:"workers"`
	}
}

// Register registers the worker routes with the API.
func (h *WorkerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "nextJob",
		Method:      "POST",
		Path:        "/api/v1/workers/{machine}/next",
		Summary:     "Claim next job",
		Description: "Records the worker's liveness and leases the next dispatchable job",
		Tags:        []string{"Workers"},
	}, h.NextJob)

	huma.Register(api, huma.Operation{
		OperationID: "listWorkers",
		Method:      "GET",
		Path:        "/api/v1/workers",
		Summary:     "List workers",
		Description: "Returns every worker that has ever polled, with liveness",
		Tags:        []string{"Workers"},
	}, h.ListWorkers)
}

// NextJob hands the next dispatchable job to the polling worker.
func (h *WorkerHandler) NextJob(ctx context.Context, input *NextJobInput) (*NextJobOutput, error) {
	job, err := h.dispatcher.NextJob(ctx, input.MachineName)
	if err != nil {
		if errors.Is(err, models.ErrMachineNameRequired) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to claim job", err)
	}

	if job == nil {
		return &NextJobOutput{Status: http.StatusNoContent}, nil
	}

	return &NextJobOutput{
		Status: http.StatusOK,
		Body: &DispatchedJob{
			ID:            job.ID,
			CorrelationID: job.CorrelationID,
			Kind:          job.Kind,
			Arguments:     job.Arguments,
			ChunkDuration: job.ChunkDuration,
		},
	}, nil
}

// ListWorkers returns every known worker with its liveness.
func (h *WorkerHandler) ListWorkers(ctx context.Context, _ *ListWorkersInput) (*ListWorkersOutput, error) {
	workers, err := h.requests.Workers(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list workers", err)
	}

	out := &ListWorkersOutput{}
	now := time.Now()
	out.Body.Workers = make([]WorkerInfo, len(workers))
	for i, w := range workers {
		out.Body.Workers[i] = WorkerInfo{
			MachineName: w.MachineName,
			LastSeen:    w.LastSeen,
			Alive:       w.Alive(now, workerAliveWindow),
		}
	}
	return out, nil
}
