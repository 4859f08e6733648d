// Package handlers provides the HTTP API handlers for streamvio.
package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streamvio/streamvio/internal/models"
	"github.com/streamvio/streamvio/internal/repository"
	"github.com/streamvio/streamvio/internal/transcode"
)

// JobScheduler is the scheduler surface the API needs.
type JobScheduler interface {
	Submit(ctx context.Context, req transcode.SubmitRequest) (*models.TranscodeJob, error)
	Cancel(ctx context.Context, id models.ULID) error
}

// TranscodeHandler handles transcode job endpoints.
type TranscodeHandler struct {
	scheduler JobScheduler
	repo      repository.TranscodeJobRepository
}

// NewTranscodeHandler creates a new transcode handler.
func NewTranscodeHandler(scheduler JobScheduler, repo repository.TranscodeJobRepository) *TranscodeHandler {
	return &TranscodeHandler{scheduler: scheduler, repo: repo}
}

// Register registers the transcode routes with the API.
func (h *TranscodeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "submitTranscodeJob",
		Method:      "POST",
		Path:        "/api/v1/transcode",
		Summary:     "Submit transcode job",
		Description: "Creates a transcode job and starts or queues it",
		Tags:        []string{"Transcode"},
	}, h.Submit)

	huma.Register(api, huma.Operation{
		OperationID: "getTranscodeJob",
		Method:      "GET",
		Path:        "/api/v1/transcode/{id}",
		Summary:     "Get transcode job",
		Description: "Returns a transcode job by ID",
		Tags:        []string{"Transcode"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "listTranscodeJobs",
		Method:      "GET",
		Path:        "/api/v1/transcode",
		Summary:     "List transcode jobs",
		Description: "Returns transcode jobs, newest first",
		Tags:        []string{"Transcode"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "cancelTranscodeJob",
		Method:      "POST",
		Path:        "/api/v1/transcode/{id}/cancel",
		Summary:     "Cancel transcode job",
		Description: "Cancels a queued or running transcode job",
		Tags:        []string{"Transcode"},
	}, h.Cancel)
}

// SubmitJobRequest is the submit request body.
type SubmitJobRequest struct {
	MediaID    string            `json:"media_id" doc:"Source media item ID"`
	UserID     string            `json:"user_id,omitempty" doc:"Requesting user ID"`
	InputPath  string            `json:"input_path" doc:"Absolute source file path"`
	OutputPath string            `json:"output_path,omitempty" doc:"Output path; derived when empty"`
	Profile    string            `json:"profile,omitempty" doc:"Profile name, hls, or thumbnail" default:"standard"`
	Options    models.JobOptions `json:"options,omitempty" doc:"Parameter overrides"`
}

// SubmitJobInput is the input for submitting a job.
type SubmitJobInput struct {
	Body SubmitJobRequest
}

// JobOutput wraps a single job response.
type JobOutput struct {
	Body models.TranscodeJob
}

// Submit creates a job and starts or queues it.
func (h *TranscodeHandler) Submit(ctx context.Context, input *SubmitJobInput) (*JobOutput, error) {
	mediaID, err := models.ParseULID(input.Body.MediaID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid media_id", err)
	}

	req := transcode.SubmitRequest{
		MediaID:    mediaID,
		InputPath:  input.Body.InputPath,
		OutputPath: input.Body.OutputPath,
		Profile:    input.Body.Profile,
		Options:    input.Body.Options,
	}
	if input.Body.UserID != "" {
		userID, err := models.ParseULID(input.Body.UserID)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid user_id", err)
		}
		req.UserID = userID
	}

	job, err := h.scheduler.Submit(ctx, req)
	if err != nil {
		return nil, submitError(err)
	}
	return &JobOutput{Body: *job}, nil
}

func submitError(err error) error {
	switch {
	case errors.Is(err, models.ErrTranscodingDisabled):
		return huma.Error503ServiceUnavailable("transcoding is disabled", err)
	case errors.Is(err, models.ErrInputPathRequired),
		errors.Is(err, models.ErrMediaIDRequired),
		errors.Is(err, models.ErrUnknownProfile),
		errors.Is(err, models.ErrOutputOutsideRoot):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("submitting job", err)
	}
}

// GetJobInput is the input for fetching a single job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// GetByID returns a job by ID.
func (h *TranscodeHandler) GetByID(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid job ID", err)
	}

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError("fetching job", err)
	}
	return &JobOutput{Body: *job}, nil
}

// ListJobsInput is the input for listing jobs.
type ListJobsInput struct {
	Status  string `query:"status" enum:"pending,processing,completed,failed,cancelled," doc:"Filter by status"`
	MediaID string `query:"media_id" doc:"Filter by media item"`
	Offset  int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	Limit   int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size" default:"50"`
}

// ListJobsBody is the list response body.
type ListJobsBody struct {
	Jobs  []*models.TranscodeJob `json:"jobs"`
	Total int64                  `json:"total"`
}

// ListJobsOutput is the output for listing jobs.
type ListJobsOutput struct {
	Body ListJobsBody
}

// List returns jobs matching the filter, newest first.
func (h *TranscodeHandler) List(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	filter := repository.JobFilter{
		Status: models.JobStatus(input.Status),
		Offset: input.Offset,
		Limit:  input.Limit,
	}
	if input.MediaID != "" {
		mediaID, err := models.ParseULID(input.MediaID)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid media_id", err)
		}
		filter.MediaID = mediaID
	}

	jobs, err := h.repo.List(ctx, filter)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing jobs", err)
	}
	total, err := h.repo.Count(ctx, filter)
	if err != nil {
		return nil, huma.Error500InternalServerError("counting jobs", err)
	}

	if jobs == nil {
		jobs = []*models.TranscodeJob{}
	}
	return &ListJobsOutput{Body: ListJobsBody{Jobs: jobs, Total: total}}, nil
}

// CancelJobInput is the input for cancelling a job.
type CancelJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// CancelJobBody is the cancel response body.
type CancelJobBody struct {
	Cancelled bool `json:"cancelled"`
}

// CancelJobOutput is the output for cancelling a job.
type CancelJobOutput struct {
	Body CancelJobBody
}

// Cancel cancels a queued or running job.
func (h *TranscodeHandler) Cancel(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid job ID", err)
	}

	switch err := h.scheduler.Cancel(ctx, id); {
	case err == nil:
		return &CancelJobOutput{Body: CancelJobBody{Cancelled: true}}, nil
	case errors.Is(err, models.ErrJobNotFound):
		return nil, huma.Error404NotFound("job not found")
	case errors.Is(err, models.ErrJobFinished):
		return nil, huma.Error409Conflict("job already finished")
	default:
		return nil, huma.Error500InternalServerError("cancelling job", err)
	}
}
