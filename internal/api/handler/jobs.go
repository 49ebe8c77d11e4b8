package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/anupsarkar-dev/resumix/internal/api/response"
	"github.com/anupsarkar-dev/resumix/internal/store"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// JobGetter is the read-side interface the polling handlers depend on.
type JobGetter interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// NewJobStatusHandler returns the handler for GET /jobs/{jobID}.
func NewJobStatusHandler(jobs JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(w, r, jobs)
		if !ok {
			return
		}
		response.JSON(w, jobStatusResponse{
			JobID:       job.ID,
			Status:      job.Status,
			Progress:    job.Progress,
			CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
			CompletedAt: formatTime(job.CompletedAt),
		})
	}
}

// NewJobResultHandler returns the handler for GET /jobs/{jobID}/result.
// Polling a job that is not yet terminal answers 409; the job keeps
// running.
func NewJobResultHandler(jobs JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(w, r, jobs)
		if !ok {
			return
		}
		if !job.Terminal() {
			response.Error(w, http.StatusConflict, "JOB_NOT_FINISHED",
				"Job "+job.ID.String()+" is not yet completed", nil)
			return
		}
		response.JSON(w, jobResultResponse{
			JobID:       job.ID,
			Status:      job.Status,
			Result:      job.Result,
			Error:       job.Error,
			CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
			CompletedAt: formatTime(job.CompletedAt),
		})
	}
}

// lookupJob resolves the jobID path parameter. Malformed and unknown
// ids are indistinguishable to the client: both answer 404.
func lookupJob(w http.ResponseWriter, r *http.Request, jobs JobGetter) (*models.Job, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
		return nil, false
	}
	job, err := jobs.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
				"Job "+id.String()+" not found", nil)
			return nil, false
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to look up job", nil)
		return nil, false
	}
	return job, true
}

type jobStatusResponse struct {
	JobID       uuid.UUID `json:"job_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	CreatedAt   string    `json:"created_at"`
	CompletedAt *string   `json:"completed_at,omitempty"`
}

type jobResultResponse struct {
	JobID       uuid.UUID        `json:"job_id"`
	Status      string           `json:"status"`
	Result      map[string]any   `json:"result,omitempty"`
	Error       *models.JobError `json:"error,omitempty"`
	CreatedAt   string           `json:"created_at"`
	CompletedAt *string          `json:"completed_at,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
