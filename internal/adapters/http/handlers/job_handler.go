package handlers

import (
	"fmt"
	"net/http"

	"github.com/langkit/opcore/internal/adapters/http/dto"
	"github.com/langkit/opcore/internal/domain"
	"github.com/langkit/opcore/internal/domain/job"
	"github.com/langkit/opcore/internal/ports"
)

// JobHandler handles HTTP requests for polling and cancelling async jobs.
type JobHandler struct {
	jobs ports.JobService
}

// NewJobHandler creates a new JobHandler with the given job service port.
func NewJobHandler(jobs ports.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListJobs handles GET /api/v1/jobs. An optional status query parameter
// filters to one lifecycle state.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		writeJSON(w, http.StatusOK, dto.ToJobListResponse(h.jobs.AllJobs()))
		return
	}

	status := job.Status(raw)
	if !status.IsValid() {
		dto.WriteErrorResponse(w, r, &domain.ValidationError{
			Fields: map[string]string{"status": fmt.Sprintf("invalid: %q", raw)},
		})
		return
	}
	writeJSON(w, http.StatusOK, dto.ToJobListResponse(h.jobs.JobsByStatus(status)))
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	view, err := h.jobs.GetJob(id)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToJobResponse(view))
}

// GetJobResult handles GET /api/v1/jobs/{id}/result. A job that has not
// reached a terminal state replies 202 with its polling view so clients can
// keep waiting on the same URL. Failed and cancelled jobs reply 200 with an
// unsuccessful result rather than a transport error.
func (h *JobHandler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	j, err := h.jobs.GetJobResult(id)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	switch j.Status {
	case job.StatusCompleted:
		writeJSON(w, http.StatusOK, dto.ToOperationResultResponse(j.Result, j.CorrelationID))
	case job.StatusFailed:
		writeJSON(w, http.StatusOK, dto.OperationResultResponse{
			Success:       false,
			Error:         j.Error,
			CorrelationID: j.CorrelationID,
		})
	case job.StatusCancelled:
		writeJSON(w, http.StatusOK, dto.OperationResultResponse{
			Success:       false,
			Error:         "job cancelled",
			CorrelationID: j.CorrelationID,
		})
	default:
		writeJSON(w, http.StatusAccepted, dto.ToJobResponse(j.View()))
	}
}

// CancelJobs handles DELETE /api/v1/jobs?status=pending|running. The status
// parameter is required and must name a non-terminal state.
func (h *JobHandler) CancelJobs(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	status := job.Status(raw)
	if !status.IsValid() || status.IsTerminal() {
		dto.WriteErrorResponse(w, r, &domain.ValidationError{
			Fields: map[string]string{"status": fmt.Sprintf("must be pending or running, got %q", raw)},
		})
		return
	}

	cancelled := h.jobs.CancelJobs(r.Context(), status)
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}

// CancelJob handles DELETE /api/v1/jobs/{id}. Cancelling a job that is
// already terminal replies 409; a missing job replies 404.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	if h.jobs.CancelJob(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	view, err := h.jobs.GetJob(id)
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}
	dto.WriteErrorResponse(w, r, fmt.Errorf("%w: job %s already %s", domain.ErrConflict, id, view.Status))
}
