package handlers

import (
	"net/http"

	"github.com/langkit/opcore/internal/adapters/http/dto"
	"github.com/langkit/opcore/internal/ports"
)

// OperationHandler handles HTTP requests for invoking operations.
type OperationHandler struct {
	executor ports.OperationExecutor
}

// NewOperationHandler creates a new OperationHandler with the given executor port.
func NewOperationHandler(executor ports.OperationExecutor) *OperationHandler {
	return &OperationHandler{executor: executor}
}

// Execute handles POST /api/v1/operations/execute. Synchronous operations
// reply 200 with their result; asynchronous ones reply 202 with the job to
// poll.
func (h *OperationHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req dto.ExecuteOperationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.executor.Execute(r.Context(), req.ToExecuteRequest())
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	if res.Async {
		writeJSON(w, http.StatusAccepted, dto.ToJobAcceptedResponse(res))
		return
	}
	writeJSON(w, http.StatusOK, dto.ToOperationResultResponse(res.Result, res.CorrelationID))
}
