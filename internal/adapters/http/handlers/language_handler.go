package handlers

import (
	"net/http"

	"github.com/langkit/opcore/internal/adapters/http/dto"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/ports"
)

// LanguageHandler handles HTTP requests for browsing the operation catalogue.
type LanguageHandler struct {
	registry ports.OperationRegistry
}

// NewLanguageHandler creates a new LanguageHandler with the given registry port.
func NewLanguageHandler(registry ports.OperationRegistry) *LanguageHandler {
	return &LanguageHandler{registry: registry}
}

// ListLanguages handles GET /api/v1/languages.
func (h *LanguageHandler) ListLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ToLanguageListResponse(h.registry.LanguageIDs()))
}

// ListOperations handles GET /api/v1/languages/{languageId}/operations.
// Unknown languages yield an empty catalogue, not a 404; a language with no
// registered operations and an unknown language are indistinguishable here.
func (h *LanguageHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	lang, err := pathParam(r, "languageId")
	if err != nil {
		dto.WriteErrorResponse(w, r, err)
		return
	}

	id := operation.LanguageID(lang)
	decls := h.registry.ListForLanguage(id)
	writeJSON(w, http.StatusOK, dto.ToOperationListResponse(id, decls))
}
