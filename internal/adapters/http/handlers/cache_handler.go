package handlers

import (
	"net/http"

	"github.com/langkit/opcore/internal/adapters/http/dto"
	"github.com/langkit/opcore/internal/platform/doccache"
	"github.com/langkit/opcore/internal/ports"
)

// CacheHandler handles HTTP requests for inspecting and managing the
// document cache.
type CacheHandler struct {
	cache    *doccache.Cache
	resolver ports.DocumentResolver
}

// NewCacheHandler creates a new CacheHandler over the given cache and resolver.
func NewCacheHandler(cache *doccache.Cache, resolver ports.DocumentResolver) *CacheHandler {
	return &CacheHandler{cache: cache, resolver: resolver}
}

// GetStats handles GET /api/v1/cache/stats.
func (h *CacheHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.ToCacheStatsResponse(h.cache.GetStats()))
}

// Clear handles DELETE /api/v1/cache. Clearing drops every cached document;
// subsequent resolutions re-parse.
func (h *CacheHandler) Clear(w http.ResponseWriter, _ *http.Request) {
	h.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Warm handles POST /api/v1/cache/warm. The batch resolves with bounded
// concurrency; per-URI failures are counted, not fatal.
func (h *CacheHandler) Warm(w http.ResponseWriter, r *http.Request) {
	var req dto.WarmCacheRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resolved, failed := h.resolver.Prefetch(r.Context(), req.URIs)
	writeJSON(w, http.StatusOK, dto.WarmCacheResponse{
		Requested: len(req.URIs),
		Resolved:  resolved,
		Failed:    failed,
	})
}
