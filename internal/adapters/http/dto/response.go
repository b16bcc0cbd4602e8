// Package dto provides HTTP request/response data transfer objects and
// RFC 9457 Problem Details error responses for the inbound HTTP adapter layer.
package dto

import (
	"time"

	"github.com/langkit/opcore/internal/domain/job"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/platform/doccache"
	"github.com/langkit/opcore/internal/ports"
)

// OperationResultResponse represents a completed operation outcome in HTTP
// responses, for both synchronous execution and async result retrieval.
type OperationResultResponse struct {
	Success       bool   `json:"success"`
	Data          any    `json:"data,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ToOperationResultResponse converts a domain result to an HTTP response DTO.
func ToOperationResultResponse(res *operation.Result, correlationID string) OperationResultResponse {
	return OperationResultResponse{
		Success:       res.Success,
		Data:          res.Data,
		Message:       res.Message,
		Error:         res.Err,
		CorrelationID: correlationID,
	}
}

// JobAcceptedResponse represents the immediate reply to an asynchronous
// invocation: the job to poll and the correlation id to quote.
type JobAcceptedResponse struct {
	JobID         string `json:"jobId"`
	Status        string `json:"status"`
	CorrelationID string `json:"correlationId"`
}

// ToJobAcceptedResponse builds the accepted reply from an execute result.
func ToJobAcceptedResponse(res *ports.ExecuteResult) JobAcceptedResponse {
	return JobAcceptedResponse{
		JobID:         res.JobID,
		Status:        string(job.StatusPending),
		CorrelationID: res.CorrelationID,
	}
}

// JobResponse represents a job's polling view in HTTP responses.
type JobResponse struct {
	ID            string `json:"id"`
	CorrelationID string `json:"correlationId"`
	Language      string `json:"languageId"`
	Operation     string `json:"operationId"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	Message       string `json:"message,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// ToJobResponse converts a domain job view to an HTTP response DTO.
func ToJobResponse(v job.View) JobResponse {
	resp := JobResponse{
		ID:            v.ID,
		CorrelationID: v.CorrelationID,
		Language:      string(v.Language),
		Operation:     string(v.Operation),
		Status:        string(v.Status),
		Progress:      v.Progress,
		Message:       v.Message,
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     v.UpdatedAt.Format(time.RFC3339),
	}
	if v.CompletedAt != nil {
		resp.CompletedAt = v.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// JobListResponse represents a list of jobs in HTTP responses.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}

// ToJobListResponse converts a slice of domain job views to an HTTP list
// response DTO.
func ToJobListResponse(views []job.View) JobListResponse {
	items := make([]JobResponse, len(views))
	for i, v := range views {
		items[i] = ToJobResponse(v)
	}
	return JobListResponse{
		Jobs:  items,
		Count: len(items),
	}
}

// LanguageListResponse represents the catalogue's languages in HTTP responses.
type LanguageListResponse struct {
	Languages []string `json:"languages"`
	Count     int      `json:"count"`
}

// ToLanguageListResponse converts language ids to an HTTP list response DTO.
func ToLanguageListResponse(ids []operation.LanguageID) LanguageListResponse {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = string(id)
	}
	return LanguageListResponse{
		Languages: items,
		Count:     len(items),
	}
}

// InputFieldResponse represents one declared input field in HTTP responses.
type InputFieldResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// OperationDeclarationResponse represents an operation's registered metadata
// in HTTP responses.
type OperationDeclarationResponse struct {
	Language    string               `json:"languageId"`
	Operation   string               `json:"operationId"`
	Description string               `json:"description,omitempty"`
	Mode        string               `json:"mode"`
	TargetTypes []string             `json:"targetTypes,omitempty"`
	InputSchema []InputFieldResponse `json:"inputSchema,omitempty"`
}

// ToOperationDeclarationResponse converts a domain declaration to an HTTP
// response DTO.
func ToOperationDeclarationResponse(d operation.Declaration) OperationDeclarationResponse {
	resp := OperationDeclarationResponse{
		Language:    string(d.Language),
		Operation:   string(d.Operation),
		Description: d.Description,
		Mode:        string(d.Mode),
		TargetTypes: d.TargetTypes,
	}
	if len(d.InputSchema) > 0 {
		resp.InputSchema = make([]InputFieldResponse, len(d.InputSchema))
		for i, f := range d.InputSchema {
			resp.InputSchema[i] = InputFieldResponse{
				Name:     f.Name,
				Type:     string(f.Type),
				Required: f.Required,
			}
		}
	}
	return resp
}

// OperationListResponse represents one language's operation catalogue in
// HTTP responses.
type OperationListResponse struct {
	Language   string                         `json:"languageId"`
	Operations []OperationDeclarationResponse `json:"operations"`
	Count      int                            `json:"count"`
}

// ToOperationListResponse converts a language's declarations to an HTTP
// list response DTO.
func ToOperationListResponse(lang operation.LanguageID, decls []operation.Declaration) OperationListResponse {
	items := make([]OperationDeclarationResponse, len(decls))
	for i, d := range decls {
		items[i] = ToOperationDeclarationResponse(d)
	}
	return OperationListResponse{
		Language:   string(lang),
		Operations: items,
		Count:      len(items),
	}
}

// CacheStatsResponse represents document cache counters in HTTP responses.
type CacheStatsResponse struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// ToCacheStatsResponse converts cache stats to an HTTP response DTO.
func ToCacheStatsResponse(s doccache.Stats) CacheStatsResponse {
	return CacheStatsResponse{
		Hits:    s.Hits,
		Misses:  s.Misses,
		Size:    s.Size,
		HitRate: s.HitRate,
	}
}

// WarmCacheResponse represents the outcome of a cache warm-up batch.
type WarmCacheResponse struct {
	Requested int `json:"requested"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
}
