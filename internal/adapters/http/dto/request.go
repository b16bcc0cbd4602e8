package dto

import (
	"strings"

	"github.com/langkit/opcore/internal/domain"
	"github.com/langkit/opcore/internal/domain/document"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/ports"
)

const msgRequired = "is required"

// DocumentRefRequest is the JSON shape of a document reference. Exactly one
// of the two forms must be supplied: uri, or content plus fileName.
type DocumentRefRequest struct {
	URI      string `json:"uri,omitempty"`
	Content  string `json:"content,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// ToRef converts the wire shape to a domain reference.
func (r DocumentRefRequest) ToRef() document.Ref {
	return document.Ref{
		URI:      r.URI,
		Content:  r.Content,
		FileName: r.FileName,
	}
}

// ExecuteOperationRequest represents the JSON body for invoking one
// operation against a document.
type ExecuteOperationRequest struct {
	Language      string             `json:"languageId"`
	Operation     string             `json:"operationId"`
	Document      DocumentRefRequest `json:"document"`
	SelectedIDs   []string           `json:"selectedIds,omitempty"`
	Input         map[string]any     `json:"input,omitempty"`
	User          string             `json:"user,omitempty"`
	CorrelationID string             `json:"correlationId,omitempty"`
}

// Validate checks that required fields are present and the document
// reference has exactly one well-formed shape. Returns a
// *domain.ValidationError if any checks fail.
func (r *ExecuteOperationRequest) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(r.Language) == "" {
		fields["languageId"] = msgRequired
	}
	if strings.TrimSpace(r.Operation) == "" {
		fields["operationId"] = msgRequired
	}
	if r.Document.ToRef().Kind() == document.RefInvalid {
		fields["document"] = "must have either uri, or content and fileName"
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// ToExecuteRequest converts the wire shape to the executor's request.
func (r *ExecuteOperationRequest) ToExecuteRequest() ports.ExecuteRequest {
	return ports.ExecuteRequest{
		Language:      operation.LanguageID(r.Language),
		Operation:     operation.ID(r.Operation),
		Document:      r.Document.ToRef(),
		SelectedIDs:   r.SelectedIDs,
		Input:         r.Input,
		User:          r.User,
		CorrelationID: r.CorrelationID,
	}
}

// WarmCacheRequest represents the JSON body for pre-resolving a batch of
// documents into the cache.
type WarmCacheRequest struct {
	URIs []string `json:"uris"`
}

// Validate checks that at least one non-blank URI was supplied.
// Returns a *domain.ValidationError if any checks fail.
func (r *WarmCacheRequest) Validate() error {
	fields := make(map[string]string)

	if len(r.URIs) == 0 {
		fields["uris"] = msgRequired
	}
	for _, uri := range r.URIs {
		if strings.TrimSpace(uri) == "" {
			fields["uris"] = "must not contain blank entries"
			break
		}
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
