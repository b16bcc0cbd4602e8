package acl

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/langkit/opcore/internal/adapters/clients/acl/parserapi"
	"github.com/langkit/opcore/internal/domain/document"
	"github.com/langkit/opcore/internal/platform/parserclient"
	"github.com/langkit/opcore/internal/ports"
)

// Compile-time interface check.
var _ ports.ParserClient = (*ParserAPIClient)(nil)

// ParserAPIClient is the outbound adapter for the parser service. It
// implements [ports.ParserClient] by posting parse requests to the
// service's /api/v1/parse endpoint and translating the wire document into
// the domain representation via [parserapi].
//
// HTTP errors are mapped to domain errors (ErrNotFound, ErrValidation,
// ErrUnavailable) by [TranslateHTTPError]. The underlying
// [parserclient.Client] provides circuit breaking, retry with exponential
// backoff, OpenTelemetry tracing, and health checking for every outbound
// call.
type ParserAPIClient struct {
	req    *Requester
	logger *slog.Logger
}

// NewParserAPIClient creates a ParserAPIClient that sends requests through
// the given [parserclient.Client]. The client's BaseURL should point to the
// parser service root (e.g. "http://parser-api.internal:8081").
func NewParserAPIClient(client *parserclient.Client, logger *slog.Logger) *ParserAPIClient {
	return &ParserAPIClient{
		req:    NewRequester(client, logger),
		logger: logger,
	}
}

// Parse requests parsing of the persistent document at uri via
// POST /api/v1/parse. Returns [domain.ErrNotFound] when the parser service
// cannot locate the document.
func (c *ParserAPIClient) Parse(ctx context.Context, uri string) (*document.Document, error) {
	reqDTO := parserapi.ToParseURIRequest(uri)

	var respDTO parserapi.DocumentDTO
	if err := c.req.Do(ctx, http.MethodPost, "/api/v1/parse", http.StatusOK, reqDTO, &respDTO); err != nil {
		return nil, err
	}
	return parserapi.ToDomainDocument(&respDTO), nil
}

// ParseContent requests parsing of inline content via POST /api/v1/parse.
// The fileName selects the grammar; the parsed document is never persisted
// by the parser service. Returns [domain.ErrValidation] when the service
// rejects the content.
func (c *ParserAPIClient) ParseContent(ctx context.Context, fileName, content string) (*document.Document, error) {
	reqDTO := parserapi.ToParseContentRequest(fileName, content)

	var respDTO parserapi.DocumentDTO
	if err := c.req.Do(ctx, http.MethodPost, "/api/v1/parse", http.StatusOK, reqDTO, &respDTO); err != nil {
		return nil, err
	}
	return parserapi.ToDomainDocument(&respDTO), nil
}
