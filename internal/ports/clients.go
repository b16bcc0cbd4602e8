package ports

import (
	"context"

	"github.com/langkit/opcore/internal/domain/document"
)

// ParserClient defines the client port for the downstream parsing subsystem.
// Implemented by the ACL adapter; called by the document resolver. The
// parser turns raw source text into a parsed document carrying an opaque
// semantic model; the execution core treats that model as a black box.
type ParserClient interface {
	// Parse fetches and parses a persistent document by URI.
	// Returns domain.ErrNotFound if no document exists at the location.
	// Returns domain.ErrValidation if the document cannot be parsed.
	Parse(ctx context.Context, uri string) (*document.Document, error)

	// ParseContent parses inline content under a virtual file name. The
	// file name selects the grammar; the returned document is ephemeral
	// and must not be cached.
	// Returns domain.ErrValidation if the content cannot be parsed.
	ParseContent(ctx context.Context, fileName, content string) (*document.Document, error)
}
