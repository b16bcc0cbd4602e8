// Package document defines resolved documents and the references that
// address them. A reference is either persistent (location-addressable by
// URI) or inline (ephemeral content plus a virtual file name used to select
// a grammar).
package document

import (
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/langkit/opcore/internal/domain"
)

// RefKind discriminates the two supported reference shapes.
type RefKind int

const (
	// RefInvalid marks a reference that is neither URI- nor content-shaped.
	RefInvalid RefKind = iota
	// RefURI addresses a persistent, cacheable document by location.
	RefURI
	// RefInline carries ephemeral content that is never cached.
	RefInline
)

// Ref is a document reference supplied on an operation request.
// Exactly one shape must be populated: URI for persistent documents, or
// Content+FileName for inline documents.
type Ref struct {
	URI      string
	Content  string
	FileName string
}

// Kind classifies the reference. A reference with both or neither shape
// populated is RefInvalid.
func (r Ref) Kind() RefKind {
	hasURI := strings.TrimSpace(r.URI) != ""
	hasInline := r.Content != "" || strings.TrimSpace(r.FileName) != ""

	switch {
	case hasURI && !hasInline:
		return RefURI
	case !hasURI && r.Content != "" && strings.TrimSpace(r.FileName) != "":
		return RefInline
	default:
		return RefInvalid
	}
}

// Validate checks that the reference has exactly one well-formed shape.
func (r Ref) Validate() error {
	if r.Kind() == RefInvalid {
		return &domain.ValidationError{Fields: map[string]string{
			"document": "must have either uri, or content and fileName",
		}}
	}
	return nil
}

// CacheKey returns the normalized key under which a persistent reference is
// cached. Inline references have no cache key and return "".
func (r Ref) CacheKey() string {
	if r.Kind() != RefURI {
		return ""
	}
	return NormalizeURI(r.URI)
}

// NormalizeURI canonicalizes a document URI for use as a cache key:
// surrounding whitespace is trimmed, backslashes become forward slashes,
// and the scheme (if any) is lowercased.
func NormalizeURI(uri string) string {
	uri = strings.TrimSpace(uri)
	uri = strings.ReplaceAll(uri, `\`, "/")

	if i := strings.Index(uri, "://"); i > 0 {
		uri = strings.ToLower(uri[:i]) + uri[i:]
	}
	return uri
}

// Document is a resolved, parsed document. The semantic model produced by
// the parsing subsystem is carried opaquely; the execution core never
// inspects it beyond handing it to operation handlers.
type Document struct {
	URI        string
	FileName   string
	LanguageID string
	Content    string
	Model      json.RawMessage
	ETag       string
	Ephemeral  bool
	ParsedAt   time.Time
}

// LanguageFromFileName derives a language id from a file name's extension.
// Returns "" when the name has no extension.
func LanguageFromFileName(fileName string) string {
	ext := path.Ext(fileName)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
