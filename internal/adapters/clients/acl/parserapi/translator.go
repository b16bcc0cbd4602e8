package parserapi

import (
	"time"

	"github.com/langkit/opcore/internal/domain/document"
)

// ToDomainDocument converts a parser service document DTO to a domain
// document. A malformed or absent parsedAt timestamp falls back to the
// translation instant so downstream staleness checks always have a value.
func ToDomainDocument(dto *DocumentDTO) *document.Document {
	parsedAt, err := time.Parse(time.RFC3339Nano, dto.ParsedAt)
	if err != nil {
		parsedAt = time.Now()
	}

	return &document.Document{
		URI:        dto.URI,
		FileName:   dto.FileName,
		LanguageID: dto.LanguageID,
		Content:    dto.Content,
		Model:      dto.Model,
		ETag:       dto.ETag,
		ParsedAt:   parsedAt,
	}
}

// ToParseURIRequest builds the parse request for a persistent document.
func ToParseURIRequest(uri string) ParseRequestDTO {
	return ParseRequestDTO{URI: uri}
}

// ToParseContentRequest builds the parse request for inline content.
func ToParseContentRequest(fileName, content string) ParseRequestDTO {
	return ParseRequestDTO{FileName: fileName, Content: content}
}
