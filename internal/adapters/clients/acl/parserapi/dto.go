// Package parserapi holds the wire representations of the parser service's
// API and the translators that map them to domain documents.
package parserapi

import "encoding/json"

// ParseRequestDTO is the request body for POST /api/v1/parse. Exactly one of
// URI or Content+FileName is set, mirroring the two document reference shapes.
type ParseRequestDTO struct {
	URI      string `json:"uri,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Content  string `json:"content,omitempty"`
}

// DocumentDTO is the parser service's representation of a parsed document.
// The semantic model is carried as raw JSON and never inspected here.
type DocumentDTO struct {
	URI        string          `json:"uri"`
	FileName   string          `json:"fileName"`
	LanguageID string          `json:"languageId"`
	Content    string          `json:"content"`
	Model      json.RawMessage `json:"model"`
	ETag       string          `json:"etag"`
	ParsedAt   string          `json:"parsedAt"`
}
