// Package operation defines named units of work scoped to a language,
// their declarations, invocation contexts, and results.
package operation

import (
	"fmt"
	"strings"

	"github.com/langkit/opcore/internal/domain"
)

// ID identifies an operation within a language's catalogue.
type ID string

// LanguageID identifies the language a catalogue of operations belongs to.
type LanguageID string

// Validate checks that the id is non-empty and free of whitespace.
func (id ID) Validate() error {
	return validateIdentifier("operationId", string(id))
}

// Validate checks that the language id is non-empty and free of whitespace.
func (l LanguageID) Validate() error {
	return validateIdentifier("languageId", string(l))
}

func (id ID) String() string        { return string(id) }
func (l LanguageID) String() string { return string(l) }

func validateIdentifier(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &domain.ValidationError{Fields: map[string]string{field: domain.MsgRequired}}
	}
	if strings.ContainsAny(v, " \t\n") {
		return &domain.ValidationError{Fields: map[string]string{
			field: fmt.Sprintf("must not contain whitespace, got %q", v),
		}}
	}
	return nil
}

// Mode is the declared execution mode of an operation.
type Mode string

const (
	// ModeSync operations run to completion within the calling request.
	ModeSync Mode = "sync"
	// ModeAsync operations are handed off to a tracked background job.
	ModeAsync Mode = "async"
)

// IsValid reports whether the mode is one of the declared constants.
func (m Mode) IsValid() bool {
	return m == ModeSync || m == ModeAsync
}
