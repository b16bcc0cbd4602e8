// Package registry holds the catalogue of executable operations, keyed by
// language and operation id. Registration happens at startup; lookups are
// concurrent and read-mostly.
package registry

import (
	"fmt"
	"sync"

	"github.com/langkit/opcore/internal/domain"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/ports"
)

// Compile-time interface check.
var _ ports.OperationRegistry = (*Registry)(nil)

// entry pairs a declaration with its handler.
type entry struct {
	decl    operation.Declaration
	handler operation.Handler
}

// language holds one language's operations in registration order.
type language struct {
	order   []operation.ID
	entries map[operation.ID]*entry
}

// Registry is an in-memory ports.OperationRegistry. Re-registering a
// (language, operation) pair replaces the entry in place, keeping its
// position in listing order.
type Registry struct {
	mu        sync.RWMutex
	languages map[operation.LanguageID]*language
	langOrder []operation.LanguageID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		languages: make(map[operation.LanguageID]*language),
	}
}

// Register adds or replaces the entry for decl's (language, operation) pair.
func (r *Registry) Register(decl operation.Declaration, handler operation.Handler) error {
	if err := decl.Validate(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler for %s/%s is nil", domain.ErrValidation, decl.Language, decl.Operation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lang, ok := r.languages[decl.Language]
	if !ok {
		lang = &language{entries: make(map[operation.ID]*entry)}
		r.languages[decl.Language] = lang
		r.langOrder = append(r.langOrder, decl.Language)
	}

	if existing, ok := lang.entries[decl.Operation]; ok {
		existing.decl = decl
		existing.handler = handler
		return nil
	}

	lang.entries[decl.Operation] = &entry{decl: decl, handler: handler}
	lang.order = append(lang.order, decl.Operation)
	return nil
}

// Lookup returns the declaration and handler for the pair.
func (r *Registry) Lookup(langID operation.LanguageID, op operation.ID) (operation.Declaration, operation.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.languages[langID]
	if !ok {
		return operation.Declaration{}, nil, fmt.Errorf("%w: language %q", domain.ErrNotFound, langID)
	}
	e, ok := lang.entries[op]
	if !ok {
		return operation.Declaration{}, nil, fmt.Errorf("%w: operation %q for language %q", domain.ErrNotFound, op, langID)
	}
	return e.decl, e.handler, nil
}

// ListForLanguage returns the language's declarations in registration order.
func (r *Registry) ListForLanguage(langID operation.LanguageID) []operation.Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.languages[langID]
	if !ok {
		return []operation.Declaration{}
	}
	decls := make([]operation.Declaration, 0, len(lang.order))
	for _, op := range lang.order {
		decls = append(decls, lang.entries[op].decl)
	}
	return decls
}

// LanguageIDs returns all registered languages in first-registration order.
func (r *Registry) LanguageIDs() []operation.LanguageID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]operation.LanguageID, len(r.langOrder))
	copy(ids, r.langOrder)
	return ids
}
