// Package resolver turns document references into parsed documents,
// consulting the in-memory document cache before the parsing subsystem.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/langkit/opcore/internal/app/fanout"
	"github.com/langkit/opcore/internal/domain/document"
	"github.com/langkit/opcore/internal/platform/doccache"
	"github.com/langkit/opcore/internal/platform/telemetry"
	"github.com/langkit/opcore/internal/ports"
)

// Compile-time interface check.
var _ ports.DocumentResolver = (*Resolver)(nil)

// Resolver is the application-layer ports.DocumentResolver. Persistent
// references flow cache-first; inline references always go straight to the
// parser and their documents are never stored.
type Resolver struct {
	cache   *doccache.Cache
	parser  ports.ParserClient
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// nowFn is swapped in tests to pin inline document identity.
	nowFn func() time.Time
}

// New builds a resolver over the given cache and parser client.
// The metrics handle may be nil when telemetry is disabled.
func New(cache *doccache.Cache, parser ports.ParserClient, metrics *telemetry.Metrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		cache:   cache,
		parser:  parser,
		logger:  logger,
		metrics: metrics,
		nowFn:   time.Now,
	}
}

// Resolve turns a reference into a parsed document.
func (r *Resolver) Resolve(ctx context.Context, ref document.Ref) (*document.Document, error) {
	switch ref.Kind() {
	case document.RefURI:
		return r.resolveURI(ctx, ref)
	case document.RefInline:
		return r.resolveInline(ctx, ref)
	default:
		return nil, ref.Validate()
	}
}

func (r *Resolver) resolveURI(ctx context.Context, ref document.Ref) (*document.Document, error) {
	key := ref.CacheKey()

	if doc, ok := r.cache.Get(key); ok {
		r.recordLookup(ctx, "hit")
		r.logger.DebugContext(ctx, "document served from cache", slog.String("uri", key))
		return doc, nil
	}
	r.recordLookup(ctx, "miss")

	doc, err := r.parser.Parse(ctx, ref.URI)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}

	r.cache.Set(key, doc, doc.ETag, 0)
	r.logger.DebugContext(ctx, "document parsed and cached",
		slog.String("uri", key),
		slog.String("language", doc.LanguageID))
	return doc, nil
}

// resolveInline parses ephemeral content. Each resolution yields a fresh
// document whose URI encodes the parse instant, so two inline requests with
// identical content never alias each other.
func (r *Resolver) resolveInline(ctx context.Context, ref document.Ref) (*document.Document, error) {
	doc, err := r.parser.ParseContent(ctx, ref.FileName, ref.Content)
	if err != nil {
		return nil, fmt.Errorf("parse inline %s: %w", ref.FileName, err)
	}

	now := r.nowFn()
	doc.Ephemeral = true
	doc.URI = fmt.Sprintf("inline://%d/%s", now.UnixNano(), ref.FileName)
	if doc.FileName == "" {
		doc.FileName = ref.FileName
	}
	if doc.LanguageID == "" {
		doc.LanguageID = document.LanguageFromFileName(ref.FileName)
	}
	return doc, nil
}

// prefetchWorkers bounds how many parse requests a warm-up batch holds
// in flight at once.
const prefetchWorkers = 4

// Prefetch resolves a batch of persistent URIs to warm the cache. Each URI
// goes through the normal cache-first path, so already-cached documents
// cost nothing. Failures are logged and counted but never abort the batch.
func (r *Resolver) Prefetch(ctx context.Context, uris []string) (resolved, failed int) {
	results := fanout.Run(ctx, prefetchWorkers, uris, func(ctx context.Context, uri string) (*document.Document, error) {
		return r.Resolve(ctx, document.Ref{URI: uri})
	})

	for i, res := range results {
		if res.Err != nil {
			r.logger.WarnContext(ctx, "prefetch failed",
				slog.String("uri", uris[i]),
				slog.String("error", res.Err.Error()))
			failed++
			continue
		}
		resolved++
	}
	return resolved, failed
}

// HasDocument reports whether a persistent reference is currently cached.
func (r *Resolver) HasDocument(ref document.Ref) bool {
	if ref.Kind() != document.RefURI {
		return false
	}
	return r.cache.Has(ref.CacheKey())
}

// GetCached returns the cached document for a persistent reference.
func (r *Resolver) GetCached(ref document.Ref) (*document.Document, bool) {
	if ref.Kind() != document.RefURI {
		return nil, false
	}
	return r.cache.Get(ref.CacheKey())
}

func (r *Resolver) recordLookup(ctx context.Context, result string) {
	if r.metrics == nil {
		return
	}
	r.metrics.CacheLookupTotal.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrResult.String(result),
	))
}
