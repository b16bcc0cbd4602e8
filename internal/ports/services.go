package ports

import (
	"context"

	"github.com/langkit/opcore/internal/domain/document"
	"github.com/langkit/opcore/internal/domain/job"
	"github.com/langkit/opcore/internal/domain/operation"
)

// ExecuteRequest carries everything needed to invoke one operation.
// CorrelationID may be supplied by the caller; when empty the executor
// assigns one and reports it back on the result.
type ExecuteRequest struct {
	Language      operation.LanguageID
	Operation     operation.ID
	Document      document.Ref
	SelectedIDs   []string
	Input         map[string]any
	User          string
	CorrelationID string
}

// ExecuteResult is the immediate outcome of Execute. Exactly one of the two
// shapes is populated: Result for synchronous operations, JobID for
// asynchronous ones.
type ExecuteResult struct {
	Async         bool
	JobID         string
	CorrelationID string
	Result        *operation.Result
}

// OperationExecutor is the single entry point for invoking operations.
// Implemented by the application layer; called by inbound adapters.
type OperationExecutor interface {
	// Execute resolves the request's document, looks up the operation, and
	// dispatches it according to its declared mode. Synchronous operations
	// return their result directly; asynchronous ones return a job id
	// immediately while the handler keeps running in the background.
	//
	// Returns domain.ErrNotFound for an unknown (language, operation) pair,
	// domain.ErrValidation for a malformed request or failed input schema
	// check, and domain.ErrUnavailable when the async job table is at its
	// active capacity. Resolution and handler failures surface as a failed
	// Result (sync) or a failed job (async), never as an error here.
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
}

// OperationRegistry is the authoritative catalogue of operations, queryable
// by language and by individual operation id. It only returns references;
// it never invokes a handler itself.
type OperationRegistry interface {
	// Register adds or replaces the entry for the declaration's
	// (language, operation) pair. Replacing never disturbs other entries.
	// Returns domain.ErrValidation for an invalid declaration or nil handler.
	Register(decl operation.Declaration, handler operation.Handler) error

	// Lookup returns the declaration and handler registered for the pair.
	// Returns domain.ErrNotFound for unknown languages or operations.
	Lookup(lang operation.LanguageID, op operation.ID) (operation.Declaration, operation.Handler, error)

	// ListForLanguage returns the language's declarations in registration
	// order, stable for UI listing. Unknown languages yield an empty slice.
	ListForLanguage(lang operation.LanguageID) []operation.Declaration

	// LanguageIDs returns all languages with at least one registered
	// operation, in first-registration order.
	LanguageIDs() []operation.LanguageID
}

// DocumentResolver produces parsed documents for operation requests,
// consulting the document cache before the parsing subsystem.
type DocumentResolver interface {
	// Resolve turns a reference into a parsed document. Persistent
	// references are served from cache when possible; inline references
	// always bypass the cache. Returns domain.ErrValidation for an
	// unknown reference shape.
	Resolve(ctx context.Context, ref document.Ref) (*document.Document, error)

	// HasDocument reports whether the reference would be served from
	// cache. It never triggers resolution.
	HasDocument(ref document.Ref) bool

	// GetCached returns the cached document for a persistent reference
	// without triggering resolution. ok is false on a miss or for
	// non-persistent references.
	GetCached(ref document.Ref) (*document.Document, bool)

	// Prefetch resolves a batch of persistent URIs with bounded
	// concurrency to warm the cache. It reports how many resolved and
	// how many failed; individual failures do not abort the batch.
	Prefetch(ctx context.Context, uris []string) (resolved, failed int)
}

// NewJob carries the metadata recorded when a job is created.
type NewJob struct {
	CorrelationID string
	Language      operation.LanguageID
	Operation     operation.ID
}

// JobService owns the table of in-flight and recently completed async jobs.
// Implemented by the application layer; called by the executor (creation and
// transitions) and by inbound adapters (polling and cancellation).
type JobService interface {
	// CreateJob allocates a fresh pending record and returns its id.
	// The caller transitions it to running once background execution
	// actually begins.
	CreateJob(meta NewJob) string

	// StartJob transitions a pending job to running and binds the cancel
	// function invoked when the job is cancelled. Returns
	// domain.ErrNotFound for unknown ids and domain.ErrConflict when the
	// job is not pending.
	StartJob(id string, cancel context.CancelFunc) error

	// UpdateProgress records progress on a running job. Values are
	// clamped to [0,100] and never move backward. Returns
	// domain.ErrConflict when the job is not running.
	UpdateProgress(id string, progress int, message string) error

	// CompleteJob transitions a running job to completed with its result.
	// Returns domain.ErrConflict when the job is already terminal.
	CompleteJob(id string, result *operation.Result) error

	// FailJob transitions a running job to failed with an error message.
	// Returns domain.ErrConflict when the job is already terminal.
	FailJob(id string, errText string) error

	// CancelJob cancels a pending or running job. Cancellation is
	// cooperative: the status flips immediately and the bound cancel
	// function fires, but in-flight handler code keeps running until it
	// observes the cancellation. Returns false, without error, when the
	// job does not exist or is already terminal.
	CancelJob(id string) bool

	// GetJob returns the lightweight polling view of a job.
	// Returns domain.ErrNotFound for unknown ids.
	GetJob(id string) (job.View, error)

	// GetJobResult returns the full job including result and error
	// payloads. Non-terminal jobs are returned as-is with a nil result;
	// callers represent that as "accepted, not ready".
	// Returns domain.ErrNotFound for unknown ids.
	GetJobResult(id string) (*job.Job, error)

	// AllJobs returns polling views of every job, newest first.
	AllJobs() []job.View

	// JobsByStatus returns polling views of jobs in the given status,
	// newest first.
	JobsByStatus(status job.Status) []job.View

	// CancelJobs cancels every job currently in the given status and
	// returns how many were actually cancelled. Jobs reaching a terminal
	// state while the batch runs are skipped.
	CancelJobs(ctx context.Context, status job.Status) int

	// ActiveJobCount returns the number of pending and running jobs,
	// used for load-shedding decisions upstream.
	ActiveJobCount() int
}
