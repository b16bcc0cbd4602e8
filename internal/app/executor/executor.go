// Package executor dispatches operation requests: it resolves the document,
// validates input against the operation's declared schema, and runs the
// handler synchronously or as a tracked background job.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/langkit/opcore/internal/domain"
	"github.com/langkit/opcore/internal/domain/document"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/platform/parserclient"
	"github.com/langkit/opcore/internal/platform/telemetry"
	"github.com/langkit/opcore/internal/ports"
)

// Compile-time interface check.
var _ ports.OperationExecutor = (*Executor)(nil)

// Config tunes the executor's async behavior.
type Config struct {
	// MaxActiveJobs caps concurrently pending and running jobs. New async
	// requests beyond the cap are shed with domain.ErrUnavailable.
	// Zero means unlimited.
	MaxActiveJobs int
}

// Executor is the application-layer ports.OperationExecutor.
type Executor struct {
	registry ports.OperationRegistry
	resolver ports.DocumentResolver
	jobs     ports.JobService
	cfg      Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	nowFn func() time.Time
}

// New builds an executor. The metrics handle may be nil when telemetry is
// disabled.
func New(
	registry ports.OperationRegistry,
	resolver ports.DocumentResolver,
	jobs ports.JobService,
	cfg Config,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		registry: registry,
		resolver: resolver,
		jobs:     jobs,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		nowFn:    time.Now,
	}
}

// Execute dispatches one operation request according to its declared mode.
func (e *Executor) Execute(ctx context.Context, req ports.ExecuteRequest) (*ports.ExecuteResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	decl, handler, err := e.registry.Lookup(req.Language, req.Operation)
	if err != nil {
		return nil, err
	}
	if err := decl.InputSchema.Validate(req.Input); err != nil {
		return nil, err
	}

	corrID := e.correlationID(ctx, req)

	if decl.Mode == operation.ModeAsync {
		return e.executeAsync(ctx, req, decl, handler, corrID)
	}
	return e.executeSync(ctx, req, decl, handler, corrID)
}

func validateRequest(req ports.ExecuteRequest) error {
	fields := map[string]string{}
	if err := req.Language.Validate(); err != nil {
		fields["language"] = err.Error()
	}
	if err := req.Operation.Validate(); err != nil {
		fields["operation"] = err.Error()
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return req.Document.Validate()
}

// correlationID picks the id propagated through the whole execution:
// the caller's explicit id wins, then the one the inbound middleware put on
// the context, then a freshly minted one.
func (e *Executor) correlationID(ctx context.Context, req ports.ExecuteRequest) string {
	if req.CorrelationID != "" {
		return req.CorrelationID
	}
	if id := parserclient.CorrelationIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func (e *Executor) executeSync(
	ctx context.Context,
	req ports.ExecuteRequest,
	decl operation.Declaration,
	handler operation.Handler,
	corrID string,
) (*ports.ExecuteResult, error) {
	start := e.nowFn()
	ctx = parserclient.WithCorrelationID(ctx, corrID)

	doc, err := e.resolver.Resolve(ctx, req.Document)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		e.record(ctx, decl, "resolve_error", e.nowFn().Sub(start))
		return &ports.ExecuteResult{
			CorrelationID: corrID,
			Result:        operation.Fail(fmt.Sprintf("document resolution failed: %v", err)),
		}, nil
	}

	result := e.runHandler(ctx, handler, e.opContext(doc, req, corrID, nil))
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	e.record(ctx, decl, outcome, e.nowFn().Sub(start))

	return &ports.ExecuteResult{CorrelationID: corrID, Result: result}, nil
}

func (e *Executor) executeAsync(
	ctx context.Context,
	req ports.ExecuteRequest,
	decl operation.Declaration,
	handler operation.Handler,
	corrID string,
) (*ports.ExecuteResult, error) {
	if e.cfg.MaxActiveJobs > 0 && e.jobs.ActiveJobCount() >= e.cfg.MaxActiveJobs {
		return nil, fmt.Errorf("%w: %d jobs already active", domain.ErrUnavailable, e.cfg.MaxActiveJobs)
	}

	jobID := e.jobs.CreateJob(ports.NewJob{
		CorrelationID: corrID,
		Language:      req.Language,
		Operation:     req.Operation,
	})

	// The job outlives the request: detach from the caller's deadline but
	// keep its values for tracing and log correlation.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = parserclient.WithCorrelationID(runCtx, corrID)

	if err := e.jobs.StartJob(jobID, cancel); err != nil {
		cancel()
		return nil, err
	}

	go e.runJob(runCtx, jobID, req, decl, handler, corrID)

	e.logger.InfoContext(ctx, "async operation accepted",
		slog.String("job_id", jobID),
		slog.String("language", req.Language.String()),
		slog.String("operation", req.Operation.String()),
		slog.String("correlation_id", corrID))

	return &ports.ExecuteResult{Async: true, JobID: jobID, CorrelationID: corrID}, nil
}

// runJob drives one background job to a terminal state. Transition conflicts
// mean the job was cancelled while the handler ran; the cancelled status
// stands and the late outcome is dropped.
func (e *Executor) runJob(
	ctx context.Context,
	jobID string,
	req ports.ExecuteRequest,
	decl operation.Declaration,
	handler operation.Handler,
	corrID string,
) {
	start := e.nowFn()

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "operation handler panicked",
				slog.String("job_id", jobID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			e.finishFailed(ctx, jobID, fmt.Sprintf("internal error: %v", r))
			e.record(ctx, decl, "panic", e.nowFn().Sub(start))
		}
	}()

	doc, err := e.resolver.Resolve(ctx, req.Document)
	if err != nil {
		e.finishFailed(ctx, jobID, fmt.Sprintf("document resolution failed: %v", err))
		e.record(ctx, decl, "resolve_error", e.nowFn().Sub(start))
		return
	}

	progress := func(p int, msg string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return e.jobs.UpdateProgress(jobID, p, msg)
	}

	result := e.runHandler(ctx, handler, e.opContext(doc, req, corrID, progress))

	switch {
	case ctx.Err() != nil:
		// Cancelled while running; the job record already says so.
		e.logger.InfoContext(ctx, "cancelled job finished late", slog.String("job_id", jobID))
		e.record(ctx, decl, "cancelled", e.nowFn().Sub(start))
	case !result.Success:
		e.finishFailed(ctx, jobID, result.Err)
		e.record(ctx, decl, "failure", e.nowFn().Sub(start))
	default:
		if err := e.jobs.CompleteJob(jobID, result); err != nil && !errors.Is(err, domain.ErrConflict) {
			e.logger.ErrorContext(ctx, "completing job failed",
				slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
		e.record(ctx, decl, "success", e.nowFn().Sub(start))
	}
}

// runHandler invokes the handler and folds errors and panics into a failed
// result so callers deal with exactly one outcome shape.
func (e *Executor) runHandler(ctx context.Context, handler operation.Handler, opCtx *operation.Context) (result *operation.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "operation handler panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			result = operation.Fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	res, err := handler.Execute(ctx, opCtx)
	if err != nil {
		return operation.Fail(err.Error())
	}
	if res == nil {
		return operation.Fail("operation returned no result")
	}
	return res
}

func (e *Executor) opContext(doc *document.Document, req ports.ExecuteRequest, corrID string, progress operation.ProgressFunc) *operation.Context {
	return &operation.Context{
		Document:      doc,
		SelectedIDs:   req.SelectedIDs,
		Input:         req.Input,
		User:          req.User,
		CorrelationID: corrID,
		Progress:      progress,
	}
}

func (e *Executor) finishFailed(ctx context.Context, jobID, errText string) {
	if err := e.jobs.FailJob(jobID, errText); err != nil && !errors.Is(err, domain.ErrConflict) {
		e.logger.ErrorContext(ctx, "failing job failed",
			slog.String("job_id", jobID), slog.String("error", err.Error()))
	}
}

func (e *Executor) record(ctx context.Context, decl operation.Declaration, outcome string, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		telemetry.AttrLanguage.String(decl.Language.String()),
		telemetry.AttrOperation.String(decl.Operation.String()),
		telemetry.AttrMode.String(string(decl.Mode)),
		telemetry.AttrResult.String(outcome),
	)
	e.metrics.OperationTotal.Add(ctx, 1, attrs)
	e.metrics.OperationDuration.Record(ctx, elapsed.Seconds(), attrs)
}
