package operation

import (
	"context"

	"github.com/langkit/opcore/internal/domain/document"
)

// ProgressFunc reports background progress for an asynchronous invocation.
// Progress is a percentage in [0,100]; message is an optional human-readable
// note. The returned error is non-nil once the invocation has been
// cancelled, letting handlers observe cooperative cancellation at their
// next progress report.
type ProgressFunc func(progress int, message string) error

// Context is the ephemeral, per-invocation environment handed to a handler.
// It is owned exclusively by a single invocation and must not be shared
// across invocations. Handlers read from it; they never mutate shared state
// through it.
type Context struct {
	Document      *document.Document
	SelectedIDs   []string
	Input         map[string]any
	User          string
	CorrelationID string

	// Progress is non-nil only for asynchronous invocations.
	Progress ProgressFunc
}

// ReportProgress invokes the progress callback when one is attached.
// Synchronous invocations discard progress reports and never signal
// cancellation through this path.
func (c *Context) ReportProgress(progress int, message string) error {
	if c.Progress == nil {
		return nil
	}
	return c.Progress(progress, message)
}

// Handler executes one operation against a resolved document. Handlers must
// honor ctx cancellation on long-running work; the executor cancels ctx when
// the backing job is cancelled. Returning an error produces a failed result
// (sync) or a failed job (async); handlers never see the job table directly.
type Handler interface {
	Execute(ctx context.Context, opCtx *Context) (*Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, opCtx *Context) (*Result, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, opCtx *Context) (*Result, error) {
	return f(ctx, opCtx)
}
