// Package job defines the tracked record of one asynchronous operation
// invocation: its status state machine, progress, and outcome.
package job

import (
	"time"

	"github.com/langkit/opcore/internal/domain/operation"
)

// Job is the mutable record of one asynchronous invocation. Instances are
// owned by the job manager; callers only ever see copies, so a poller can
// never observe a half-applied transition.
type Job struct {
	ID            string
	CorrelationID string
	Language      operation.LanguageID
	Operation     operation.ID
	Status        Status
	Progress      int
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// CompletedAt is set exactly once, at the moment Status becomes terminal.
	CompletedAt *time.Time

	// Result is populated only when Status is StatusCompleted.
	Result *operation.Result
	// Error is populated only when Status is StatusFailed.
	Error string
}

// View is the lightweight status/progress projection returned by polling
// reads. It deliberately excludes the result payload and error detail so
// that high-frequency polling stays cheap.
type View struct {
	ID            string
	CorrelationID string
	Language      operation.LanguageID
	Operation     operation.ID
	Status        Status
	Progress      int
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// View projects the job onto its polling view.
func (j *Job) View() View {
	return View{
		ID:            j.ID,
		CorrelationID: j.CorrelationID,
		Language:      j.Language,
		Operation:     j.Operation,
		Status:        j.Status,
		Progress:      j.Progress,
		Message:       j.Message,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		CompletedAt:   j.CompletedAt,
	}
}

// ClampProgress bounds a reported progress value to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
