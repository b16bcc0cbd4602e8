// Package jobs owns the table of in-flight and recently completed
// asynchronous jobs. The table is a single mutex-guarded structure: every
// transition is applied atomically, reads return copies, and a read issued
// after a completion signal always observes the terminal state.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/langkit/opcore/internal/app/fanout"
	"github.com/langkit/opcore/internal/domain"
	"github.com/langkit/opcore/internal/domain/job"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/platform/telemetry"
	"github.com/langkit/opcore/internal/ports"
)

// Compile-time check that Manager implements ports.JobService.
var _ ports.JobService = (*Manager)(nil)

// Policy defaults, overridable via Config.
const (
	DefaultRetention    = 10 * time.Minute
	DefaultReapInterval = time.Minute
	DefaultMaxWorkers   = 8
)

// Config holds job table policy settings. Zero values fall back to the
// package defaults.
type Config struct {
	// Retention is how long a terminal job stays retrievable before the
	// reaper removes it.
	Retention    time.Duration
	ReapInterval time.Duration
	// MaxWorkers bounds the concurrency of bulk cancellation.
	MaxWorkers int
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = DefaultReapInterval
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	return c
}

// record pairs the job with the cancel function bound at start time.
// The cancel function fires the handler's context when the job is
// cancelled; the handler itself decides when to stop (cooperative model).
type record struct {
	job    job.Job
	seq    uint64
	cancel context.CancelFunc
}

// Manager is the in-memory job table. All methods are safe for concurrent
// use. Construct with New.
type Manager struct {
	mu      sync.Mutex
	records map[string]*record
	nextSeq uint64

	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// nowFn is swapped in tests to drive retention deterministically.
	nowFn func() time.Time

	reapStop chan struct{}
	reapDone chan struct{}
}

// New creates an empty job table. metrics may be nil; logger falls back to
// a discard handler when nil.
func New(cfg Config, metrics *telemetry.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		records: make(map[string]*record),
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
		nowFn:   time.Now,
	}
}

// CreateJob allocates a fresh pending record and returns its id. Creation
// is two-phase: the caller transitions the job to running via StartJob once
// background execution actually begins, so a poller never sees a job that
// exists but has no state.
func (m *Manager) CreateJob(meta ports.NewJob) string {
	id := uuid.NewString()
	now := m.nowFn()

	m.mu.Lock()
	m.nextSeq++
	m.records[id] = &record{
		job: job.Job{
			ID:            id,
			CorrelationID: meta.CorrelationID,
			Language:      meta.Language,
			Operation:     meta.Operation,
			Status:        job.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		seq: m.nextSeq,
	}
	m.mu.Unlock()

	m.recordTransition(job.StatusPending)
	m.logger.Debug("job created",
		slog.String("job_id", id),
		slog.String("correlation_id", meta.CorrelationID),
	)
	return id
}

// StartJob transitions a pending job to running and binds the cancel
// function invoked when the job is cancelled.
func (m *Manager) StartJob(id string, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if !r.job.Status.CanTransitionTo(job.StatusRunning) {
		return fmt.Errorf("%w: job %s is %s, cannot start", domain.ErrConflict, id, r.job.Status)
	}

	r.job.Status = job.StatusRunning
	r.job.UpdatedAt = m.nowFn()
	r.cancel = cancel

	m.recordTransition(job.StatusRunning)
	return nil
}

// UpdateProgress records progress on a running job. Values are clamped to
// [0,100] and never move backward; the message, when non-empty, overwrites
// the previous note.
func (m *Manager) UpdateProgress(id string, progress int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if r.job.Status != job.StatusRunning {
		return fmt.Errorf("%w: job %s is %s, not running", domain.ErrConflict, id, r.job.Status)
	}

	if p := job.ClampProgress(progress); p > r.job.Progress {
		r.job.Progress = p
	}
	if message != "" {
		r.job.Message = message
	}
	r.job.UpdatedAt = m.nowFn()
	return nil
}

// CompleteJob transitions a running job to completed with its result.
func (m *Manager) CompleteJob(id string, result *operation.Result) error {
	return m.finish(id, job.StatusCompleted, func(j *job.Job) {
		j.Result = result
		j.Progress = 100
	})
}

// FailJob transitions a running job to failed with an error message.
func (m *Manager) FailJob(id string, errText string) error {
	return m.finish(id, job.StatusFailed, func(j *job.Job) {
		j.Error = errText
	})
}

// finish applies a terminal transition. Exactly one terminal transition
// wins per job; later attempts get a conflict error.
func (m *Manager) finish(id string, terminal job.Status, apply func(*job.Job)) error {
	m.mu.Lock()

	r, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if !r.job.Status.CanTransitionTo(terminal) {
		status := r.job.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: job %s already terminal (%s)", domain.ErrConflict, id, status)
	}

	now := m.nowFn()
	r.job.Status = terminal
	r.job.UpdatedAt = now
	r.job.CompletedAt = &now
	apply(&r.job)
	m.mu.Unlock()

	m.recordTransition(terminal)
	m.logger.Debug("job finished",
		slog.String("job_id", id),
		slog.String("status", string(terminal)),
	)
	return nil
}

// CancelJob cancels a pending or running job, returning true only when the
// job was actually cancelled. Missing and already-terminal jobs return
// false without error. The bound cancel function fires after the status
// flip; handler code keeps running until it observes the cancellation.
func (m *Manager) CancelJob(id string) bool {
	m.mu.Lock()

	r, ok := m.records[id]
	if !ok || !r.job.Status.CanTransitionTo(job.StatusCancelled) {
		m.mu.Unlock()
		return false
	}

	now := m.nowFn()
	r.job.Status = job.StatusCancelled
	r.job.UpdatedAt = now
	r.job.CompletedAt = &now
	cancel := r.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	m.recordTransition(job.StatusCancelled)
	m.logger.Debug("job cancelled", slog.String("job_id", id))
	return true
}

// CancelJobs cancels every job currently in the given status, returning how
// many were actually cancelled. Cancellations run concurrently because each
// one may fire a handler's cancel function. Jobs that reach a terminal state
// while the batch runs are skipped, not errors.
func (m *Manager) CancelJobs(ctx context.Context, status job.Status) int {
	views := m.JobsByStatus(status)
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}

	results := fanout.Run(ctx, m.cfg.MaxWorkers, ids, func(_ context.Context, id string) (bool, error) {
		return m.CancelJob(id), nil
	})

	cancelled := 0
	for _, r := range results {
		if r.Err == nil && r.Value {
			cancelled++
		}
	}
	if cancelled > 0 {
		m.logger.Info("bulk cancelled jobs",
			slog.String("status", string(status)),
			slog.Int("cancelled", cancelled),
		)
	}
	return cancelled
}

// GetJob returns the lightweight polling view of a job.
func (m *Manager) GetJob(id string) (job.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return job.View{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return r.job.View(), nil
}

// GetJobResult returns a copy of the full job including result and error
// payloads. Non-terminal jobs come back with a nil result; callers
// represent that as "accepted, not ready" rather than an error.
func (m *Manager) GetJobResult(id string) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	j := r.job
	return &j, nil
}

// AllJobs returns polling views of every job, newest first.
func (m *Manager) AllJobs() []job.View {
	return m.collect(func(*record) bool { return true })
}

// JobsByStatus returns polling views of jobs in the given status, newest
// first.
func (m *Manager) JobsByStatus(status job.Status) []job.View {
	return m.collect(func(r *record) bool { return r.job.Status == status })
}

// ActiveJobCount returns the number of pending and running jobs.
func (m *Manager) ActiveJobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.records {
		if !r.job.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func (m *Manager) collect(keep func(*record) bool) []job.View {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*record, 0, len(m.records))
	for _, r := range m.records {
		if keep(r) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	views := make([]job.View, len(matched))
	for i, r := range matched {
		views[i] = r.job.View()
	}
	return views
}

// StartReaper launches the background loop that removes jobs terminal for
// longer than the retention window. Starting twice is a no-op. Reads and
// the reaper share the table mutex, so a reap can never interleave with a
// read of the same record.
func (m *Manager) StartReaper() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reapStop != nil {
		return
	}
	m.reapStop = make(chan struct{})
	m.reapDone = make(chan struct{})

	go m.reapLoop(m.reapStop, m.reapDone)
}

// StopReaper stops the reaper and waits for it to exit. Stopping when not
// started is a no-op.
func (m *Manager) StopReaper() {
	m.mu.Lock()
	stop, done := m.reapStop, m.reapDone
	m.reapStop = nil
	m.reapDone = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *Manager) reapLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if removed := m.reapExpired(); removed > 0 {
				m.logger.Debug("reaped expired jobs", slog.Int("removed", removed))
			}
		}
	}
}

// reapExpired removes jobs whose terminal state is older than the
// retention window. Exposed to tests through the same code path the
// background loop uses.
func (m *Manager) reapExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.nowFn().Add(-m.cfg.Retention)
	removed := 0
	for id, r := range m.records {
		if r.job.Status.IsTerminal() && r.job.CompletedAt != nil && r.job.CompletedAt.Before(cutoff) {
			delete(m.records, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) recordTransition(status job.Status) {
	if m.metrics == nil {
		return
	}
	m.metrics.JobTransitionTotal.Add(context.Background(), 1, metric.WithAttributes(
		telemetry.AttrJobStatus.String(string(status)),
	))
}
