package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langkit/opcore/internal/app/jobs"
	"github.com/langkit/opcore/internal/app/registry"
	"github.com/langkit/opcore/internal/app/resolver"
	"github.com/langkit/opcore/internal/domain"
	"github.com/langkit/opcore/internal/domain/document"
	"github.com/langkit/opcore/internal/domain/job"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/platform/doccache"
	"github.com/langkit/opcore/internal/platform/parserclient"
	"github.com/langkit/opcore/internal/ports"
)

type stubParser struct {
	err error
}

func (s *stubParser) Parse(_ context.Context, uri string) (*document.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &document.Document{URI: uri, FileName: "model.mdsl", LanguageID: "mdsl", Content: "API description Example"}, nil
}

func (s *stubParser) ParseContent(_ context.Context, fileName, content string) (*document.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &document.Document{FileName: fileName, Content: content, LanguageID: "mdsl"}, nil
}

type fixture struct {
	executor *Executor
	registry *registry.Registry
	jobs     *jobs.Manager
	parser   *stubParser
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	parser := &stubParser{}
	reg := registry.New()
	res := resolver.New(doccache.New(doccache.Config{}, nil), parser, nil, nil)
	jm := jobs.New(jobs.Config{}, nil, nil)

	return &fixture{
		executor: New(reg, res, jm, cfg, nil, nil),
		registry: reg,
		jobs:     jm,
		parser:   parser,
	}
}

func (f *fixture) register(t *testing.T, mode operation.Mode, schema operation.InputSchema, fn operation.HandlerFunc) {
	t.Helper()
	err := f.registry.Register(operation.Declaration{
		Language:    "mdsl",
		Operation:   "generate-docs",
		Mode:        mode,
		InputSchema: schema,
	}, fn)
	require.NoError(t, err)
}

func request() ports.ExecuteRequest {
	return ports.ExecuteRequest{
		Language:  "mdsl",
		Operation: "generate-docs",
		Document:  document.Ref{URI: "file:///workspace/model.mdsl"},
	}
}

func waitForStatus(t *testing.T, jm *jobs.Manager, id string, want job.Status) job.View {
	t.Helper()
	var v job.View
	require.Eventually(t, func() bool {
		got, err := jm.GetJob(id)
		if err != nil {
			return false
		}
		v = got
		return got.Status == want
	}, 2*time.Second, 5*time.Millisecond, "job never reached %s", want)
	return v
}

func TestExecute_Sync_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeSync, nil, func(_ context.Context, opCtx *operation.Context) (*operation.Result, error) {
		assert.Equal(t, "mdsl", opCtx.Document.LanguageID)
		return operation.OK(map[string]any{"pages": 2}, "generated"), nil
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, got.Async)
	assert.Empty(t, got.JobID)
	assert.NotEmpty(t, got.CorrelationID)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.Success)
	assert.Equal(t, "generated", got.Result.Message)
}

func TestExecute_Sync_HandlerError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeSync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		return nil, errors.New("unsupported target type")
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err, "handler failures are results, not transport errors")
	assert.False(t, got.Result.Success)
	assert.Equal(t, "unsupported target type", got.Result.Err)
}

func TestExecute_Sync_HandlerPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeSync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		panic("boom")
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, got.Result.Success)
	assert.Contains(t, got.Result.Err, "internal error")
}

func TestExecute_Sync_ResolutionFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.parser.err = errors.New("parser unreachable")
	f.register(t, operation.ModeSync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		t.Error("handler must not run when resolution fails")
		return nil, nil
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, got.Result.Success)
	assert.Contains(t, got.Result.Err, "document resolution failed")
}

func TestExecute_UnknownOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})

	_, err := f.executor.Execute(context.Background(), request())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecute_InvalidRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeSync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		return operation.OK(nil, ""), nil
	})

	cases := []struct {
		name   string
		mutate func(*ports.ExecuteRequest)
	}{
		{name: "empty language", mutate: func(r *ports.ExecuteRequest) { r.Language = "" }},
		{name: "empty operation", mutate: func(r *ports.ExecuteRequest) { r.Operation = "" }},
		{name: "invalid document ref", mutate: func(r *ports.ExecuteRequest) { r.Document = document.Ref{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := request()
			tc.mutate(&req)
			_, err := f.executor.Execute(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestExecute_InputSchemaEnforced(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	schema := operation.InputSchema{
		{Name: "format", Type: operation.FieldString, Required: true},
	}
	f.register(t, operation.ModeSync, schema, func(_ context.Context, opCtx *operation.Context) (*operation.Result, error) {
		return operation.OK(opCtx.Input["format"], ""), nil
	})

	req := request()
	_, err := f.executor.Execute(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation, "required field missing")

	req.Input = map[string]any{"format": 42}
	_, err = f.executor.Execute(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation, "wrong field type")

	req.Input = map[string]any{"format": "markdown"}
	got, err := f.executor.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, got.Result.Success)
}

func TestExecute_CorrelationIDPrecedence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	var seen string
	f.register(t, operation.ModeSync, nil, func(_ context.Context, opCtx *operation.Context) (*operation.Result, error) {
		seen = opCtx.CorrelationID
		return operation.OK(nil, ""), nil
	})

	// Explicit request id wins over the context.
	ctx := parserclient.WithCorrelationID(context.Background(), "from-context")
	req := request()
	req.CorrelationID = "from-request"
	got, err := f.executor.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "from-request", got.CorrelationID)
	assert.Equal(t, "from-request", seen)

	// Context id is the fallback.
	got, err = f.executor.Execute(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, "from-context", got.CorrelationID)

	// Otherwise one is minted.
	got, err = f.executor.Execute(context.Background(), request())
	require.NoError(t, err)
	assert.NotEmpty(t, got.CorrelationID)
}

func TestExecute_Async_CompletesJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeAsync, nil, func(_ context.Context, opCtx *operation.Context) (*operation.Result, error) {
		require.NoError(t, opCtx.ReportProgress(50, "halfway"))
		return operation.OK(map[string]any{"pages": 7}, "generated"), nil
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, got.Async)
	require.NotEmpty(t, got.JobID)
	assert.Nil(t, got.Result)

	waitForStatus(t, f.jobs, got.JobID, job.StatusCompleted)

	j, err := f.jobs.GetJobResult(got.JobID)
	require.NoError(t, err)
	assert.Equal(t, 100, j.Progress)
	require.NotNil(t, j.Result)
	assert.True(t, j.Result.Success)
	assert.Equal(t, got.CorrelationID, j.CorrelationID)
}

func TestExecute_Async_HandlerErrorFailsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeAsync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		return nil, errors.New("generation failed")
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)

	waitForStatus(t, f.jobs, got.JobID, job.StatusFailed)
	j, err := f.jobs.GetJobResult(got.JobID)
	require.NoError(t, err)
	assert.Equal(t, "generation failed", j.Error)
}

func TestExecute_Async_PanicFailsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeAsync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		panic("handler bug")
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)

	waitForStatus(t, f.jobs, got.JobID, job.StatusFailed)
	j, _ := f.jobs.GetJobResult(got.JobID)
	assert.Contains(t, j.Error, "internal error")
}

func TestExecute_Async_ResolutionFailureFailsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.parser.err = errors.New("parser unreachable")
	f.register(t, operation.ModeAsync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		t.Error("handler must not run when resolution fails")
		return nil, nil
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err, "async acceptance happens before resolution")

	waitForStatus(t, f.jobs, got.JobID, job.StatusFailed)
	j, _ := f.jobs.GetJobResult(got.JobID)
	assert.Contains(t, j.Error, "document resolution failed")
}

func TestExecute_Async_CooperativeCancellation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	started := make(chan struct{})
	release := make(chan struct{})
	observed := make(chan error, 1)

	f.register(t, operation.ModeAsync, nil, func(ctx context.Context, opCtx *operation.Context) (*operation.Result, error) {
		close(started)
		<-release
		observed <- opCtx.ReportProgress(60, "still going")
		<-ctx.Done()
		return nil, ctx.Err()
	})

	got, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)

	<-started
	require.True(t, f.jobs.CancelJob(got.JobID))
	close(release)

	progressErr := <-observed
	require.Error(t, progressErr, "progress after cancellation signals the handler to stop")

	v := waitForStatus(t, f.jobs, got.JobID, job.StatusCancelled)
	assert.Equal(t, job.StatusCancelled, v.Status)

	// The late handler return never overwrites the cancelled status.
	time.Sleep(20 * time.Millisecond)
	j, err := f.jobs.GetJobResult(got.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, j.Status)
	assert.Nil(t, j.Result)
}

func TestExecute_Async_LoadShedding(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{MaxActiveJobs: 1})
	release := make(chan struct{})
	f.register(t, operation.ModeAsync, nil, func(context.Context, *operation.Context) (*operation.Result, error) {
		<-release
		return operation.OK(nil, ""), nil
	})

	first, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), request())
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	close(release)
	waitForStatus(t, f.jobs, first.JobID, job.StatusCompleted)

	// Capacity frees up once the first job finishes.
	second, err := f.executor.Execute(context.Background(), request())
	require.NoError(t, err)
	waitForStatus(t, f.jobs, second.JobID, job.StatusCompleted)
}

func TestExecute_Async_DetachedFromRequestContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.register(t, operation.ModeAsync, nil, func(ctx context.Context, _ *operation.Context) (*operation.Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return operation.OK(nil, "survived caller cancellation"), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	got, err := f.executor.Execute(ctx, request())
	require.NoError(t, err)
	cancel()

	waitForStatus(t, f.jobs, got.JobID, job.StatusCompleted)
}
