package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/langkit/opcore/internal/app/executor"
	"github.com/langkit/opcore/internal/app/jobs"
	"github.com/langkit/opcore/internal/app/registry"
	"github.com/langkit/opcore/internal/app/resolver"
	"github.com/langkit/opcore/internal/domain/document"
	"github.com/langkit/opcore/internal/domain/operation"
	"github.com/langkit/opcore/internal/platform/doccache"
)

func withChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("failed to encode JSON body: %v", err)
	}
	return buf
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return result
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

// stubParser serves canned documents so handler tests never touch a real
// parsing service.
type stubParser struct{}

func (stubParser) Parse(_ context.Context, uri string) (*document.Document, error) {
	return &document.Document{
		URI:        uri,
		FileName:   "model.mdsl",
		LanguageID: "mdsl",
		Content:    "API description ExampleAPI",
		ETag:       "v1",
		ParsedAt:   time.Now(),
	}, nil
}

func (stubParser) ParseContent(_ context.Context, fileName, content string) (*document.Document, error) {
	return &document.Document{
		FileName: fileName,
		Content:  content,
		ParsedAt: time.Now(),
	}, nil
}

// coreFixture wires real application components behind the handlers.
type coreFixture struct {
	registry *registry.Registry
	resolver *resolver.Resolver
	jobs     *jobs.Manager
	executor *executor.Executor
	cache    *doccache.Cache
}

func newCoreFixture(t *testing.T) *coreFixture {
	t.Helper()

	cache := doccache.New(doccache.Config{}, nil)
	reg := registry.New()
	res := resolver.New(cache, stubParser{}, nil, nil)
	mgr := jobs.New(jobs.Config{}, nil, nil)
	exec := executor.New(reg, res, mgr, executor.Config{}, nil, nil)

	return &coreFixture{
		registry: reg,
		resolver: res,
		jobs:     mgr,
		executor: exec,
		cache:    cache,
	}
}

// registerEcho registers a synchronous operation that reflects its input
// back, for exercising the execute path end to end.
func (f *coreFixture) registerEcho(t *testing.T) {
	t.Helper()

	decl := operation.Declaration{
		Language:    "mdsl",
		Operation:   "echo",
		Description: "Reflect the request input",
		Mode:        operation.ModeSync,
	}
	handler := operation.HandlerFunc(func(_ context.Context, opCtx *operation.Context) (*operation.Result, error) {
		return operation.OK(opCtx.Input, "echoed"), nil
	})
	if err := f.registry.Register(decl, handler); err != nil {
		t.Fatalf("register echo: %v", err)
	}
}

// registerSlowAsync registers an asynchronous operation that blocks until
// release is closed, so tests can observe non-terminal jobs.
func (f *coreFixture) registerSlowAsync(t *testing.T, release <-chan struct{}) {
	t.Helper()

	decl := operation.Declaration{
		Language:  "mdsl",
		Operation: "generate-openapi",
		Mode:      operation.ModeAsync,
	}
	handler := operation.HandlerFunc(func(ctx context.Context, _ *operation.Context) (*operation.Result, error) {
		select {
		case <-release:
			return operation.OK(map[string]any{"spec": "openapi: 3.0.0"}, "generated"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err := f.registry.Register(decl, handler); err != nil {
		t.Fatalf("register generate-openapi: %v", err)
	}
}
