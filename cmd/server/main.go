// Package main is the entry point for the operation execution server. It
// wires all dependencies using samber/do v2, starts the HTTP server, and
// handles graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	adapthttp "github.com/langkit/opcore/internal/adapters/http"
	"github.com/langkit/opcore/internal/adapters/http/handlers"
	"github.com/langkit/opcore/internal/adapters/http/middleware"

	"github.com/langkit/opcore/internal/adapters/clients/acl"
	"github.com/langkit/opcore/internal/app/executor"
	"github.com/langkit/opcore/internal/app/jobs"
	"github.com/langkit/opcore/internal/app/registry"
	"github.com/langkit/opcore/internal/app/resolver"
	"github.com/langkit/opcore/internal/platform/config"
	"github.com/langkit/opcore/internal/platform/doccache"
	"github.com/langkit/opcore/internal/platform/health"
	"github.com/langkit/opcore/internal/platform/logging"
	"github.com/langkit/opcore/internal/platform/parserclient"
	"github.com/langkit/opcore/internal/platform/telemetry"
	"github.com/langkit/opcore/internal/ports"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	serverShutdownTimeout = 15 * time.Second
	otelShutdownTimeout   = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	profile := os.Getenv("APP_PROFILE")
	if profile == "" {
		return errors.New("APP_PROFILE environment variable is required (e.g. local, dev, qa, prod)")
	}

	// Bootstrap: config, logger, telemetry.
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx := context.Background()
	otel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	// DI container.
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, otel.metrics)

	registerDependencies(injector, cfg, logger)

	// Resolve the server (eagerly wires the full graph).
	server, err := do.Invoke[*adapthttp.Server](injector)
	if err != nil {
		return fmt.Errorf("resolving server: %w", err)
	}

	// Register health checkers after the graph is wired.
	healthReg := do.MustInvoke[ports.HealthRegistry](injector)
	parserHTTP := do.MustInvoke[*parserclient.Client](injector)
	healthReg.Register(parserHTTP)

	// Background maintenance loops.
	cache := do.MustInvoke[*doccache.Cache](injector)
	cache.StartCleanup()

	jobTable := do.MustInvoke[*jobs.Manager](injector)
	jobTable.StartReaper()

	// Start server in background.
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Graceful shutdown: drain HTTP requests first.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Wait for Start() goroutine to return.
	<-serverErr

	// Stop maintenance loops once no new requests can arrive.
	jobTable.StopReaper()
	cache.StopCleanup()

	// Flush telemetry.
	otelCtx, otelCancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
	defer otelCancel()

	if err := otel.Shutdown(otelCtx); err != nil {
		logger.Error("telemetry shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// otelProviders bundles OpenTelemetry provider lifecycle. All fields are nil
// when telemetry is disabled.
type otelProviders struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics *telemetry.Metrics
}

// Shutdown flushes both providers. Nil-safe.
func (o *otelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracer != nil {
		if err := o.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if o.meter != nil {
		if err := o.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func initTelemetry(ctx context.Context, cfg *config.Config) (*otelProviders, error) {
	if !cfg.Telemetry.Enabled {
		return &otelProviders{}, nil
	}

	tp, err := telemetry.InitTracer(ctx,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.Exporter,
		cfg.Telemetry.Endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	mp, err := telemetry.InitMeter(ctx,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.Exporter,
		cfg.Telemetry.Endpoint,
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("init meter: %w", err)
	}

	metrics, err := telemetry.NewMetrics(mp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	return &otelProviders{
		tracer:  tp,
		meter:   mp,
		metrics: metrics,
	}, nil
}

func registerDependencies(injector *do.RootScope, cfg *config.Config, logger *slog.Logger) {
	do.Provide(injector, func(i do.Injector) (*parserclient.Client, error) {
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return parserclient.New(&cfg.Parser, "parser-api", metrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (ports.ParserClient, error) {
		client := do.MustInvoke[*parserclient.Client](i)
		return acl.NewParserAPIClient(client, logger), nil
	})

	do.Provide(injector, func(_ do.Injector) (*doccache.Cache, error) {
		return doccache.New(doccache.Config{
			DefaultTTL:      cfg.Cache.DefaultTTL,
			MaxEntries:      cfg.Cache.MaxEntries,
			CleanupInterval: cfg.Cache.CleanupInterval,
		}, logger), nil
	})

	do.Provide(injector, func(_ do.Injector) (ports.OperationRegistry, error) {
		return registry.New(), nil
	})

	do.Provide(injector, func(i do.Injector) (ports.DocumentResolver, error) {
		cache := do.MustInvoke[*doccache.Cache](i)
		parser := do.MustInvoke[ports.ParserClient](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return resolver.New(cache, parser, metrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (*jobs.Manager, error) {
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return jobs.New(jobs.Config{
			Retention:    cfg.Jobs.Retention,
			ReapInterval: cfg.Jobs.ReapInterval,
			MaxWorkers:   cfg.Jobs.MaxWorkers,
		}, metrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (ports.JobService, error) {
		return do.MustInvoke[*jobs.Manager](i), nil
	})

	do.Provide(injector, func(i do.Injector) (ports.OperationExecutor, error) {
		reg := do.MustInvoke[ports.OperationRegistry](i)
		res := do.MustInvoke[ports.DocumentResolver](i)
		jobSvc := do.MustInvoke[ports.JobService](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return executor.New(reg, res, jobSvc, executor.Config{
			MaxActiveJobs: cfg.Jobs.MaxActive,
		}, metrics, logger), nil
	})

	do.Provide(injector, func(_ do.Injector) (ports.HealthRegistry, error) {
		return health.New(), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.OperationHandler, error) {
		exec := do.MustInvoke[ports.OperationExecutor](i)
		return handlers.NewOperationHandler(exec), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.LanguageHandler, error) {
		reg := do.MustInvoke[ports.OperationRegistry](i)
		return handlers.NewLanguageHandler(reg), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.JobHandler, error) {
		jobSvc := do.MustInvoke[ports.JobService](i)
		return handlers.NewJobHandler(jobSvc), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.CacheHandler, error) {
		cache := do.MustInvoke[*doccache.Cache](i)
		res := do.MustInvoke[ports.DocumentResolver](i)
		return handlers.NewCacheHandler(cache, res), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.HealthHandler, error) {
		healthReg := do.MustInvoke[ports.HealthRegistry](i)
		return handlers.NewHealthHandler(healthReg), nil
	})

	do.Provide(injector, func(i do.Injector) (nethttp.Handler, error) {
		opH := do.MustInvoke[*handlers.OperationHandler](i)
		langH := do.MustInvoke[*handlers.LanguageHandler](i)
		jobH := do.MustInvoke[*handlers.JobHandler](i)
		cacheH := do.MustInvoke[*handlers.CacheHandler](i)
		healthH := do.MustInvoke[*handlers.HealthHandler](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)

		return adapthttp.NewRouter(opH, langH, jobH, cacheH, healthH,
			middleware.Recovery(logger),
			middleware.RequestID(),
			middleware.CorrelationID(),
			middleware.OpenTelemetry(metrics),
			middleware.Logging(logger),
			middleware.Timeout(cfg.Server.WriteTimeout),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*adapthttp.Server, error) {
		handler := do.MustInvoke[nethttp.Handler](i)
		return adapthttp.NewServer(cfg.Server, handler, logger), nil
	})
}
