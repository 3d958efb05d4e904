// Package runtime assembles the staging service from configuration and
// manages its lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/roomstage/internal/api/runware"
	"github.com/tjfontaine/roomstage/internal/asset"
	"github.com/tjfontaine/roomstage/internal/auth"
	"github.com/tjfontaine/roomstage/internal/config"
	"github.com/tjfontaine/roomstage/internal/core/ports"
	"github.com/tjfontaine/roomstage/internal/frontdoor/staging"
	"github.com/tjfontaine/roomstage/internal/metrics"
	"github.com/tjfontaine/roomstage/internal/pipeline"
	"github.com/tjfontaine/roomstage/internal/pkg/safehttp"
	"github.com/tjfontaine/roomstage/internal/server"
	"github.com/tjfontaine/roomstage/internal/storage/blob"
	"github.com/tjfontaine/roomstage/internal/storage/memory"
	"github.com/tjfontaine/roomstage/internal/storage/sqldb"
)

// App is the assembled staging service. Collaborators not supplied through
// options are built from the configuration.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	inference ports.InferenceClient
	fetcher   ports.AssetFetcher
	assets    ports.AssetStore
	results   ports.ResultStore
	resolver  ports.OwnerResolver
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	orchestrator *pipeline.Orchestrator
	server       *server.Server

	mu      sync.Mutex
	serveCh chan error
}

// New builds an App. A configuration must be supplied with WithConfig or
// WithConfigFile.
func New(ctx context.Context, opts ...Option) (*App, error) {
	a := &App{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.cfg == nil {
		return nil, errors.New("config required (use WithConfig or WithConfigFile)")
	}

	if err := a.initCollaborators(ctx); err != nil {
		return nil, err
	}

	a.initPipeline()
	a.initServer()

	return a, nil
}

func (a *App) initCollaborators(ctx context.Context) error {
	cfg := a.cfg

	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	if a.inference == nil {
		if cfg.Provider.APIKey == "" {
			a.logger.Warn("provider api key not configured; staging requests will fail")
		}
		params := runware.InferenceParams{
			Model:         cfg.Provider.Model,
			Width:         cfg.Provider.Width,
			Height:        cfg.Provider.Height,
			NumberResults: 1,
			OutputFormat:  cfg.Provider.OutputFormat,
			CFGScale:      cfg.Provider.CFGScale,
			Scheduler:     cfg.Provider.Scheduler,
			Strength:      cfg.Provider.Strength,
			Steps:         cfg.Provider.Steps,
		}
		httpClient := &http.Client{
			Timeout:   cfg.Provider.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		a.inference = runware.NewClient(cfg.Provider.APIKey,
			runware.WithBaseURL(cfg.Provider.BaseURL),
			runware.WithHTTPClient(httpClient),
			runware.WithInferenceParams(params),
		)
	}

	if a.fetcher == nil {
		transport := safehttp.NewTransport(cfg.Assets.AllowPrivateHosts)
		a.fetcher = asset.NewFetcher(
			asset.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(transport)}),
			asset.WithMaxBytes(cfg.Assets.MaxDownloadBytes),
			asset.WithLogger(a.logger),
		)
	}

	if a.assets == nil {
		store, err := blob.New(ctx, blob.Config{
			Type:          cfg.Assets.Type,
			Bucket:        cfg.Assets.Bucket,
			Region:        cfg.Assets.Region,
			Endpoint:      cfg.Assets.Endpoint,
			PathStyle:     cfg.Assets.PathStyle,
			PublicBaseURL: cfg.AssetsPublicBaseURL(),
			FileRoot:      cfg.Assets.File.Root,
		})
		if err != nil {
			return fmt.Errorf("create asset store: %w", err)
		}
		a.assets = store
		if cfg.Assets.Type == "memory" {
			a.logger.Warn("memory asset store in use; staged images are lost on restart")
		}
	}

	if a.results == nil {
		switch cfg.Storage.Type {
		case "sqlite", "postgres":
			store, err := sqldb.New(sqldb.Config{Driver: cfg.DatabaseDriver(), DSN: cfg.Storage.Database.DSN})
			if err != nil {
				return fmt.Errorf("create result store: %w", err)
			}
			a.results = store
		default:
			a.results = memory.New()
		}
	}

	if a.resolver == nil {
		if cfg.Auth.JWTSecret == "" {
			a.logger.Warn("auth.jwt_secret not configured; all staging requests will be rejected")
		} else {
			resolver, err := auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Audience, a.logger)
			if err != nil {
				return fmt.Errorf("create owner resolver: %w", err)
			}
			a.resolver = resolver
		}
	}

	a.logger.Info("collaborators ready",
		slog.String("assets", cfg.Assets.Type),
		slog.String("storage", cfg.Storage.Type))

	return nil
}

func (a *App) initPipeline() {
	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithTokenBudget(a.cfg.Provider.PromptTokenBudget),
		pipeline.WithRequestID(server.GetRequestID),
	}
	if a.tracer != nil {
		opts = append(opts, pipeline.WithTracer(a.tracer))
	}

	a.orchestrator = pipeline.New(pipeline.Deps{
		Inference: a.inference,
		Fetcher:   a.fetcher,
		Store:     a.assets,
		Recorder:  a.results,
	}, opts...)
}

func (a *App) initServer() {
	a.server = server.New(server.Options{
		Port:           a.cfg.Server.Port,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		Resolver:       a.resolver,
		Instrument:     a.metrics.Middleware,
	}, a.logger)

	r := a.server.Router
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", a.metrics.Handler())

	if reader, ok := a.assets.(blob.Reader); ok {
		r.Handle(config.AssetsRoute+"/*", http.StripPrefix(config.AssetsRoute, blob.Handler(reader)))
	}

	staging.NewHandler(a.orchestrator, a.results, a.logger).Mount(r)
}

// Handler returns the fully wired HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Router
}

// Orchestrator returns the staging pipeline.
func (a *App) Orchestrator() *pipeline.Orchestrator {
	return a.orchestrator
}

// Start begins serving in the background. Errors from the listener are
// returned by Wait.
func (a *App) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.serveCh != nil {
		return
	}
	a.serveCh = make(chan error, 1)
	go func() {
		a.serveCh <- a.server.Start()
	}()
}

// Wait blocks until the server stops or ctx is done.
func (a *App) Wait(ctx context.Context) error {
	a.mu.Lock()
	ch := a.serveCh
	a.mu.Unlock()

	if ch == nil {
		return errors.New("app not started")
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown drains the server and releases the result store.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			a.logger.Error("failed to close result store", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
