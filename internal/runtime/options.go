package runtime

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/roomstage/internal/config"
	"github.com/tjfontaine/roomstage/internal/core/ports"
	"github.com/tjfontaine/roomstage/internal/metrics"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithConfig sets the loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		a.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path and the environment.
func WithConfigFile(path string) Option {
	return func(a *App) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithInferenceClient replaces the Runware client built from config.
func WithInferenceClient(c ports.InferenceClient) Option {
	return func(a *App) error {
		a.inference = c
		return nil
	}
}

// WithAssetFetcher replaces the default downloader.
func WithAssetFetcher(f ports.AssetFetcher) Option {
	return func(a *App) error {
		a.fetcher = f
		return nil
	}
}

// WithAssetStore replaces the object store built from config.
func WithAssetStore(s ports.AssetStore) Option {
	return func(a *App) error {
		a.assets = s
		return nil
	}
}

// WithResultStore replaces the result store built from config.
func WithResultStore(s ports.ResultStore) Option {
	return func(a *App) error {
		a.results = s
		return nil
	}
}

// WithOwnerResolver replaces the JWT resolver built from config.
func WithOwnerResolver(r ports.OwnerResolver) Option {
	return func(a *App) error {
		a.resolver = r
		return nil
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) error {
		a.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used for pipeline spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *App) error {
		a.tracer = t
		return nil
	}
}
