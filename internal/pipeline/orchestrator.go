// Package pipeline runs one staging request through its sequential stages:
// validate, derive, compose, infer, download, store and record.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/roomstage/internal/auth"
	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
	"github.com/tjfontaine/roomstage/internal/metrics"
	"github.com/tjfontaine/roomstage/internal/staging"
	"github.com/tjfontaine/roomstage/internal/tokens"
)

// State names a point in the staging state machine.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateValidating      State = "validating"
	StateDeriving        State = "deriving"
	StateComposing       State = "composing"
	StateInferring       State = "inferring"
	StateDownloading     State = "downloading"
	StateStoring         State = "storing"
	StateRecording       State = "recording"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Inference ports.InferenceClient
	Fetcher   ports.AssetFetcher
	Store     ports.AssetStore
	Recorder  ports.ResultRecorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records stage timings and outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTokenBudget warns when a composed prompt exceeds limit tokens.
// Zero disables the warning; the count is still observed.
func WithTokenBudget(limit int) Option {
	return func(o *Orchestrator) { o.budget = tokens.NewBudget(limit) }
}

// WithRequestID supplies a function that extracts the request id for logs.
func WithRequestID(fn func(context.Context) string) Option {
	return func(o *Orchestrator) { o.requestID = fn }
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// Orchestrator holds only immutable collaborators and is safe for
// concurrent use.
type Orchestrator struct {
	deps      Deps
	validate  *validator.Validate
	budget    *tokens.Budget
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	requestID func(context.Context) string
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:      deps,
		validate:  newValidator(),
		tracer:    otel.Tracer("github.com/tjfontaine/roomstage/internal/pipeline"),
		logger:    slog.Default(),
		requestID: func(context.Context) string { return "" },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stage runs the full pipeline for one request. Every stage runs at most
// once; the first failure ends the run and is returned with its kind.
func (o *Orchestrator) Stage(ctx context.Context, ownerID string, req domain.StagingRequest) (*domain.StagingResult, error) {
	ctx, span := o.tracer.Start(ctx, "staging.Stage", trace.WithAttributes(
		attribute.String("staging.room_type", req.RoomType),
		attribute.String("staging.style", req.Style),
	))
	defer span.End()

	result, state, err := o.run(ctx, ownerID, req)
	if err != nil {
		kind := domain.KindOf(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("staging.failed_state", string(state)))
		o.metrics.CountOutcome(string(kind))

		o.logger.WarnContext(ctx, "staging failed",
			slog.String("request_id", o.requestID(ctx)),
			slog.String("owner_id", ownerID),
			slog.String("state", string(state)),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	o.metrics.CountOutcome("ok")
	o.logger.InfoContext(ctx, "staging completed",
		slog.String("request_id", o.requestID(ctx)),
		slog.String("owner_id", ownerID),
		slog.String("id", result.ID),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, ownerID string, req domain.StagingRequest) (*domain.StagingResult, State, error) {
	if ownerID == "" {
		return nil, StateUnauthenticated, auth.Unauthenticated(ctx)
	}

	if err := validateRequest(o.validate, req); err != nil {
		return nil, StateValidating, err
	}

	if cc, ok := o.deps.Inference.(ports.CredentialChecker); ok && !cc.Configured() {
		return nil, StateValidating, domain.ErrConfiguration("Runware API key not configured")
	}

	if req.HasReferenceImages() {
		o.logger.DebugContext(ctx, "reference images supplied",
			slog.String("request_id", o.requestID(ctx)),
			slog.Int("count", len(req.ReferenceImages)),
		)
	}

	var breakdown domain.Breakdown
	_ = o.step(ctx, StateDeriving, func(context.Context) error {
		breakdown = staging.Derive(req.RoomType, req.Style, req.Prompt)
		return nil
	})

	var prompt string
	_ = o.step(ctx, StateComposing, func(ctx context.Context) error {
		prompt = staging.Compose(req.Prompt, req.RoomType, req.Style, breakdown, req.HasReferenceImages())
		o.measurePrompt(ctx, prompt)
		return nil
	})

	var assetURL string
	err := o.step(ctx, StateInferring, func(ctx context.Context) error {
		var err error
		assetURL, err = o.deps.Inference.Infer(ctx, prompt, req.OriginalImageURL)
		return err
	})
	if err != nil {
		return nil, StateInferring, domain.AsStagingError(err, domain.KindProviderUnavailable, "Image provider unavailable")
	}

	var asset *domain.FetchedAsset
	err = o.step(ctx, StateDownloading, func(ctx context.Context) error {
		var err error
		asset, err = o.deps.Fetcher.Fetch(ctx, assetURL)
		if err == nil && asset == nil {
			err = domain.ErrAssetDownload(errors.New("fetcher returned no asset"))
		}
		return err
	})
	if err != nil {
		return nil, StateDownloading, domain.AsStagingError(err, domain.KindAssetDownloadFailed, "Failed to download generated image")
	}

	var stored *domain.StoredAsset
	err = o.step(ctx, StateStoring, func(ctx context.Context) error {
		var err error
		stored, err = o.deps.Store.Store(ctx, ownerID, asset.Data)
		return err
	})
	if err != nil {
		return nil, StateStoring, domain.AsStagingError(err, domain.KindStorageWriteFailed, "Failed to store image")
	}

	var (
		id        string
		createdAt time.Time
	)
	err = o.step(ctx, StateRecording, func(ctx context.Context) error {
		var err error
		id, createdAt, err = o.deps.Recorder.Record(ctx, domain.RecordInput{
			OwnerID:     ownerID,
			OriginalURL: req.OriginalImageURL,
			StagedURL:   stored.URL,
			Prompt:      req.Prompt,
			RoomType:    req.RoomType,
			Style:       req.Style,
			Breakdown:   breakdown,
		})
		return err
	})
	if err != nil {
		o.logger.WarnContext(ctx, "orphaned asset",
			slog.String("request_id", o.requestID(ctx)),
			slog.String("owner_id", ownerID),
			slog.String("key", stored.Key),
			slog.String("url", stored.URL),
		)
		return nil, StateRecording, domain.AsStagingError(err, domain.KindPersistenceFailed, "Failed to save staged image")
	}

	return &domain.StagingResult{
		ID:              id,
		OriginalURL:     req.OriginalImageURL,
		StagedURL:       stored.URL,
		Prompt:          req.Prompt,
		RoomType:        req.RoomType,
		Style:           req.Style,
		Timestamp:       createdAt,
		StagingElements: breakdown,
	}, StateCompleted, nil
}

// step runs fn inside a span named after state and records its duration.
func (o *Orchestrator) step(ctx context.Context, state State, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "staging."+string(state))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStage(string(state), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) measurePrompt(ctx context.Context, prompt string) {
	if o.budget == nil {
		return
	}
	count, over, err := o.budget.Check(prompt)
	if err != nil {
		o.logger.DebugContext(ctx, "prompt token count unavailable", slog.String("error", err.Error()))
		return
	}
	o.metrics.ObservePromptTokens(count)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("staging.prompt_tokens", count))
	if over {
		o.logger.WarnContext(ctx, "composed prompt exceeds token budget",
			slog.String("request_id", o.requestID(ctx)),
			slog.Int("tokens", count),
			slog.Int("budget", o.budget.Limit),
		)
	}
}
