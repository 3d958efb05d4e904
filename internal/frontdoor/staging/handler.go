// Package staging is the HTTP frontdoor for staging requests.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/roomstage/internal/auth"
	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/server"
)

// LegacyPath is the path the original browser client posts to.
const LegacyPath = "/functions/v1/generate-staged-image"

// Stager runs one staging request.
type Stager interface {
	Stage(ctx context.Context, ownerID string, req domain.StagingRequest) (*domain.StagingResult, error)
}

// ResultReader reads back an owner's staging result.
type ResultReader interface {
	GetResult(ctx context.Context, ownerID, id string) (*domain.StagedImageRecord, error)
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler serves the staging endpoints.
type Handler struct {
	stager  Stager
	results ResultReader
	logger  *slog.Logger
}

// NewHandler creates a Handler. results may be nil, which disables read-back.
func NewHandler(stager Stager, results ResultReader, logger *slog.Logger) *Handler {
	return &Handler{stager: stager, results: results, logger: logger}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/v1/staging", h.HandleStage)
	r.Post(LegacyPath, h.HandleStage)
	if h.results != nil {
		r.Get("/v1/staging/{id}", h.HandleGet)
	}
}

// HandleStage decodes a StagingRequest and runs the pipeline.
func (h *Handler) HandleStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := server.GetOwner(ctx)

	// Authentication is reported before body problems.
	if owner == "" {
		h.writeError(w, r, auth.Unauthenticated(ctx))
		return
	}

	var req domain.StagingRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeError(w, r, domain.ErrInvalidRequest("Request body too large").Wrap(err))
			return
		}
		h.writeError(w, r, domain.ErrInvalidRequest("Invalid JSON body").Wrap(err))
		return
	}

	server.AddLogField(ctx, "room_type", req.RoomType)
	server.AddLogField(ctx, "style", req.Style)

	result, err := h.stager.Stage(ctx, owner, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	server.AddLogField(ctx, "staging_id", result.ID)
	writeJSON(w, http.StatusOK, result)
}

// HandleGet returns one of the caller's own results.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := server.GetOwner(ctx)
	if owner == "" {
		h.writeError(w, r, auth.Unauthenticated(ctx))
		return
	}

	rec, err := h.results.GetResult(ctx, owner, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.AsStagingError(err, domain.KindPersistenceFailed, "Failed to load staged image"))
		return
	}

	writeJSON(w, http.StatusOK, rec.Result())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var se *domain.StagingError
	if !errors.As(err, &se) {
		h.logger.ErrorContext(r.Context(), "unclassified error",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	server.AddLogField(r.Context(), "error_kind", string(se.Kind))
	writeJSON(w, se.HTTPStatusCode(), ErrorResponse{Error: se.Message, Details: se.Details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
