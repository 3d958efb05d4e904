// Package server hosts the HTTP router and its middleware chain.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/roomstage/internal/core/ports"
)

// Options configures a Server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Resolver       ports.OwnerResolver
	// Instrument wraps the router, for example with request metrics.
	Instrument func(http.Handler) http.Handler
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	srv    *http.Server
}

// New builds the router with the standard middleware chain. Routes are
// mounted by the caller on Router.
func New(opts Options, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if opts.Instrument != nil {
		r.Use(opts.Instrument)
	}
	r.Use(CORSMiddleware)
	r.Use(OwnerMiddleware(opts.Resolver, logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(MaxBodyMiddleware(opts.MaxBodyBytes))
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "roomstage")
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
