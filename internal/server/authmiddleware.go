package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/roomstage/internal/auth"
	"github.com/tjfontaine/roomstage/internal/core/ports"
)

type ownerKey struct{}

// OwnerMiddleware resolves the bearer credential and stores the owner id in
// the request context. Requests without a valid credential are passed
// through with no owner; handlers decide whether that is an error.
// A nil resolver disables resolution. Whether an Authorization header was
// sent is always recorded with auth.WithCredentialPresented.
func OwnerMiddleware(resolver ports.OwnerResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get("Authorization") != "" {
				r = r.WithContext(auth.WithCredentialPresented(r.Context()))
			}

			if resolver == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, err := auth.ExtractBearer(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			owner, err := resolver.ResolveOwner(r.Context(), token)
			if err != nil {
				logger.DebugContext(r.Context(), "owner resolution failed",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			AddLogField(r.Context(), "owner_id", owner)
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

// WithOwner returns a context carrying ownerID.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// GetOwner returns the resolved owner id, or "".
func GetOwner(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey{}).(string); ok {
		return owner
	}
	return ""
}
