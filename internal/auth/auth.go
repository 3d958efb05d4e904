// Package auth exchanges bearer credentials for owner identifiers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
)

var (
	// ErrMissingToken is returned when no bearer credential is present.
	ErrMissingToken = errors.New("no authorization header")
	// ErrInvalidToken is returned when a credential fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// JWTResolver verifies HS256 access tokens and returns their subject.
type JWTResolver struct {
	secret   []byte
	audience string
	logger   *slog.Logger
}

var _ ports.OwnerResolver = (*JWTResolver)(nil)

// NewJWTResolver creates a resolver. audience is checked only when set.
func NewJWTResolver(secret, audience string, logger *slog.Logger) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTResolver{
		secret:   []byte(secret),
		audience: audience,
		logger:   logger,
	}, nil
}

// ResolveOwner verifies token and returns its sub claim.
func (r *JWTResolver) ResolveOwner(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if r.audience != "" {
		opts = append(opts, jwt.WithAudience(r.audience))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		r.logger.DebugContext(ctx, "token rejected", slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}

	return claims.Subject, nil
}

// Mint signs a token for subject. Used for local development.
func Mint(secret, subject, audience string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret cannot be empty")
	}
	if subject == "" {
		return "", errors.New("subject cannot be empty")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ExtractBearer returns the token from the Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}

	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

type credentialKey struct{}

// WithCredentialPresented marks ctx as carrying a request that sent an
// Authorization header, whether or not it verified.
func WithCredentialPresented(ctx context.Context) context.Context {
	return context.WithValue(ctx, credentialKey{}, true)
}

// CredentialPresented reports whether the request sent an Authorization header.
func CredentialPresented(ctx context.Context) bool {
	presented, _ := ctx.Value(credentialKey{}).(bool)
	return presented
}

// Unauthenticated returns the auth_required error for a request with no
// resolved owner. A missing header and a rejected credential are reported
// differently.
func Unauthenticated(ctx context.Context) *domain.StagingError {
	if CredentialPresented(ctx) {
		return domain.ErrAuthRequired("Unauthorized")
	}
	return domain.ErrAuthRequired("No authorization header")
}
