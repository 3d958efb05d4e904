package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/roomstage/internal/core/domain"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func TestJWTResolver_ResolveOwner(t *testing.T) {
	r, err := NewJWTResolver(testSecret, "authenticated", nil)
	require.NoError(t, err)

	valid, err := Mint(testSecret, "user-123", "authenticated", time.Hour)
	require.NoError(t, err)

	wrongSecret, err := Mint("another-secret", "user-123", "authenticated", time.Hour)
	require.NoError(t, err)

	wrongAudience, err := Mint(testSecret, "user-123", "anon", time.Hour)
	require.NoError(t, err)

	expired, err := Mint(testSecret, "user-123", "authenticated", -time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "user-123",
		Audience: jwt.ClaimStrings{"authenticated"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{"valid", valid, "user-123", nil},
		{"empty", "", "", ErrMissingToken},
		{"garbage", "not-a-jwt", "", ErrInvalidToken},
		{"wrong secret", wrongSecret, "", ErrInvalidToken},
		{"wrong audience", wrongAudience, "", ErrInvalidToken},
		{"expired", expired, "", ErrInvalidToken},
		{"no subject", noSubject, "", ErrInvalidToken},
		{"no expiry", noExpiry, "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveOwner(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJWTResolver_NoAudienceConfigured(t *testing.T) {
	r, err := NewJWTResolver(testSecret, "", nil)
	require.NoError(t, err)

	tok, err := Mint(testSecret, "user-9", "", time.Hour)
	require.NoError(t, err)

	got, err := r.ResolveOwner(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-9", got)
}

func TestJWTResolver_RejectsNoneAlgorithm(t *testing.T) {
	r, err := NewJWTResolver(testSecret, "", nil)
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = r.ResolveOwner(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTResolver_EmptySecret(t *testing.T) {
	_, err := NewJWTResolver("", "", nil)
	assert.Error(t, err)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"bearer", "Bearer abc.def", "abc.def", nil},
		{"lowercase scheme", "bearer abc", "abc", nil},
		{"missing", "", "", ErrMissingToken},
		{"basic", "Basic dXNlcjpwYXNz", "", ErrInvalidToken},
		{"no token", "Bearer ", "", ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearer(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnauthenticated(t *testing.T) {
	ctx := context.Background()
	assert.False(t, CredentialPresented(ctx))

	err := Unauthenticated(ctx)
	assert.Equal(t, domain.KindAuthRequired, err.Kind)
	assert.Equal(t, "No authorization header", err.Message)

	ctx = WithCredentialPresented(ctx)
	assert.True(t, CredentialPresented(ctx))

	err = Unauthenticated(ctx)
	assert.Equal(t, domain.KindAuthRequired, err.Kind)
	assert.Equal(t, "Unauthorized", err.Message)
}
