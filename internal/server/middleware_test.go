package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/roomstage/internal/auth"
)

// =============================================================================
// RequestIDMiddleware Tests
// =============================================================================

func TestRequestIDMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	RequestIDMiddleware(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_UniqueIDs(t *testing.T) {
	wrapped := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec1, httptest.NewRequest("GET", "/", nil))
	rec2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec2, httptest.NewRequest("GET", "/", nil))

	assert.NotEqual(t, rec1.Header().Get("X-Request-ID"), rec2.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_PropagatesValidID(t *testing.T) {
	const incoming = "0b5d3c0e-8a0f-4d8e-9a57-2f5b8c8b2a11"
	wrapped := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get("X-Request-ID"))
}

func TestGetRequestID_NotSet(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

// =============================================================================
// Timeout and body limit Tests
// =============================================================================

func TestTimeoutMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		assert.True(t, ok, "expected context to have deadline")
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	TimeoutMiddleware(30*time.Second)(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeoutMiddleware_ContextCancelled(t *testing.T) {
	cancelled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			cancelled = true
		case <-time.After(500 * time.Millisecond):
		}
	})

	TimeoutMiddleware(10*time.Millisecond)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.True(t, cancelled, "expected context to be cancelled due to timeout")
}

func TestTimeoutMiddleware_Disabled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		assert.False(t, ok)
	})
	TimeoutMiddleware(0)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestMaxBodyMiddleware(t *testing.T) {
	var readErr error
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	})

	req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 32)))
	MaxBodyMiddleware(8)(handler).ServeHTTP(httptest.NewRecorder(), req)

	var mbe *http.MaxBytesError
	assert.True(t, errors.As(readErr, &mbe), "got %v", readErr)
}

// =============================================================================
// CORS Tests
// =============================================================================

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest("OPTIONS", "/v1/staging", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")

	rec := httptest.NewRecorder()
	CORSMiddleware(handler).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "authorization")
}

func TestCORSMiddleware_PreflightRejectsUnknownHeader(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/v1/staging", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "x-not-allowed")

	rec := httptest.NewRecorder()
	CORSMiddleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_PassThrough(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Origin", "https://app.example.com")

	rec := httptest.NewRecorder()
	CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RequestIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
}

// =============================================================================
// OwnerMiddleware Tests
// =============================================================================

type stubResolver struct {
	owners map[string]string
	calls  int
}

func (s *stubResolver) ResolveOwner(ctx context.Context, token string) (string, error) {
	s.calls++
	if owner, ok := s.owners[token]; ok {
		return owner, nil
	}
	return "", errors.New("invalid token")
}

func TestOwnerMiddleware(t *testing.T) {
	resolver := &stubResolver{owners: map[string]string{"good": "user-1"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name          string
		header        string
		wantOwner     string
		wantCalls     int
		wantPresented bool
	}{
		{"valid token", "Bearer good", "user-1", 1, true},
		{"invalid token", "Bearer bad", "", 1, true},
		{"missing header", "", "", 0, false},
		{"wrong scheme", "Basic good", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver.calls = 0
			var got string
			var presented bool
			reached := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				got = GetOwner(r.Context())
				presented = auth.CredentialPresented(r.Context())
			})

			req := httptest.NewRequest("POST", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			OwnerMiddleware(resolver, logger)(handler).ServeHTTP(httptest.NewRecorder(), req)

			assert.True(t, reached, "requests are never rejected by the middleware")
			assert.Equal(t, tt.wantOwner, got)
			assert.Equal(t, tt.wantCalls, resolver.calls)
			assert.Equal(t, tt.wantPresented, presented)
		})
	}
}

func TestOwnerMiddleware_NilResolver(t *testing.T) {
	var got string
	var presented bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetOwner(r.Context())
		presented = auth.CredentialPresented(r.Context())
	})

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	OwnerMiddleware(nil, slog.Default())(handler).ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, got)
	assert.True(t, presented)
}

// =============================================================================
// LoggingMiddleware Tests
// =============================================================================

func newBufferedLogger(level slog.Level) (*slog.Logger, *strings.Builder) {
	var buf strings.Builder
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func TestLoggingMiddleware(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelDebug)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	rec := httptest.NewRecorder()
	RequestIDMiddleware(LoggingMiddleware(logger)(testHandler)).ServeHTTP(rec, httptest.NewRequest("GET", "/test-path", nil))

	output := buf.String()
	assert.Contains(t, output, "request started")
	assert.Contains(t, output, "request completed")
	assert.Contains(t, output, "/test-path")
	assert.Contains(t, output, "bytes=2")
	assert.Contains(t, output, "request_id="+rec.Header().Get("X-Request-ID"))
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusBadRequest, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			logger, buf := newBufferedLogger(slog.LevelInfo)
			LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

			assert.Contains(t, buf.String(), tt.level)
		})
	}
}

func TestAddLogField(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)

	LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "custom_field", "custom_value")
		AddLogField(r.Context(), "empty_field", "")
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	output := buf.String()
	assert.Contains(t, output, "custom_field=custom_value")
	assert.NotContains(t, output, "empty_field")
}

func TestAddLogField_NoContext(t *testing.T) {
	AddLogField(context.Background(), "key", "value")
}

func TestAddError(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)

	LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddError(r.Context(), errors.New("test error message"))
		w.WriteHeader(http.StatusInternalServerError)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Contains(t, buf.String(), "test error message")
}

func TestAddError_Nil(t *testing.T) {
	AddError(context.Background(), nil)
}

// =============================================================================
// Server Tests
// =============================================================================

func TestServer_ChainResolvesOwner(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Options{
		RequestTimeout: time.Second,
		MaxBodyBytes:   1024,
		Resolver:       &stubResolver{owners: map[string]string{"tok": "user-7"}},
	}, logger)

	s.Router.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, GetOwner(r.Context()))
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s := New(Options{}, slog.Default())
	assert.NoError(t, s.Shutdown(context.Background()))
}
