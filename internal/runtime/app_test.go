package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/roomstage/internal/auth"
	"github.com/tjfontaine/roomstage/internal/config"
	"github.com/tjfontaine/roomstage/internal/storage/blob"
)

const testSecret = "test-signing-secret"

func testConfig(t *testing.T, providerURL string) *config.Config {
	t.Helper()
	t.Setenv("ROOMSTAGE_PROVIDER__API_KEY", "rw-test")
	t.Setenv("ROOMSTAGE_PROVIDER__BASE_URL", providerURL)
	t.Setenv("ROOMSTAGE_AUTH__JWT_SECRET", testSecret)
	t.Setenv("ROOMSTAGE_ASSETS__ALLOW_PRIVATE_HOSTS", "true")

	cfg, err := config.Load(t.TempDir() + "/missing.yaml")
	require.NoError(t, err)
	return cfg
}

// fakeProvider serves both the inference endpoint and the generated asset.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"apiKey":"rw-test"`)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[{"taskType":"imageInference","taskUUID":"t-1","imageURL":"%s/asset.webp"}]}`, srv.URL)
	})
	mux.HandleFunc("/asset.webp", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("RIFF....WEBPVP8 fake"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	all := append([]Option{WithConfig(cfg), WithLogger(logger)}, opts...)
	app, err := New(context.Background(), all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config required")
}

func TestApp_StageEndToEnd(t *testing.T) {
	provider := fakeProvider(t)
	cfg := testConfig(t, provider.URL+"/v1")

	assets := blob.NewMemoryStore("https://cdn.example.com")
	app := newTestApp(t, cfg, WithAssetStore(assets))
	h := app.Handler()

	token, err := auth.Mint(testSecret, "user-42", cfg.Auth.Audience, time.Minute)
	require.NoError(t, err)

	body := `{"originalImageUrl":"https://example.com/room.jpg","prompt":"Add plants","roomType":"living room","style":"modern"}`
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/generate-staged-image", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, strings.HasPrefix(res["stagedUrl"].(string), "https://cdn.example.com/user-42/"))
	assert.Equal(t, "Add plants", res["prompt"])
	assert.Equal(t, 1, assets.Len())

	id := res["id"].(string)
	get := httptest.NewRequest(http.MethodGet, "/v1/staging/"+id, nil)
	get.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestApp_ServesStagedURL(t *testing.T) {
	provider := fakeProvider(t)
	cfg := testConfig(t, provider.URL+"/v1")
	cfg.Server.PublicURL = "https://stage.example.com"
	app := newTestApp(t, cfg)
	h := app.Handler()

	token, err := auth.Mint(testSecret, "user-42", cfg.Auth.Audience, time.Minute)
	require.NoError(t, err)

	body := `{"originalImageUrl":"https://example.com/room.jpg","prompt":"Add plants","roomType":"bedroom","style":"scandinavian"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/staging", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		StagedURL string `json:"stagedUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	staged, err := url.Parse(res.StagedURL)
	require.NoError(t, err)
	assert.Equal(t, "stage.example.com", staged.Host)
	assert.True(t, strings.HasPrefix(staged.Path, "/assets/user-42/"), staged.Path)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, staged.Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF....WEBPVP8 fake", rec.Body.String())
}

func TestApp_RejectsMissingToken(t *testing.T) {
	provider := fakeProvider(t)
	app := newTestApp(t, testConfig(t, provider.URL+"/v1"))

	req := httptest.NewRequest(http.MethodPost, "/v1/staging", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "No authorization header")
}

func TestApp_RejectsInvalidToken(t *testing.T) {
	provider := fakeProvider(t)
	cfg := testConfig(t, provider.URL+"/v1")
	app := newTestApp(t, cfg)

	token, err := auth.Mint("some-other-secret", "user-42", cfg.Auth.Audience, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/staging", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Unauthorized"`)
}

func TestApp_MissingAPIKey(t *testing.T) {
	provider := fakeProvider(t)
	cfg := testConfig(t, provider.URL+"/v1")
	cfg.Provider.APIKey = ""
	app := newTestApp(t, cfg)

	token, err := auth.Mint(testSecret, "user-42", cfg.Auth.Audience, time.Minute)
	require.NoError(t, err)

	body := `{"originalImageUrl":"https://example.com/room.jpg","prompt":"Add plants","roomType":"kitchen","style":"modern"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/staging", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Runware API key not configured")
}

func TestApp_HealthAndMetrics(t *testing.T) {
	provider := fakeProvider(t)
	app := newTestApp(t, testConfig(t, provider.URL+"/v1"))
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestApp_SQLiteStorage(t *testing.T) {
	provider := fakeProvider(t)
	cfg := testConfig(t, provider.URL+"/v1")
	cfg.Storage.Type = "sqlite"
	cfg.Storage.Database.DSN = "file:" + t.Name() + "?mode=memory&cache=shared"

	app := newTestApp(t, cfg)
	h := app.Handler()

	token, err := auth.Mint(testSecret, "user-7", cfg.Auth.Audience, time.Minute)
	require.NoError(t, err)

	body := `{"originalImageUrl":"https://example.com/room.jpg","prompt":"Add a rug","roomType":"office","style":"industrial"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/staging", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var staged map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &staged))
	id := staged["id"].(string)

	get := httptest.NewRequest(http.MethodGet, "/v1/staging/"+id, nil)
	get.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, id, stored["id"])
	assert.Equal(t, staged["stagedUrl"], stored["stagedUrl"])
	assert.Equal(t, "Add a rug", stored["prompt"])
	assert.Equal(t, "office", stored["roomType"])

	other, err := auth.Mint(testSecret, "user-8", cfg.Auth.Audience, time.Minute)
	require.NoError(t, err)
	get = httptest.NewRequest(http.MethodGet, "/v1/staging/"+id, nil)
	get.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_WaitBeforeStart(t *testing.T) {
	provider := fakeProvider(t)
	app := newTestApp(t, testConfig(t, provider.URL+"/v1"))

	err := app.Wait(context.Background())
	assert.Error(t, err)
}
