// Package runware is a client for the Runware image inference API.
package runware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
)

const (
	defaultBaseURL = "https://api.runware.ai/v1"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// InferenceParams are the fixed per-process inference settings. Callers of
// Infer cannot change them.
type InferenceParams struct {
	Model         string
	Width         int
	Height        int
	NumberResults int
	OutputFormat  string
	CFGScale      float64
	Scheduler     string
	Strength      float64
	Steps         int
}

// DefaultInferenceParams returns the settings used for room staging.
func DefaultInferenceParams() InferenceParams {
	return InferenceParams{
		Model:         "runware:100@1",
		Width:         1024,
		Height:        1024,
		NumberResults: 1,
		OutputFormat:  "WEBP",
		CFGScale:      7,
		Scheduler:     "FlowMatchEulerDiscreteScheduler",
		Strength:      0.7,
		Steps:         20,
	}
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithInferenceParams overrides the default inference settings.
func WithInferenceParams(p InferenceParams) ClientOption {
	return func(c *Client) {
		c.params = p
	}
}

// Client is an HTTP client for the Runware API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	params     InferenceParams
}

var (
	_ ports.InferenceClient   = (*Client)(nil)
	_ ports.CredentialChecker = (*Client)(nil)
)

// NewClient creates a new Runware API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		params:     DefaultInferenceParams(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// BuildRequest assembles the ordered batch for one inference: the
// authentication directive followed by a single image-inference directive
// with a fresh task UUID.
func (c *Client) BuildRequest(prompt, sourceImageURL string) Request {
	return Request{
		AuthenticationTask{APIKey: c.apiKey},
		ImageInferenceTask{
			TaskUUID:       uuid.New().String(),
			PositivePrompt: prompt,
			InputImage:     sourceImageURL,
			Width:          c.params.Width,
			Height:         c.params.Height,
			Model:          c.params.Model,
			NumberResults:  c.params.NumberResults,
			OutputFormat:   c.params.OutputFormat,
			CFGScale:       c.params.CFGScale,
			Scheduler:      c.params.Scheduler,
			Strength:       c.params.Strength,
			Steps:          c.params.Steps,
		},
	}
}

// Infer sends one authenticated inference request and returns the URL of
// the generated image.
func (c *Client) Infer(ctx context.Context, prompt, sourceImageURL string) (string, error) {
	if c.apiKey == "" {
		return "", domain.ErrConfiguration("Runware API key not configured")
	}

	body, err := json.Marshal(c.BuildRequest(prompt, sourceImageURL))
	if err != nil {
		return "", domain.ErrProviderUnavailable(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", domain.ErrProviderUnavailable(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.ErrProviderUnavailable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", domain.ErrProviderUnavailable(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if parsed, perr := ParseResponse(respBody); perr == nil && parsed.ErrorMessage() != "" {
			msg = parsed.ErrorMessage()
		}
		return "", domain.ErrProviderRejected(fmt.Sprintf("API error (status %d): %s", resp.StatusCode, msg))
	}

	parsed, err := ParseResponse(respBody)
	if err != nil {
		return "", domain.ErrProviderMalformed(fmt.Sprintf("failed to unmarshal response: %v", err))
	}
	if msg := parsed.ErrorMessage(); msg != "" {
		return "", domain.ErrProviderRejected(msg)
	}

	result, ok := parsed.Data.ImageInference()
	if !ok {
		return "", domain.ErrProviderMalformed("response contains no imageInference result")
	}
	if result.ImageURL == "" {
		return "", domain.ErrProviderMalformed("imageInference result has no imageURL")
	}

	return result.ImageURL, nil
}
