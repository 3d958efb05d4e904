// Package asset downloads generated images from the provider's transient
// hosting.
package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/image/webp"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
	"github.com/tjfontaine/roomstage/internal/pkg/safehttp"
)

// DefaultMaxBytes caps a single download.
const DefaultMaxBytes int64 = 25 << 20

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithMaxBytes overrides the download size cap. Non-positive values keep
// the default.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// Fetcher is a ports.AssetFetcher over plain HTTP GET.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

var _ ports.AssetFetcher = (*Fetcher)(nil)

// NewFetcher returns a Fetcher that refuses private addresses unless a
// different client is supplied.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Transport: safehttp.SafeTransport},
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads assetURL. Any transport error, non-2xx status, or body
// larger than the cap is reported as asset_download_failed.
func (f *Fetcher) Fetch(ctx context.Context, assetURL string) (*domain.FetchedAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, domain.ErrAssetDownload(fmt.Errorf("invalid asset url: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.ErrAssetDownload(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.ErrAssetDownload(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if resp.ContentLength > f.maxBytes {
		return nil, domain.ErrAssetDownload(fmt.Errorf("asset is %d bytes, limit is %d", resp.ContentLength, f.maxBytes))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, domain.ErrAssetDownload(fmt.Errorf("failed to read body: %w", err))
	}
	if int64(len(data)) > f.maxBytes {
		return nil, domain.ErrAssetDownload(fmt.Errorf("asset exceeds %d bytes", f.maxBytes))
	}

	asset := &domain.FetchedAsset{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if cfg, err := webp.DecodeConfig(bytes.NewReader(data)); err == nil {
		asset.Width = cfg.Width
		asset.Height = cfg.Height
	} else {
		f.logger.DebugContext(ctx, "could not read webp dimensions",
			slog.String("content_type", asset.ContentType),
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()),
		)
	}

	return asset, nil
}
