// Package blob provides write-once object stores for staged images.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/tjfontaine/roomstage/internal/core/ports"
)

// ContentType is the media type of every stored asset.
const ContentType = "image/webp"

// Config selects and configures a backend.
type Config struct {
	Type          string // s3, file, memory
	Bucket        string
	Region        string
	Endpoint      string
	PathStyle     bool
	PublicBaseURL string
	FileRoot      string
}

// New constructs the backend named by cfg.Type.
func New(ctx context.Context, cfg Config) (ports.AssetStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	case "file":
		return NewFileStore(cfg.FileRoot, cfg.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported asset store type: %s", cfg.Type)
	}
}

// NewKey returns a fresh "{ownerID}/{uuid}.webp" key.
func NewKey(ownerID string) string {
	return ownerID + "/" + uuid.New().String() + ".webp"
}

// publicURL joins base and key, escaping each key segment.
func publicURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segs, "/")
}
