// Package ports defines the interfaces between the staging pipeline and its
// external collaborators.
package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/roomstage/internal/core/domain"
)

// InferenceClient submits a composed prompt and source image to the image
// provider and returns the provider's (transient) asset URL.
type InferenceClient interface {
	Infer(ctx context.Context, prompt, sourceImageURL string) (string, error)
}

// CredentialChecker is implemented by inference clients that can report,
// without a network call, whether a provider credential is configured.
type CredentialChecker interface {
	Configured() bool
}

// AssetFetcher downloads a generated asset.
type AssetFetcher interface {
	Fetch(ctx context.Context, assetURL string) (*domain.FetchedAsset, error)
}

// AssetStore durably persists asset bytes under an owner-scoped key.
// Implementations must refuse to overwrite an existing key.
type AssetStore interface {
	Store(ctx context.Context, ownerID string, data []byte) (*domain.StoredAsset, error)
}

// ResultRecorder writes one row per completed staging job and returns the
// identifier and creation time assigned by the persistence layer.
type ResultRecorder interface {
	Record(ctx context.Context, in domain.RecordInput) (id string, createdAt time.Time, err error)
}

// ResultStore is a ResultRecorder that can also read back an owner's row.
type ResultStore interface {
	ResultRecorder

	// GetResult returns the row with id owned by ownerID, or a not_found
	// StagingError.
	GetResult(ctx context.Context, ownerID, id string) (*domain.StagedImageRecord, error)

	// Close releases the underlying connection.
	Close() error
}

// OwnerResolver exchanges a bearer credential for an opaque owner identifier.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, token string) (string, error)
}
