// Package domain holds the staging data model and error taxonomy shared by
// every layer of the service.
package domain

import "time"

// StagingRequest is the caller-supplied input of one staging job.
// It is validated once and never mutated afterwards.
type StagingRequest struct {
	OriginalImageURL string   `json:"originalImageUrl" validate:"notblank"`
	Prompt           string   `json:"prompt" validate:"notblank"`
	RoomType         string   `json:"roomType" validate:"notblank"`
	Style            string   `json:"style" validate:"notblank"`
	ReferenceImages  []string `json:"referenceImages,omitempty" validate:"max=3"`
}

// HasReferenceImages reports whether any reference image was supplied.
func (r StagingRequest) HasReferenceImages() bool {
	return len(r.ReferenceImages) > 0
}

// Breakdown is the structured set of furnishing elements derived from the
// room type, style and free-text prompt.
type Breakdown struct {
	Furniture   []string `json:"furniture"`
	Decor       []string `json:"decor"`
	Lighting    []string `json:"lighting"`
	Colors      []string `json:"colors"`
	Materials   []string `json:"materials"`
	Accessories []string `json:"accessories"`

	// PromptEnhancement is internal only and never returned to callers.
	PromptEnhancement string `json:"-"`
}

// StagingResult is returned to the caller after a successful run.
type StagingResult struct {
	ID              string    `json:"id"`
	OriginalURL     string    `json:"originalUrl"`
	StagedURL       string    `json:"stagedUrl"`
	Prompt          string    `json:"prompt"`
	RoomType        string    `json:"roomType"`
	Style           string    `json:"style"`
	Timestamp       time.Time `json:"timestamp"`
	StagingElements Breakdown `json:"stagingElements"`
}

// FetchedAsset is the downloaded output of the provider.
type FetchedAsset struct {
	Data        []byte
	ContentType string

	// Width and Height are zero when the payload could not be sniffed.
	Width  int
	Height int
}

// StoredAsset identifies an object written to the durable asset store.
type StoredAsset struct {
	Key string
	URL string
}

// RecordInput is everything the result recorder persists for one job.
type RecordInput struct {
	OwnerID     string
	OriginalURL string
	StagedURL   string
	Prompt      string
	RoomType    string
	Style       string
	Breakdown   Breakdown
}

// StagedImageRecord is a persisted staging row.
type StagedImageRecord struct {
	ID          string
	OwnerID     string
	OriginalURL string
	StagedURL   string
	Prompt      string
	RoomType    string
	Style       string
	Furniture   []string
	Decor       []string
	Lighting    []string
	Colors      []string
	Materials   []string
	Accessories []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Result converts a persisted row into the caller-facing result.
func (r *StagedImageRecord) Result() *StagingResult {
	return &StagingResult{
		ID:          r.ID,
		OriginalURL: r.OriginalURL,
		StagedURL:   r.StagedURL,
		Prompt:      r.Prompt,
		RoomType:    r.RoomType,
		Style:       r.Style,
		Timestamp:   r.CreatedAt,
		StagingElements: Breakdown{
			Furniture:   nonNil(r.Furniture),
			Decor:       nonNil(r.Decor),
			Lighting:    nonNil(r.Lighting),
			Colors:      nonNil(r.Colors),
			Materials:   nonNil(r.Materials),
			Accessories: nonNil(r.Accessories),
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
