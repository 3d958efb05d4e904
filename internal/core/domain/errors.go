package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the stage-level failure category of a staging request.
type Kind string

const (
	// KindAuthRequired indicates no caller identity was established.
	KindAuthRequired Kind = "auth_required"

	// KindInvalidRequest indicates a missing or malformed request field.
	KindInvalidRequest Kind = "invalid_request"

	// KindConfiguration indicates the process lacks a required setting,
	// such as the provider credential.
	KindConfiguration Kind = "configuration_error"

	// KindProviderUnavailable indicates the provider call could not complete.
	KindProviderUnavailable Kind = "provider_unavailable"

	// KindProviderRejected indicates a non-success status or an explicit
	// error payload from the provider.
	KindProviderRejected Kind = "provider_rejected"

	// KindProviderMalformedResponse indicates the provider response could not
	// be parsed or carried no usable inference result.
	KindProviderMalformedResponse Kind = "provider_malformed_response"

	// KindAssetDownloadFailed indicates the generated asset could not be fetched.
	KindAssetDownloadFailed Kind = "asset_download_failed"

	// KindStorageWriteFailed indicates the asset could not be written to the
	// durable store.
	KindStorageWriteFailed Kind = "storage_write_failed"

	// KindPersistenceFailed indicates the result row could not be written.
	KindPersistenceFailed Kind = "persistence_failed"

	// KindNotFound is used by the read-back endpoint only.
	KindNotFound Kind = "not_found"
)

// StagingError is the canonical error surfaced by the staging pipeline.
// Message is the stable human-readable summary returned as "error" on the
// wire; Details carries the underlying cause as text.
type StagingError struct {
	Kind    Kind
	Message string
	Details string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *StagingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StagingError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status code the frontdoor responds with.
func (e *StagingError) HTTPStatusCode() int {
	switch e.Kind {
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a StagingError of the given kind.
func NewError(kind Kind, message string) *StagingError {
	return &StagingError{Kind: kind, Message: message}
}

// WithDetails sets the detail text.
func (e *StagingError) WithDetails(details string) *StagingError {
	e.Details = details
	return e
}

// Wrap attaches a cause and, when no details were set, uses its text.
func (e *StagingError) Wrap(err error) *StagingError {
	e.Err = err
	if e.Details == "" && err != nil {
		e.Details = err.Error()
	}
	return e
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var se *StagingError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// AsStagingError returns err as a *StagingError, wrapping it into the
// fallback kind when it does not already carry one.
func AsStagingError(err error, fallback Kind, message string) *StagingError {
	var se *StagingError
	if errors.As(err, &se) {
		return se
	}
	return NewError(fallback, message).Wrap(err)
}

// Common error constructors

func ErrAuthRequired(message string) *StagingError {
	return NewError(KindAuthRequired, message)
}

func ErrInvalidRequest(message string) *StagingError {
	return NewError(KindInvalidRequest, message)
}

func ErrConfiguration(message string) *StagingError {
	return NewError(KindConfiguration, message)
}

func ErrProviderUnavailable(err error) *StagingError {
	return NewError(KindProviderUnavailable, "Image provider unavailable").Wrap(err)
}

func ErrProviderRejected(details string) *StagingError {
	return NewError(KindProviderRejected, "Image provider rejected the request").WithDetails(details)
}

func ErrProviderMalformed(details string) *StagingError {
	return NewError(KindProviderMalformedResponse, "No image generated").WithDetails(details)
}

func ErrAssetDownload(err error) *StagingError {
	return NewError(KindAssetDownloadFailed, "Failed to download generated image").Wrap(err)
}

func ErrStorageWrite(err error) *StagingError {
	return NewError(KindStorageWriteFailed, "Failed to store image").Wrap(err)
}

func ErrPersistence(err error) *StagingError {
	return NewError(KindPersistenceFailed, "Failed to save staged image").Wrap(err)
}

func ErrNotFound(message string) *StagingError {
	return NewError(KindNotFound, message)
}
