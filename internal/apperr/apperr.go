// server/internal/apperr/apperr.go
// Package apperr defines the failure kinds surfaced by the capture and sync layers.
// Every kind is reported to the caller; nothing here retries.
package apperr

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrMissingGeoReading   = errors.New("missing geo reading")
	ErrBlobUpload          = errors.New("blob upload failed")
	ErrMetadataWrite       = errors.New("metadata write failed")
	ErrLocalWrite          = errors.New("local write failed")
	ErrFetch               = errors.New("fetch failed")
	ErrSubscription        = errors.New("subscription failed")
	ErrRouting             = errors.New("routing failed")
)

var kinds = []error{
	ErrLocationUnavailable,
	ErrMissingGeoReading,
	ErrBlobUpload,
	ErrMetadataWrite,
	ErrLocalWrite,
	ErrFetch,
	ErrSubscription,
	ErrRouting,
}

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Wrap tags cause with kind. errors.Is matches both the kind and anything in the cause chain.
func Wrap(kind, cause error, msg string) error {
	if cause != nil && msg != "" {
		cause = eris.Wrap(cause, msg)
	} else if cause == nil && msg != "" {
		cause = eris.New(msg)
	}
	return &kindError{kind: kind, cause: cause}
}

// New returns a bare error of the given kind with a message.
func New(kind error, msg string) error {
	return Wrap(kind, nil, msg)
}

// Kind returns the most specific known kind in err's chain, or nil.
// ErrRouting only wins when nothing more specific is present.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Label is a short, stable name for the kind of err, used for metrics and API payloads.
func Label(err error) string {
	switch Kind(err) {
	case ErrLocationUnavailable:
		return "location_unavailable"
	case ErrMissingGeoReading:
		return "missing_geo_reading"
	case ErrBlobUpload:
		return "blob_upload"
	case ErrMetadataWrite:
		return "metadata_write"
	case ErrLocalWrite:
		return "local_write"
	case ErrFetch:
		return "fetch"
	case ErrSubscription:
		return "subscription"
	case ErrRouting:
		return "routing"
	}
	return "unknown"
}
