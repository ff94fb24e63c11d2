package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParameter is returned in open mode when no upstream URL is given.
	ErrMissingParameter = errors.New("missing url")

	// ErrInvalidTarget is returned in open mode when the upstream URL is not an
	// absolute http or https URL.
	ErrInvalidTarget = errors.New("invalid upstream url")

	// ErrNotMirrored is returned in mirror mode for paths outside the proxy
	// prefix.
	ErrNotMirrored = errors.New("path is not beneath the proxy prefix")

	// ErrUpstreamUnreachable matches upstream errors where no response was
	// received.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrUpstreamNonSuccess matches upstream errors where the response status
	// was not 2xx.
	ErrUpstreamNonSuccess = errors.New("upstream returned a non-success status")
)

// UpstreamError describes a failed upstream fetch. StatusCode is zero when no
// response was received.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("error fetching %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("error fetching %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches ErrUpstreamUnreachable or ErrUpstreamNonSuccess depending on
// whether a response was received.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamNonSuccess:
		return e.StatusCode != 0
	case ErrUpstreamUnreachable:
		return e.StatusCode == 0
	}
	return false
}
