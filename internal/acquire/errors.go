// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Errors returned by the acquisition pipeline.
var (
	// ErrNotFound indicates the resolver has no record for the DOI.
	ErrNotFound = errors.New("no record for identifier")

	// ErrNoOpenAccess indicates the record exists but no open-access URL is known.
	ErrNoOpenAccess = errors.New("no open-access location")

	// ErrLookupFailed indicates no usable identifier could be determined for a row.
	ErrLookupFailed = errors.New("identifier lookup failed")

	// ErrNoURL is returned by the fetcher for an absent candidate URL.
	ErrNoURL = errors.New("no candidate URL")

	// ErrArtifactMissing indicates there is no file at the artifact path.
	ErrArtifactMissing = errors.New("artifact does not exist")

	// ErrInterrupted indicates the batch was cancelled by the operator.
	ErrInterrupted = errors.New("interrupted by user")

	// ErrInvalidRecord indicates a row could not be mapped to a paper id.
	ErrInvalidRecord = errors.New("invalid record")
)

// TransportError is a non-2xx response or a network failure for one URL.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CorruptArtifactError reports a file that failed structural validation.
// The file has already been removed when this error is returned.
type CorruptArtifactError struct {
	Path string
	Err  error

	// Removed is set when the validator deleted the file at Path.
	Removed bool
}

func (e *CorruptArtifactError) Error() string {
	return fmt.Sprintf("corrupt artifact %s: %v", e.Path, e.Err)
}

func (e *CorruptArtifactError) Unwrap() error {
	return e.Err
}

// Kind maps an error onto the closed set of record failure kinds.
// Errors that match nothing more specific are treated as transport failures.
func Kind(err error) types.FailureKind {
	var (
		transportErr *TransportError
		corruptErr   *CorruptArtifactError
	)
	switch {
	case err == nil:
		return types.FailureNone
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return types.FailureInterrupted
	case errors.Is(err, ErrInvalidRecord):
		return types.FailureInvalidRecord
	case errors.Is(err, ErrLookupFailed):
		return types.FailureLookupFailed
	case errors.Is(err, ErrNotFound):
		return types.FailureNotFound
	case errors.Is(err, ErrNoOpenAccess):
		return types.FailureNoOpenAccess
	case errors.As(err, &corruptErr):
		return types.FailureCorrupt
	case errors.As(err, &transportErr):
		return types.FailureTransport
	default:
		return types.FailureTransport
	}
}
