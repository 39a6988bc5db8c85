package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery signals a retrieval call with an empty query string.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrEmptyBatch signals an embedding batch with no texts.
	ErrEmptyBatch = errors.New("batch is empty")
	// ErrVectorDimMismatch signals an embedding vector of unexpected length.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a transient provider-side rate limit.
	ErrRateLimited = errors.New("rate limited by provider")
	// ErrProviderError signals a non-retryable provider failure.
	ErrProviderError = errors.New("provider error")
	// ErrQuotaExceeded signals the local rolling 24h request ceiling.
	// Never retried locally: freeing capacity may take up to a day.
	ErrQuotaExceeded = errors.New("daily quota exceeded")
)

// DimensionMismatchError wraps ErrVectorDimMismatch with the observed and expected lengths.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrVectorDimMismatch.Error(), e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(got, want int) error {
	return &DimensionMismatchError{Got: got, Want: want}
}
