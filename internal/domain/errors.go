package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("upload job not found")

	// ErrProductNotFound is returned when a product cannot be found in the store
	ErrProductNotFound = errors.New("product not found")

	// ErrDestinationNotFound is returned when a destination cannot be found in the store
	ErrDestinationNotFound = errors.New("destination not found")

	// ErrJobNotClaimable is returned when a job is no longer PENDING at claim time
	ErrJobNotClaimable = errors.New("job is not in PENDING status")

	// ErrJobCancelled is returned when a dispatched job turns out to be cancelled
	ErrJobCancelled = errors.New("job is cancelled")
)

// ConfigError indicates the destination is missing credentials or a base
// address. Fatal for the attempt; still counted against the retry ceiling.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "destination config error: " + e.Reason
}

// UpstreamError indicates the destination API rejected the request or
// returned a response lacking a listing identifier.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("destination API error (%d): %s", e.StatusCode, e.Body)
}

// RetryableError wraps a processing failure that should be re-dispatched
// after the given backoff delay.
type RetryableError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, delay time.Duration) error {
	return &RetryableError{Err: err, Delay: delay}
}
