package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPool indicates that no eligible participant is left to draw from.
	ErrEmptyPool = errors.New("ticket pool is empty")

	// ErrPoolNotBuilt indicates that no pool has been prepared successfully yet.
	ErrPoolNotBuilt = errors.New("ticket pool has not been built")

	// ErrPageLimit indicates that a paginated source kept returning cursors
	// past the configured page ceiling.
	ErrPageLimit = errors.New("page limit exceeded")
)

// AuthError is returned when bearer credentials cannot be obtained.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth error: op=%s, err=%v", e.Op, e.Err) }

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error { return e.Err }

// TransportError is returned when a request never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: op=%s, err=%v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when a response body does not have the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode error: op=%s, err=%v", e.Op, e.Err) }

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// UpstreamError is returned for a non-2xx response.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream error: op=%s, status=%d", e.Op, e.Status)
	if e.Body != "" {
		msg += ", body=" + e.Body
	}
	return msg
}

// Retryable reports whether the status is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
