package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

var (
	// ErrMissingKey indicates no bearer secret was supplied with the request
	ErrMissingKey = errors.New("no API key provided")

	// ErrKeyNotFound indicates the requested key does not exist
	ErrKeyNotFound = errors.New("key not found")

	// ErrUserNotFound indicates the user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidEnvironment indicates an unknown environment value was provided
	ErrInvalidEnvironment = errors.New("invalid environment")

	// ErrInvalidRepoURL indicates the GitHub repository URL could not be parsed
	ErrInvalidRepoURL = errors.New("invalid GitHub repository URL format")
)

// RateLimitError is returned by the key guard when a key's usage ceiling has
// been crossed. It carries the post-increment usage so callers can report
// headroom; the refused request itself still counts against usage.
type RateLimitError struct {
	Usage int
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: usage %d of %d", e.Usage, e.Limit)
}

// Remaining is always zero once the limit is crossed
func (e *RateLimitError) Remaining() int {
	return 0
}

// UpstreamError wraps a failure from an external API (GitHub, LLM provider).
// Status is the upstream HTTP status when one was received, zero otherwise.
type UpstreamError struct {
	Service string
	Status  int
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
