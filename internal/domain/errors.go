// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrTrackNotFound is returned when a requested track cannot be found.
	ErrTrackNotFound = errors.New("track not found")

	// ErrNoTrackLoaded is returned when a playback operation needs a current track.
	ErrNoTrackLoaded = errors.New("no track loaded")

	// ErrQueueEmpty is returned when advance is attempted on an empty queue store.
	ErrQueueEmpty = errors.New("queue store is empty")

	// ErrNoCandidate is returned when the advance policy yields no track
	// (for example shuffle with only the current track in the store).
	ErrNoCandidate = errors.New("no candidate track")

	// ErrInvalidVolume is returned when the volume is out of valid range (0.0-1.0).
	ErrInvalidVolume = errors.New("invalid volume: must be between 0.0 and 1.0")

	// ErrInvalidSpeed is returned when the playback speed is out of range.
	ErrInvalidSpeed = errors.New("invalid playback speed")

	// ErrInvalidPosition is returned when seeking to an invalid position.
	ErrInvalidPosition = errors.New("invalid playback position")

	// ErrInvalidSource is returned when a play source is empty or unusable.
	ErrInvalidSource = errors.New("invalid play source")

	// ErrCacheDisabled is returned when a cache operation runs with the cache switched off.
	ErrCacheDisabled = errors.New("cache is disabled")

	// ErrCacheMiss is returned when no complete cached artifact exists.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheBusy is returned when an artifact is still being written.
	ErrCacheBusy = errors.New("cache entry is in flight")

	// ErrNotInitialized is returned when an operation is attempted on an uninitialized component.
	ErrNotInitialized = errors.New("component not initialized")

	// ErrAlreadyInitialized is returned when attempting to initialize an already initialized component.
	ErrAlreadyInitialized = errors.New("component already initialized")

	// ErrUnsupportedFormat is returned when an audio container format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// EngineError represents an error from the playback engine adapter.
// This wraps low-level decode/render errors with additional context.
type EngineError struct {
	Op      string // Operation that failed (e.g., "open", "play", "seek")
	Source  string // Play source (if applicable)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("engine %s failed for %q: %s", e.Op, e.Source, e.Message)
	}
	return fmt.Sprintf("engine %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError.
func NewEngineError(op, source, message string, err error) *EngineError {
	return &EngineError{
		Op:      op,
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// StoreError represents an error from a persistence adapter.
type StoreError struct {
	Op      string // Operation that failed (e.g., "add", "touch", "neighbor")
	Store   string // Store type (e.g., "queue", "settings")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s.%s failed: %s", e.Store, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, store, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Store:   store,
		Message: message,
		Err:     err,
	}
}

// CacheError represents a content cache failure. Cache failures are always
// recoverable by falling back to the network source; callers log and move on.
type CacheError struct {
	Op      string    // Operation that failed (e.g., "read", "write", "wipe")
	Kind    CacheKind // Artifact kind involved
	TrackID int64     // Track involved (0 for whole-cache operations)
	Err     error     // Underlying error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.TrackID != 0 {
		return fmt.Sprintf("cache %s %s/%d failed: %v", e.Op, e.Kind, e.TrackID, e.Err)
	}
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewCacheError creates a new CacheError.
func NewCacheError(op string, kind CacheKind, trackID int64, err error) *CacheError {
	return &CacheError{
		Op:      op,
		Kind:    kind,
		TrackID: trackID,
		Err:     err,
	}
}
