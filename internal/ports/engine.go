// Package ports define interfaces for dependency inversion.
// These interfaces allow the core business logic to remain independent of external frameworks.
package ports

import (
	"time"

	"github.com/nekomusic/playd/internal/domain"
)

// Engine is the boundary around the decode/render pipeline.
// The orchestrator drives it as a black-box capability: open a source, start
// and stop rendering, adjust volume and speed, seek. State reports (ready,
// natural completion, failure) flow back over the Events channel rather than
// callbacks, so a single consumer goroutine preserves the single-writer
// invariant on orchestrator state.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// Open prepares a new source for playback, replacing any current one.
	// The source is a local file path or an HTTP(S) URL. Open stops and
	// discards the previous source first. A successful Open is followed by
	// an EngineReady event carrying the source duration (0 if unknown).
	//
	// Returns an error if the source cannot be opened or decoded.
	Open(source string) error

	// Play starts or resumes rendering of the prepared source.
	Play() error

	// Pause suspends rendering, keeping the position.
	Pause() error

	// Stop discards the current source and releases its resources.
	// Stopping an idle engine is a no-op.
	Stop() error

	// Seek moves the playback position within the current source.
	Seek(position time.Duration) error

	// Position returns the current playback position.
	Position() time.Duration

	// Duration returns the total duration of the current source (0 if unknown).
	Duration() time.Duration

	// Status returns the engine-level playback status.
	Status() domain.PlaybackStatus

	// SetVolume sets the output gain, 0.0 (silent) to 1.0 (full).
	// Used directly by the orchestrator's fade ramps.
	SetVolume(volume float64) error

	// Volume returns the current output gain.
	Volume() float64

	// SetSpeed sets the playback rate multiplier (1.0 = normal).
	SetSpeed(speed float64) error

	// Events returns the stream of engine state reports. The channel is
	// owned by the engine and closed only on Close. Consumers must drain
	// it promptly; implementations may drop reports if nobody listens.
	Events() <-chan domain.EngineEvent

	// Close tears down the output device and the event stream.
	// The daemon calls this once at process exit; the engine is otherwise
	// kept alive for the whole process lifetime.
	Close() error
}
