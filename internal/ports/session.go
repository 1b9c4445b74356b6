// Package ports define the session-surface boundary.
// The session publisher mirrors playback state onto the OS media session and
// feeds transport commands back into the orchestrator.
package ports

import (
	"time"

	"github.com/nekomusic/playd/internal/domain"
)

// SessionPublisher consumes orchestrator state transitions and renders them
// on an OS-level media surface (media session plus persistent notification).
//
// Every method is fire-and-forget from the orchestrator's point of view:
// publish failures are logged inside the adapter and never propagate into
// the playback path.
type SessionPublisher interface {
	// PublishTrack announces the current track's metadata.
	// coverPath is a local file path when the cover is cached, else a URL.
	PublishTrack(track domain.Track, coverPath string)

	// PublishPlayback announces the transport state after a completed
	// play/pause/seek. Only the most recently completed call needs to be
	// visible; intermediate states may be skipped.
	PublishPlayback(playing bool, position, duration time.Duration)

	// PublishFavorite announces the current track's favorite flag,
	// backing the surface's custom favorite-toggle action.
	PublishFavorite(favorite bool)

	// PublishSleepTimer announces the remaining sleep-timer time
	// (0 when the timer is inactive).
	PublishSleepTimer(remaining time.Duration)

	// Close releases the session surface.
	Close() error
}

// TransportController is the command ingress the session surface calls back
// into. All call sites (media session handlers, notification buttons) resolve
// to the same singleton orchestrator instance.
type TransportController interface {
	// TogglePlayPause flips between playing and paused with a fade ramp.
	TogglePlayPause() error

	// Next advances to the next track under the current play mode.
	Next() error

	// Previous steps back through the play history, falling back to
	// queue-store navigation.
	Previous() error

	// SeekTo moves the playback position.
	SeekTo(position time.Duration) error

	// ToggleFavorite flips the current track's favorite flag.
	ToggleFavorite() error

	// Snapshot returns a copy of the current playback state.
	Snapshot() domain.PlayerSnapshot
}
