// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the playd playback daemon.
package domain

import (
	"strconv"
	"time"
)

// Track represents a playable audio item from the streaming library.
// Identity is the integer ID; two tracks with the same ID are the same track.
type Track struct {
	// ID is the stable integer identity assigned by the backend
	ID int64

	// Title is the song title
	Title string

	// Artist is the performing artist name
	Artist string

	// Album is the album name
	Album string

	// Duration is the total length of the track (0 when unknown)
	Duration time.Duration

	// FileURL is the play source: a remote URL or a local file path
	FileURL string

	// CoverURL is the cover art reference (URL or path, may be empty)
	CoverURL string

	// UploaderID is the backend user who uploaded the track (0 when unknown)
	UploaderID int64

	// CreatedAt is when the track was created on the backend (zero when unknown)
	CreatedAt time.Time
}

// Equal reports whether two tracks share the same identity.
// Tracks compare by ID only; metadata fields are not part of identity.
func (t Track) Equal(other Track) bool {
	return t.ID == other.ID
}

// Valid reports whether the track carries a usable identity.
func (t Track) Valid() bool {
	return t.ID > 0
}

// QueueEntry is a Track embedded in the durable play queue.
// Entries are unique by track ID and carry a last-touched timestamp that
// marks the most recently played entry for restore-on-launch.
type QueueEntry struct {
	Track

	// TouchedAt is the last time this entry was played
	TouchedAt time.Time
}

// PlayMode is the policy governing automatic and manual track advance.
type PlayMode string

const (
	// ModeListLoop advances through the queue by ascending track ID,
	// wrapping from the largest ID back to the smallest.
	ModeListLoop PlayMode = "list"

	// ModeSingleLoop restarts the current track on every advance.
	ModeSingleLoop PlayMode = "single"

	// ModeShuffle picks a uniformly random queue entry excluding the current one.
	ModeShuffle PlayMode = "shuffle"
)

// ParsePlayMode maps a persisted mode string back to a PlayMode.
// Unknown values fall back to ModeListLoop.
func ParsePlayMode(s string) PlayMode {
	switch PlayMode(s) {
	case ModeSingleLoop:
		return ModeSingleLoop
	case ModeShuffle:
		return ModeShuffle
	default:
		return ModeListLoop
	}
}

// String returns the persisted representation of the play mode.
func (m PlayMode) String() string {
	return string(m)
}

// CacheKind identifies one of the three cached artifact kinds.
type CacheKind string

const (
	// KindAudio is the downloaded audio file for a track
	KindAudio CacheKind = "audio"

	// KindCover is the downloaded cover image for a track
	KindCover CacheKind = "cover"

	// KindLyrics is the lyrics text for a track
	KindLyrics CacheKind = "lyrics"
)

// String returns the metadata key prefix for the kind.
func (k CacheKind) String() string {
	return string(k)
}

// CacheEntry describes one cached artifact and its metadata record.
type CacheEntry struct {
	// TrackID is the track the artifact belongs to
	TrackID int64

	// Kind is the artifact kind
	Kind CacheKind

	// Path is the on-disk location of the artifact
	Path string

	// Size is the artifact size in bytes
	Size int64

	// Title is the declared title recorded at download time (audio only, may be empty)
	Title string

	// Ext is the container extension inferred from the transfer (audio only)
	Ext string

	// CachedAt is when the artifact was finalized
	CachedAt time.Time
}

// PrefetchSlot is the single-entry speculative cache for the next track.
// A zero slot is empty. The slot, when populated, always corresponds to the
// next track under the play mode that was current when it was filled; any
// new playback start invalidates it.
type PrefetchSlot struct {
	// Track is the speculatively resolved next track
	Track Track

	// SourceURL is the resolved play source (cached file preferred)
	SourceURL string

	// CoverURL is the resolved cover reference
	CoverURL string
}

// Valid reports whether the slot holds a usable prefetched track.
func (p PrefetchSlot) Valid() bool {
	return p.Track.Valid() && p.SourceURL != ""
}

// PlaybackStatus represents the engine-level playback state.
type PlaybackStatus int

const (
	// StatusStopped indicates no source is playing
	StatusStopped PlaybackStatus = iota

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates playback is paused
	StatusPaused
)

// String returns a human-readable representation of the playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// EngineEventKind discriminates the reports an engine adapter emits.
type EngineEventKind int

const (
	// EngineReady is reported once a source is prepared and its duration known
	EngineReady EngineEventKind = iota

	// EngineCompleted is reported when a source finishes playing naturally
	EngineCompleted

	// EngineFailed is reported when the engine hits a decode or source error
	EngineFailed
)

// EngineEvent is a state report from the engine adapter, delivered over a
// channel into the orchestrator's event loop.
type EngineEvent struct {
	// Kind is the report kind
	Kind EngineEventKind

	// Duration is the prepared source duration (EngineReady only, 0 if unknown)
	Duration time.Duration

	// Err is the failure cause (EngineFailed only)
	Err error
}

// PlayerSnapshot is a point-in-time copy of the orchestrator's state,
// safe to hand to session surfaces and inspection callers.
type PlayerSnapshot struct {
	// Track is the current track (nil when idle)
	Track *Track

	// SourceURL is the source the engine is playing from
	SourceURL string

	// CoverPath is the resolved cover reference (cached path or URL)
	CoverPath string

	// Playing reports whether audio is currently being rendered
	Playing bool

	// Position is the current playback position
	Position time.Duration

	// Duration is the current track duration (0 when unknown)
	Duration time.Duration

	// Mode is the current play mode
	Mode PlayMode

	// Speed is the playback speed multiplier (1.0 = normal)
	Speed float64

	// Favorite reports whether the current track is marked as a favorite
	Favorite bool

	// SleepRemaining is the time left on the sleep timer (0 when inactive)
	SleepRemaining time.Duration
}

// FormatTrackID renders a track ID the way metadata keys and file names use it.
func FormatTrackID(id int64) string {
	return strconv.FormatInt(id, 10)
}
