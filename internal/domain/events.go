// Package domain defines events for the event-driven architecture.
// Events decouple the orchestrator from session surfaces and logging.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventTrackChanged   EventType = "track.changed"
	EventTrackStarted   EventType = "playback.started"
	EventTrackPaused    EventType = "playback.paused"
	EventTrackCompleted EventType = "track.completed"
	EventProgress       EventType = "playback.progress"
	EventSeeked         EventType = "playback.seeked"
	EventPlaybackError  EventType = "playback.error"

	// Policy events
	EventPlayModeChanged EventType = "mode.changed"
	EventSpeedChanged    EventType = "speed.changed"
	EventFavoriteToggled EventType = "favorite.toggled"

	// Sleep timer events
	EventSleepTimerSet   EventType = "sleeptimer.set"
	EventSleepTimerTick  EventType = "sleeptimer.tick"
	EventSleepTimerFired EventType = "sleeptimer.fired"

	// Cache events
	EventCacheStored EventType = "cache.stored"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackChangedEvent is published when a new track becomes current.
type TrackChangedEvent struct {
	baseEvent
	Track     Track
	SourceURL string
	CoverPath string
}

// Type returns the event type.
func (e TrackChangedEvent) Type() EventType {
	return EventTrackChanged
}

// NewTrackChangedEvent creates a new TrackChangedEvent.
func NewTrackChangedEvent(track Track, sourceURL, coverPath string) TrackChangedEvent {
	return TrackChangedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		SourceURL: sourceURL,
		CoverPath: coverPath,
	}
}

// TrackStartedEvent is published when audible playback starts or resumes.
type TrackStartedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackStartedEvent) Type() EventType {
	return EventTrackStarted
}

// NewTrackStartedEvent creates a new TrackStartedEvent.
func NewTrackStartedEvent(track Track) TrackStartedEvent {
	return TrackStartedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// TrackPausedEvent is published when playback is paused.
type TrackPausedEvent struct {
	baseEvent
	Track    Track
	Position time.Duration
}

// Type returns the event type.
func (e TrackPausedEvent) Type() EventType {
	return EventTrackPaused
}

// NewTrackPausedEvent creates a new TrackPausedEvent.
func NewTrackPausedEvent(track Track, position time.Duration) TrackPausedEvent {
	return TrackPausedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Position:  position,
	}
}

// TrackCompletedEvent is published when a track finishes playing naturally.
type TrackCompletedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType {
	return EventTrackCompleted
}

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(track Track) TrackCompletedEvent {
	return TrackCompletedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// ProgressEvent is published periodically during playback.
type ProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e ProgressEvent) Type() EventType {
	return EventProgress
}

// NewProgressEvent creates a new ProgressEvent.
func NewProgressEvent(position, duration time.Duration) ProgressEvent {
	return ProgressEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// SeekedEvent is published immediately after an explicit seek.
type SeekedEvent struct {
	baseEvent
	Position time.Duration
}

// Type returns the event type.
func (e SeekedEvent) Type() EventType {
	return EventSeeked
}

// NewSeekedEvent creates a new SeekedEvent.
func NewSeekedEvent(position time.Duration) SeekedEvent {
	return SeekedEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
	}
}

// PlaybackErrorEvent is published when the engine reports a playback error.
type PlaybackErrorEvent struct {
	baseEvent
	Track Track
	Err   error
	Retry bool // true when an automatic retry will follow
}

// Type returns the event type.
func (e PlaybackErrorEvent) Type() EventType {
	return EventPlaybackError
}

// NewPlaybackErrorEvent creates a new PlaybackErrorEvent.
func NewPlaybackErrorEvent(track Track, err error, retry bool) PlaybackErrorEvent {
	return PlaybackErrorEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Err:       err,
		Retry:     retry,
	}
}

// PlayModeChangedEvent is published when the advance policy changes.
type PlayModeChangedEvent struct {
	baseEvent
	Mode PlayMode
}

// Type returns the event type.
func (e PlayModeChangedEvent) Type() EventType {
	return EventPlayModeChanged
}

// NewPlayModeChangedEvent creates a new PlayModeChangedEvent.
func NewPlayModeChangedEvent(mode PlayMode) PlayModeChangedEvent {
	return PlayModeChangedEvent{
		baseEvent: newBaseEvent(),
		Mode:      mode,
	}
}

// SpeedChangedEvent is published when the playback speed changes.
type SpeedChangedEvent struct {
	baseEvent
	Speed float64
}

// Type returns the event type.
func (e SpeedChangedEvent) Type() EventType {
	return EventSpeedChanged
}

// NewSpeedChangedEvent creates a new SpeedChangedEvent.
func NewSpeedChangedEvent(speed float64) SpeedChangedEvent {
	return SpeedChangedEvent{
		baseEvent: newBaseEvent(),
		Speed:     speed,
	}
}

// FavoriteToggledEvent is published when the current track's favorite flag flips.
type FavoriteToggledEvent struct {
	baseEvent
	TrackID  int64
	Favorite bool
}

// Type returns the event type.
func (e FavoriteToggledEvent) Type() EventType {
	return EventFavoriteToggled
}

// NewFavoriteToggledEvent creates a new FavoriteToggledEvent.
func NewFavoriteToggledEvent(trackID int64, favorite bool) FavoriteToggledEvent {
	return FavoriteToggledEvent{
		baseEvent: newBaseEvent(),
		TrackID:   trackID,
		Favorite:  favorite,
	}
}

// SleepTimerSetEvent is published when a sleep timer is scheduled or cleared.
type SleepTimerSetEvent struct {
	baseEvent
	End time.Time // zero when the timer was cleared
}

// Type returns the event type.
func (e SleepTimerSetEvent) Type() EventType {
	return EventSleepTimerSet
}

// NewSleepTimerSetEvent creates a new SleepTimerSetEvent.
func NewSleepTimerSetEvent(end time.Time) SleepTimerSetEvent {
	return SleepTimerSetEvent{
		baseEvent: newBaseEvent(),
		End:       end,
	}
}

// SleepTimerTickEvent is published once per second while a sleep timer runs.
type SleepTimerTickEvent struct {
	baseEvent
	Remaining time.Duration
}

// Type returns the event type.
func (e SleepTimerTickEvent) Type() EventType {
	return EventSleepTimerTick
}

// NewSleepTimerTickEvent creates a new SleepTimerTickEvent.
func NewSleepTimerTickEvent(remaining time.Duration) SleepTimerTickEvent {
	return SleepTimerTickEvent{
		baseEvent: newBaseEvent(),
		Remaining: remaining,
	}
}

// SleepTimerFiredEvent is published when the sleep timer pauses playback.
type SleepTimerFiredEvent struct {
	baseEvent
}

// Type returns the event type.
func (e SleepTimerFiredEvent) Type() EventType {
	return EventSleepTimerFired
}

// NewSleepTimerFiredEvent creates a new SleepTimerFiredEvent.
func NewSleepTimerFiredEvent() SleepTimerFiredEvent {
	return SleepTimerFiredEvent{baseEvent: newBaseEvent()}
}

// CacheStoredEvent is published when a background cache write finalizes.
type CacheStoredEvent struct {
	baseEvent
	TrackID int64
	Kind    CacheKind
	Size    int64
}

// Type returns the event type.
func (e CacheStoredEvent) Type() EventType {
	return EventCacheStored
}

// NewCacheStoredEvent creates a new CacheStoredEvent.
func NewCacheStoredEvent(trackID int64, kind CacheKind, size int64) CacheStoredEvent {
	return CacheStoredEvent{
		baseEvent: newBaseEvent(),
		TrackID:   trackID,
		Kind:      kind,
		Size:      size,
	}
}
