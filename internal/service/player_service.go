package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

const (
	// fadeSteps and fadeDuration shape the volume ramp smoothing every
	// play/pause transition.
	fadeSteps    = 20
	fadeDuration = 300 * time.Millisecond

	// retryDelay is the wait before the single automatic retry of a failed
	// source.
	retryDelay = 500 * time.Millisecond

	// recentPlaysCap bounds the most-recent-plays list.
	recentPlaysCap = 20

	// progressInterval paces the position publications while playing.
	progressInterval = time.Second

	playModeKey      = "play_mode"
	playbackSpeedKey = "playback_speed"
	favoriteKeyPfx   = "favorite_"
)

// historyEntry is one step of the play-history stack. The resolved request
// URL and cover ride along so stepping back never needs a store lookup.
type historyEntry struct {
	track    domain.Track
	url      string
	coverURL string
}

// PlayerService is the playback orchestrator. It owns the current-track
// state, drives the engine, applies the track-advance policy, keeps the
// play-history stack and the single-slot prefetch cache, and coordinates the
// queue store, the content cache and the wake lock around every transition.
//
// There is exactly one instance per process; every ingress (session surface,
// CLI, startup restore) resolves to it.
//
// Thread-safety: public operations are mutex-guarded. Engine state reports
// arrive on a channel drained by a single internal goroutine.
type PlayerService struct {
	// Dependencies (injected)
	logger   *slog.Logger
	engine   ports.Engine
	queue    ports.QueueRepository
	settings ports.SettingsRepository
	cache    *CacheService
	source   ports.FileSource
	bus      ports.EventBus
	wakeLock ports.WakeLock

	// State
	current    *domain.Track
	requestURL string // the URL identity of the current play request
	decodeURL  string // the source actually handed to the engine
	coverPath  string
	playing    bool
	duration   time.Duration
	mode       domain.PlayMode
	speed      float64
	favorite   bool

	history  []historyEntry
	recent   []domain.Track
	prefetch domain.PrefetchSlot

	retriedURL string

	sleepEnd    time.Time
	sleepCancel chan struct{}

	// Concurrency control. swapMu serializes a source swap end to end
	// (state write through engine stop/open/play), so concurrent ingress
	// plays cannot interleave engine calls against stale state. Lock order
	// is always swapMu before mu.
	mu         sync.Mutex
	swapMu     sync.Mutex
	fadeCancel chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closed     bool
}

// NewPlayerService creates the orchestrator and starts its engine-event and
// progress loops. Persisted play mode and speed are loaded immediately.
func NewPlayerService(
	logger *slog.Logger,
	engine ports.Engine,
	queue ports.QueueRepository,
	settings ports.SettingsRepository,
	cache *CacheService,
	source ports.FileSource,
	bus ports.EventBus,
	wakeLock ports.WakeLock,
) *PlayerService {
	s := &PlayerService{
		logger:   logger,
		engine:   engine,
		queue:    queue,
		settings: settings,
		cache:    cache,
		source:   source,
		bus:      bus,
		wakeLock: wakeLock,
		mode:     domain.ModeListLoop,
		speed:    1.0,
		stopCh:   make(chan struct{}),
	}

	s.loadPolicy()

	s.wg.Add(2)
	go s.engineLoop()
	go s.progressLoop()

	logger.Debug("player service initialized", "mode", s.mode, "speed", s.speed)
	return s
}

// Play starts playback of a track. The URL is the request's identity: when
// it matches the current one the call degenerates to a resume, otherwise the
// whole current-track state is swapped.
//
// coverURL may be empty; the backend's canonical cover endpoint then serves
// as the fallback reference.
func (s *PlayerService) Play(track domain.Track, url, coverURL string) error {
	if !track.Valid() || url == "" {
		return domain.ErrInvalidSource
	}

	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrNotInitialized
	}

	if s.current != nil && s.requestURL == url {
		id := s.current.ID
		s.mu.Unlock()

		// An idempotent re-play still counts as playing the track.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.queue.Touch(id); err != nil {
				s.logger.Warn("failed to touch queue entry", "trackID", id, "error", err)
			}
		}()
		return s.Resume()
	}

	// A new play invalidates any speculative slot, current or stale.
	s.prefetch = domain.PrefetchSlot{}

	s.pushHistoryLocked(track, url, coverURL)

	s.current = &track
	s.requestURL = url
	s.duration = track.Duration
	s.favorite = s.loadFavorite(track.ID)
	s.retriedURL = ""

	s.decodeURL = s.resolveSourceLocked(track.ID, url)
	s.coverPath = s.resolveCoverLocked(track.ID, coverURL)

	decodeURL := s.decodeURL
	coverPath := s.coverPath
	s.mu.Unlock()

	if err := s.engine.Stop(); err != nil {
		s.logger.Warn("failed to stop previous source", "error", err)
	}
	if err := s.engine.Open(decodeURL); err != nil {
		s.bus.Publish(domain.NewPlaybackErrorEvent(track, err, false))
		return err
	}
	if err := s.engine.SetSpeed(s.speedValue()); err != nil {
		s.logger.Warn("failed to apply playback speed", "error", err)
	}

	s.startPlayback(track)
	s.appendRecent(track)
	s.bus.Publish(domain.NewTrackChangedEvent(track, decodeURL, coverPath))

	// Durability and caching never gate the play request.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.persistPlay(track, url, coverURL)
	}()

	return nil
}

// PlayEntry plays a queue entry through its stored references.
func (s *PlayerService) PlayEntry(entry domain.QueueEntry) error {
	return s.Play(entry.Track, entry.FileURL, entry.CoverURL)
}

// PlayAll seeds playback from the full queue snapshot, starting at the
// lowest track ID. No-op on an empty store.
func (s *PlayerService) PlayAll() error {
	entries, err := s.queue.All()
	if err != nil {
		s.logger.Warn("failed to read queue snapshot", "error", err)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}
	return s.PlayEntry(entries[0])
}

// Pause ramps the volume down and suspends the engine. The wake lock is
// released; paused audio must not keep the host awake.
func (s *PlayerService) Pause() error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	track := *s.current
	s.playing = false
	s.mu.Unlock()

	s.wakeLock.Release()

	position := s.engine.Position()
	s.fadeTo(0, func() {
		// Runs under s.mu; a resume that landed during the ramp wins.
		if s.playing {
			return
		}
		if err := s.engine.Pause(); err != nil {
			s.logger.Warn("failed to pause engine", "error", err)
		}
	})

	s.bus.Publish(domain.NewTrackPausedEvent(track, position))
	return nil
}

// Resume ramps the volume back up from wherever playback stopped.
func (s *PlayerService) Resume() error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	track := *s.current
	s.playing = true
	s.mu.Unlock()

	s.startPlayback(track)
	return nil
}

// TogglePlayPause flips between playing and paused.
func (s *PlayerService) TogglePlayPause() error {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()

	if playing {
		return s.Pause()
	}
	return s.Resume()
}

/// SeekTo moves the playback position. Not fade-mediated: seeks republish
// immediately.
func (s *PlayerService) SeekTo(position time.Duration) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	s.mu.Unlock()

	if err := s.engine.Seek(position); err != nil {
		return err
	}

	s.bus.Publish(domain.NewSeekedEvent(position))
	s.bus.Publish(domain.NewProgressEvent(position, s.engine.Duration()))
	return nil
}

// Next advances to the next track. A valid prefetch slot is the fast path;
// otherwise the play mode decides:
//   - list-loop: neighbor by ascending ID, wrapping to the first entry
//   - single-loop: restart the current track in place
//   - shuffle: uniform random pick excluding the current track
//
// An empty store (or shuffle with no other candidate) is a no-op.
func (s *PlayerService) Next() error {
	s.mu.Lock()
	if slot := s.prefetch; slot.Valid() {
		s.prefetch = domain.PrefetchSlot{}
		s.mu.Unlock()
		return s.Play(slot.Track, slot.SourceURL, slot.CoverURL)
	}
	mode := s.mode
	current := s.current
	s.mu.Unlock()

	if mode == domain.ModeSingleLoop {
		return s.restartCurrent()
	}

	entry := s.nextUnderMode(mode, current)
	if entry == nil {
		s.logger.Debug("no candidate to advance to", "mode", mode)
		return nil
	}
	return s.PlayEntry(*entry)
}

// Previous steps back through the play-history stack. With no history left
// it falls back to the ID-neighbor below the current track, wrapping to the
// largest ID at the boundary.
func (s *PlayerService) Previous() error {
	s.mu.Lock()
	if len(s.history) >= 2 {
		s.history = s.history[:len(s.history)-1]
		top := s.history[len(s.history)-1]
		s.mu.Unlock()
		return s.Play(top.track, top.url, top.coverURL)
	}
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return nil
	}

	entry, err := s.queue.NeighborPrevious(current.ID)
	if err != nil || entry == nil {
		entry, err = s.queue.Last()
		if err != nil || entry == nil || entry.ID == current.ID {
			return nil
		}
	}
	return s.PlayEntry(*entry)
}

// SetPlayMode persists the advance policy immediately. The current track
// keeps playing; only future advances and prefetches follow the new mode.
func (s *PlayerService) SetPlayMode(mode domain.PlayMode) {
	s.mu.Lock()
	s.mode = mode
	s.prefetch = domain.PrefetchSlot{}
	s.mu.Unlock()

	if err := s.settings.SetString(playModeKey, mode.String()); err != nil {
		s.logger.Warn("failed to persist play mode", "error", err)
	}
	s.bus.Publish(domain.NewPlayModeChangedEvent(mode))

	// The slot must describe the next track under the new policy.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.prefetchNext()
	}()
}

// SetSpeed persists the playback rate and applies it to the engine.
func (s *PlayerService) SetSpeed(speed float64) error {
	if speed < 0.25 || speed > 4.0 {
		return domain.ErrInvalidSpeed
	}

	if err := s.engine.SetSpeed(speed); err != nil {
		return err
	}

	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()

	if err := s.settings.SetFloat64(playbackSpeedKey, speed); err != nil {
		s.logger.Warn("failed to persist playback speed", "error", err)
	}
	s.bus.Publish(domain.NewSpeedChangedEvent(speed))
	return nil
}

// ToggleFavorite flips the persisted favorite flag of the current track.
func (s *PlayerService) ToggleFavorite() error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return domain.ErrNoTrackLoaded
	}
	id := s.current.ID
	s.favorite = !s.favorite
	favorite := s.favorite
	s.mu.Unlock()

	if err := s.settings.SetBool(favoriteKey(id), favorite); err != nil {
		s.logger.Warn("failed to persist favorite flag", "trackID", id, "error", err)
	}
	s.bus.Publish(domain.NewFavoriteToggledEvent(id, favorite))
	return nil
}

// SetSleepTimer schedules a one-shot pause after the given number of
// minutes, replacing any prior timer. Zero or negative minutes clears the
// timer. Firing pauses playback and resets the timer state; it never stops
// the daemon or touches the queue.
func (s *PlayerService) SetSleepTimer(minutes int) {
	s.mu.Lock()
	if s.sleepCancel != nil {
		close(s.sleepCancel)
		s.sleepCancel = nil
	}

	if minutes <= 0 {
		s.sleepEnd = time.Time{}
		s.mu.Unlock()
		s.bus.Publish(domain.NewSleepTimerSetEvent(time.Time{}))
		return
	}

	end := time.Now().Add(time.Duration(minutes) * time.Minute)
	cancel := make(chan struct{})
	s.sleepEnd = end
	s.sleepCancel = cancel
	s.mu.Unlock()

	s.bus.Publish(domain.NewSleepTimerSetEvent(end))

	s.wg.Add(1)
	go s.sleepCountdown(end, cancel)
}

// Snapshot returns a copy of the current playback state.
func (s *PlayerService) Snapshot() domain.PlayerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := domain.PlayerSnapshot{
		SourceURL: s.decodeURL,
		CoverPath: s.coverPath,
		Playing:   s.playing,
		Mode:      s.mode,
		Speed:     s.speed,
		Favorite:  s.favorite,
	}
	if s.current != nil {
		track := *s.current
		snapshot.Track = &track
		snapshot.Position = s.engine.Position()
		snapshot.Duration = s.duration
	}
	if !s.sleepEnd.IsZero() {
		if remaining := time.Until(s.sleepEnd); remaining > 0 {
			snapshot.SleepRemaining = remaining
		}
	}
	return snapshot
}

// RecentPlays returns the bounded most-recent-plays list, newest first.
func (s *PlayerService) RecentPlays() []domain.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Track, len(s.recent))
	copy(out, s.recent)
	return out
}

// Restore reloads the most recently played track, paused at position zero,
// so a session Play command picks up where the last run stopped. No-op when
// the store is empty.
func (s *PlayerService) Restore() error {
	entry, err := s.queue.MostRecentlyTouched()
	if err != nil || entry == nil {
		return err
	}

	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.mu.Lock()
	track := entry.Track
	s.current = &track
	s.requestURL = entry.FileURL
	s.duration = entry.Duration
	s.favorite = s.loadFavorite(entry.ID)
	s.retriedURL = ""
	s.decodeURL = s.resolveSourceLocked(entry.ID, entry.FileURL)
	s.coverPath = s.resolveCoverLocked(entry.ID, entry.CoverURL)
	s.pushHistoryLocked(track, entry.FileURL, entry.CoverURL)
	decodeURL := s.decodeURL
	coverPath := s.coverPath
	s.mu.Unlock()

	if err := s.engine.Open(decodeURL); err != nil {
		s.logger.Warn("failed to restore last track", "trackID", track.ID, "error", err)
		return nil
	}

	s.bus.Publish(domain.NewTrackChangedEvent(track, decodeURL, coverPath))
	s.logger.Info("restored last played track", "trackID", track.ID, "title", track.Title)
	return nil
}

// Close stops the internal loops. The engine itself is owned by the caller
// and deliberately outlives every track; it is torn down only at process
// exit.
func (s *PlayerService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.sleepCancel != nil {
		close(s.sleepCancel)
		s.sleepCancel = nil
	}
	if s.fadeCancel != nil {
		close(s.fadeCancel)
		s.fadeCancel = nil
	}
	close(s.stopCh)
	s.mu.Unlock()

	s.wakeLock.Release()
	s.wg.Wait()
}

// --- engine event handling ---

// engineLoop is the single consumer of engine state reports.
func (s *PlayerService) engineLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.engine.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case domain.EngineReady:
				s.onReady(ev.Duration)
			case domain.EngineCompleted:
				s.onCompleted()
			case domain.EngineFailed:
				s.onFailed(ev.Err)
			}
		}
	}
}

// onReady records the prepared duration and kicks off the speculative
// prefetch of the following track.
func (s *PlayerService) onReady(duration time.Duration) {
	s.mu.Lock()
	if duration > 0 {
		s.duration = duration
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.prefetchNext()
	}()
}

// onCompleted applies the auto-advance policy after a natural end.
func (s *PlayerService) onCompleted() {
	s.mu.Lock()
	current := s.current
	mode := s.mode
	s.playing = false
	s.mu.Unlock()

	if current == nil {
		return
	}
	s.bus.Publish(domain.NewTrackCompletedEvent(*current))

	if mode == domain.ModeSingleLoop {
		if err := s.restartCurrent(); err != nil {
			s.logger.Warn("failed to restart track", "error", err)
		}
		return
	}
	if err := s.Next(); err != nil {
		s.logger.Warn("auto-advance failed", "error", err)
	}
}

// onFailed applies the bounded-once retry policy: the first failure of a
// source schedules one delayed retry of the same source; a second failure
// only logs, leaving playback stalled.
func (s *PlayerService) onFailed(cause error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	track := *s.current
	decodeURL := s.decodeURL

	if s.retriedURL == decodeURL {
		s.playing = false
		s.mu.Unlock()

		s.wakeLock.Release()
		s.logger.Error("playback failed after retry, stalling",
			"trackID", track.ID, "source", decodeURL, "error", cause)
		s.bus.Publish(domain.NewPlaybackErrorEvent(track, cause, false))
		return
	}

	s.retriedURL = decodeURL
	s.mu.Unlock()

	s.logger.Warn("playback error, retrying once",
		"trackID", track.ID, "source", decodeURL, "error", cause)
	s.bus.Publish(domain.NewPlaybackErrorEvent(track, cause, true))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.stopCh:
			return
		case <-time.After(retryDelay):
		}

		s.swapMu.Lock()
		defer s.swapMu.Unlock()

		s.mu.Lock()
		stale := s.current == nil || s.current.ID != track.ID
		s.mu.Unlock()
		if stale {
			return
		}

		if err := s.engine.Open(decodeURL); err != nil {
			s.logger.Error("retry failed, playback stalled",
				"trackID", track.ID, "source", decodeURL, "error", err)
			s.bus.Publish(domain.NewPlaybackErrorEvent(track, err, false))
			return
		}
		s.startPlayback(track)
	}()
}

// --- internals ---

// startPlayback begins audible output with a fade-in and takes the wake lock.
func (s *PlayerService) startPlayback(track domain.Track) {
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()

	s.wakeLock.Acquire()

	if err := s.engine.SetVolume(0); err != nil {
		s.logger.Warn("failed to zero volume for fade-in", "error", err)
	}
	if err := s.engine.Play(); err != nil {
		s.logger.Warn("failed to start engine", "error", err)
	}
	s.fadeTo(1.0, nil)

	s.bus.Publish(domain.NewTrackStartedEvent(track))
}

// restartCurrent reloads the current track from position zero, the
// single-loop advance behavior. A naturally ended source has drained out of
// the output mixer and a non-seekable stream cannot rewind, so the source is
// re-opened rather than seeked.
func (s *PlayerService) restartCurrent() error {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	track := *s.current
	decodeURL := s.decodeURL
	s.mu.Unlock()

	if err := s.engine.Open(decodeURL); err != nil {
		s.logger.Warn("failed to reload track for restart", "trackID", track.ID, "error", err)
		return err
	}
	s.startPlayback(track)
	return nil
}

// nextUnderMode resolves the advance candidate for list-loop and shuffle.
// Store errors are "no result": advancing falls back or no-ops, it never
// fails.
func (s *PlayerService) nextUnderMode(mode domain.PlayMode, current *domain.Track) *domain.QueueEntry {
	if mode == domain.ModeShuffle {
		if current == nil {
			entry, err := s.queue.First()
			if err != nil {
				return nil
			}
			return entry
		}
		entry, err := s.queue.RandomExcluding(current.ID)
		if err != nil {
			return nil
		}
		return entry
	}

	if current != nil {
		if entry, err := s.queue.NeighborNext(current.ID); err == nil && entry != nil {
			return entry
		}
	}
	entry, err := s.queue.First()
	if err != nil {
		return nil
	}
	return entry
}

// prefetchNext resolves the track the next advance would land on and parks
// it in the single-slot cache. Skipped entirely for single-loop. The slot is
// only installed if the current track has not changed in the meantime.
func (s *PlayerService) prefetchNext() {
	s.mu.Lock()
	mode := s.mode
	current := s.current
	s.mu.Unlock()

	if mode == domain.ModeSingleLoop || current == nil {
		return
	}

	entry := s.nextUnderMode(mode, current)
	if entry == nil || entry.ID == current.ID {
		return
	}

	slot := domain.PrefetchSlot{
		Track:     entry.Track,
		SourceURL: entry.FileURL,
		CoverURL:  entry.CoverURL,
	}
	if cached := s.cache.ReadAudio(entry.ID); cached != "" {
		slot.SourceURL = cached
	}
	if cachedCover := s.cache.ReadCover(entry.ID); cachedCover != "" {
		slot.CoverURL = cachedCover
	} else if slot.CoverURL == "" {
		slot.CoverURL = s.source.CoverURL(entry.ID)
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == current.ID {
		s.prefetch = slot
		s.logger.Debug("prefetched next track", "trackID", entry.ID, "mode", mode)
	}
	s.mu.Unlock()
}

// fadeTo ramps the engine volume toward target. Starting a ramp cancels any
// ramp still in flight, so fade-in and fade-out can never overlap. then runs
// under the state lock, and only if no newer ramp superseded this one.
func (s *PlayerService) fadeTo(target float64, then func()) {
	s.mu.Lock()
	if s.fadeCancel != nil {
		close(s.fadeCancel)
	}
	cancel := make(chan struct{})
	s.fadeCancel = cancel
	s.mu.Unlock()

	start := s.engine.Volume()
	step := fadeDuration / fadeSteps

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for i := 1; i <= fadeSteps; i++ {
			select {
			case <-cancel:
				return
			case <-s.stopCh:
				return
			case <-time.After(step):
			}

			v := start + (target-start)*float64(i)/fadeSteps
			if err := s.engine.SetVolume(v); err != nil {
				s.logger.Warn("fade step failed", "error", err)
				return
			}
		}

		s.mu.Lock()
		if s.fadeCancel != cancel {
			// A newer ramp took over after this one's last step.
			s.mu.Unlock()
			return
		}
		s.fadeCancel = nil
		if then != nil {
			then()
		}
		s.mu.Unlock()
	}()
}

// sleepCountdown ticks once per second until the timer end, then pauses.
func (s *PlayerService) sleepCountdown(end time.Time, cancel chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			remaining := time.Until(end)
			if remaining > 0 {
				s.bus.Publish(domain.NewSleepTimerTickEvent(remaining.Round(time.Second)))
				continue
			}

			s.mu.Lock()
			s.sleepEnd = time.Time{}
			if s.sleepCancel == cancel {
				s.sleepCancel = nil
			}
			s.mu.Unlock()

			if err := s.Pause(); err != nil {
				s.logger.Warn("sleep timer pause failed", "error", err)
			}
			s.bus.Publish(domain.NewSleepTimerFiredEvent())
			return
		}
	}
}

// persistPlay runs the durability side effects of a play: queue add+touch
// and missing-artifact cache writes. All best-effort.
func (s *PlayerService) persistPlay(track domain.Track, url, coverURL string) {
	if err := s.queue.Add(track); err != nil {
		s.logger.Warn("failed to persist track to queue", "trackID", track.ID, "error", err)
	}
	if err := s.queue.Touch(track.ID); err != nil {
		s.logger.Warn("failed to touch queue entry", "trackID", track.ID, "error", err)
	}

	if !s.cache.Enabled() {
		return
	}

	ctx := context.Background()
	if s.cache.ReadAudio(track.ID) == "" {
		if err := s.cache.WriteAudio(ctx, track.ID, url, track.Title); err != nil {
			s.logger.Debug("audio cache write skipped", "trackID", track.ID, "error", err)
		}
	}
	if s.cache.ReadCover(track.ID) == "" {
		ref := coverURL
		if ref == "" {
			ref = s.source.CoverURL(track.ID)
		}
		if err := s.cache.WriteCover(ctx, track.ID, ref); err != nil {
			s.logger.Debug("cover cache write skipped", "trackID", track.ID, "error", err)
		}
	}
}

// appendRecent puts the track at the head of the bounded recent-plays list,
// deduplicating by ID.
func (s *PlayerService) appendRecent(track domain.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]domain.Track, 0, len(s.recent)+1)
	filtered = append(filtered, track)
	for _, t := range s.recent {
		if t.ID != track.ID {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) > recentPlaysCap {
		filtered = filtered[:recentPlaysCap]
	}
	s.recent = filtered
}

// pushHistoryLocked appends the new current track to the history stack,
// skipping when it equals the entry already on top. The stack is uncapped;
// it backs Previous navigation, unlike the bounded recent-plays list.
func (s *PlayerService) pushHistoryLocked(track domain.Track, url, coverURL string) {
	if n := len(s.history); n > 0 && s.history[n-1].track.ID == track.ID {
		return
	}
	s.history = append(s.history, historyEntry{track: track, url: url, coverURL: coverURL})
}

// resolveSourceLocked prefers a complete cached audio artifact over the
// network URL.
func (s *PlayerService) resolveSourceLocked(id int64, url string) string {
	if cached := s.cache.ReadAudio(id); cached != "" {
		return cached
	}
	return url
}

// resolveCoverLocked prefers the cached cover, then the explicit reference,
// then the backend's canonical cover endpoint.
func (s *PlayerService) resolveCoverLocked(id int64, coverURL string) string {
	if cached := s.cache.ReadCover(id); cached != "" {
		return cached
	}
	if coverURL != "" {
		return coverURL
	}
	return s.source.CoverURL(id)
}

func (s *PlayerService) loadPolicy() {
	if mode, err := s.settings.GetString(playModeKey, domain.ModeListLoop.String()); err == nil {
		s.mode = domain.ParsePlayMode(mode)
	}
	if speed, err := s.settings.GetFloat64(playbackSpeedKey, 1.0); err == nil && speed >= 0.25 && speed <= 4.0 {
		s.speed = speed
	}
	if err := s.engine.SetSpeed(s.speed); err != nil {
		s.logger.Warn("failed to apply persisted speed", "error", err)
	}
}

func (s *PlayerService) loadFavorite(id int64) bool {
	favorite, err := s.settings.GetBool(favoriteKey(id), false)
	if err != nil {
		return false
	}
	return favorite
}

func (s *PlayerService) speedValue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// progressLoop publishes position updates once per second while playing.
func (s *PlayerService) progressLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			playing := s.playing && s.current != nil
			s.mu.Unlock()
			if !playing {
				continue
			}
			s.bus.Publish(domain.NewProgressEvent(s.engine.Position(), s.engine.Duration()))
		}
	}
}

func favoriteKey(id int64) string {
	return favoriteKeyPfx + domain.FormatTrackID(id)
}

// Verify that PlayerService satisfies the session surface's command ingress.
var _ ports.TransportController = (*PlayerService)(nil)
