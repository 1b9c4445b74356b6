package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekomusic/playd/internal/adapter/engine/mock"
	"github.com/nekomusic/playd/internal/adapter/eventbus"
	"github.com/nekomusic/playd/internal/adapter/repository/memory"
	"github.com/nekomusic/playd/internal/adapter/wakelock"
	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/logger"
	"github.com/nekomusic/playd/internal/testutil"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type playerFixture struct {
	player   *PlayerService
	engine   *mock.Engine
	queue    *memory.QueueRepository
	settings *memory.SettingsRepository
	bus      *eventbus.Bus
	source   *fakeSource
}

func newPlayerFixture(t *testing.T) *playerFixture {
	t.Helper()

	// Registered before the close cleanup so it runs after it.
	t.Cleanup(func() { testutil.VerifyNoLeaks(t) })

	log := logger.NewTestLogger()
	engine := mock.NewEngine()
	queue := memory.NewQueueRepository()
	settings := memory.NewSettingsRepository()
	source := &fakeSource{responses: make(map[string]fakeResponse)}
	bus := eventbus.New(log)

	cache, err := NewCacheService(t.TempDir(), settings, source, bus, log)
	require.NoError(t, err)

	player := NewPlayerService(log, engine, queue, settings, cache, source, bus, wakelock.NewNoopLock())

	t.Cleanup(func() {
		player.Close()
		_ = engine.Close()
		_ = bus.Close()
	})

	return &playerFixture{
		player:   player,
		engine:   engine,
		queue:    queue,
		settings: settings,
		bus:      bus,
		source:   source,
	}
}

func testTrack(id int64) domain.Track {
	return domain.Track{
		ID:       id,
		Title:    fmt.Sprintf("Track %d", id),
		Artist:   "Artist",
		Album:    "Album",
		Duration: 3 * time.Minute,
		FileURL:  trackURL(id),
	}
}

func trackURL(id int64) string {
	return fmt.Sprintf("http://backend/api/music/file/%d", id)
}

func (fx *playerFixture) play(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, fx.player.Play(testTrack(id), trackURL(id), ""))
}

func (fx *playerFixture) currentID() int64 {
	snapshot := fx.player.Snapshot()
	if snapshot.Track == nil {
		return 0
	}
	return snapshot.Track.ID
}

func TestPlayerService_PlayOpensEngineAndPersists(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.play(t, 42)

	assert.Equal(t, []string{trackURL(42)}, fx.engine.OpenedSources())
	assert.True(t, fx.player.Snapshot().Playing)

	assert.Eventually(t, func() bool {
		count, err := fx.queue.Count()
		return err == nil && count == 1
	}, waitFor, tick, "play must add the track to the queue store")

	entry, err := fx.queue.MostRecentlyTouched()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(42), entry.ID)
}

func TestPlayerService_PlayAllStartsAtLowestID(t *testing.T) {
	fx := newPlayerFixture(t)

	require.NoError(t, fx.player.PlayAll(), "empty store must be a no-op")
	assert.Empty(t, fx.engine.OpenedSources())

	for _, id := range []int64{9, 3, 6} {
		require.NoError(t, fx.queue.Add(testTrack(id)))
	}
	require.NoError(t, fx.player.PlayAll())
	assert.Equal(t, int64(3), fx.currentID())
}

func TestPlayerService_SameURLResumesWithoutReopen(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.play(t, 42)
	require.NoError(t, fx.player.Pause())
	assert.False(t, fx.player.Snapshot().Playing)

	fx.play(t, 42)

	assert.True(t, fx.player.Snapshot().Playing)
	assert.Len(t, fx.engine.OpenedSources(), 1, "same-source play must not reload the engine")
}

func TestPlayerService_NextWrapsToFirst(t *testing.T) {
	fx := newPlayerFixture(t)
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, fx.queue.Add(testTrack(id)))
	}
	fx.play(t, 3)

	require.NoError(t, fx.player.Next())

	assert.Eventually(t, func() bool {
		return fx.currentID() == 1
	}, waitFor, tick, "next past the largest ID must wrap to the smallest")
}

func TestPlayerService_ShuffleWithSingleTrackIsNoop(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.player.SetPlayMode(domain.ModeShuffle)
	fx.play(t, 7)

	require.NoError(t, fx.player.Next())

	assert.Equal(t, int64(7), fx.currentID())
	assert.Len(t, fx.engine.OpenedSources(), 1)
}

func TestPlayerService_PreviousWalksHistory(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.play(t, 1)
	fx.play(t, 2)
	fx.play(t, 3)

	require.NoError(t, fx.player.Previous())
	assert.Equal(t, int64(2), fx.currentID())

	require.NoError(t, fx.player.Previous())
	assert.Equal(t, int64(1), fx.currentID())
}

func TestPlayerService_PreviousFallsBackToStoreWrap(t *testing.T) {
	fx := newPlayerFixture(t)
	for _, id := range []int64{1, 5, 9} {
		require.NoError(t, fx.queue.Add(testTrack(id)))
	}
	fx.play(t, 1)

	// History holds only the current track, so Previous must use the
	// store: no neighbor below 1, wrap to the largest ID.
	require.NoError(t, fx.player.Previous())
	assert.Equal(t, int64(9), fx.currentID())
}

func TestPlayerService_PrefetchSlotConsumedAndInvalidated(t *testing.T) {
	fx := newPlayerFixture(t)
	for _, id := range []int64{1, 2} {
		require.NoError(t, fx.queue.Add(testTrack(id)))
	}
	fx.play(t, 1)

	assert.Eventually(t, func() bool {
		fx.player.mu.Lock()
		defer fx.player.mu.Unlock()
		return fx.player.prefetch.Valid() && fx.player.prefetch.Track.ID == 2
	}, waitFor, tick, "the slot must hold the list-loop successor")

	// Any new play invalidates the slot, even one for an unrelated track.
	fx.play(t, 2)

	fx.player.mu.Lock()
	slot := fx.player.prefetch
	fx.player.mu.Unlock()
	assert.False(t, slot.Valid() && slot.Track.ID == 2, "consumed or invalidated slot must not linger")
}

func TestPlayerService_RetriesOnceThenStalls(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.play(t, 42)

	var stalled atomic.Bool
	fx.bus.Subscribe(domain.EventPlaybackError, func(event domain.Event) {
		if e, ok := event.(domain.PlaybackErrorEvent); ok && !e.Retry {
			stalled.Store(true)
		}
	})

	fx.engine.SimulateError(errors.New("decode failure"))

	assert.Eventually(t, func() bool {
		return len(fx.engine.OpenedSources()) == 2
	}, waitFor, tick, "the first failure must trigger exactly one delayed reopen")
	assert.Equal(t, trackURL(42), fx.engine.OpenedSources()[1], "the retry must reuse the failed source")

	assert.Eventually(t, func() bool {
		return fx.player.Snapshot().Playing
	}, waitFor, tick)

	fx.engine.SimulateError(errors.New("decode failure"))

	assert.Eventually(t, func() bool {
		return stalled.Load() && !fx.player.Snapshot().Playing
	}, waitFor, tick, "a second failure of the same source must stall, not loop")
	assert.Len(t, fx.engine.OpenedSources(), 2)
}

func TestPlayerService_AutoAdvanceOnCompletion(t *testing.T) {
	fx := newPlayerFixture(t)
	for _, id := range []int64{1, 2} {
		require.NoError(t, fx.queue.Add(testTrack(id)))
	}
	fx.play(t, 1)

	fx.engine.SimulateCompletion()

	assert.Eventually(t, func() bool {
		return fx.currentID() == 2 && fx.player.Snapshot().Playing
	}, waitFor, tick)
}

func TestPlayerService_SingleLoopReloadsOnCompletion(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.play(t, 5)
	fx.player.SetPlayMode(domain.ModeSingleLoop)

	fx.engine.SimulateCompletion()

	// A drained source cannot simply be rewound, so the restart must
	// prepare the same source again.
	assert.Eventually(t, func() bool {
		return len(fx.engine.OpenedSources()) == 2 && fx.player.Snapshot().Playing
	}, waitFor, tick)
	sources := fx.engine.OpenedSources()
	assert.Equal(t, sources[0], sources[1], "restart must re-prepare the same source")
	assert.Equal(t, int64(5), fx.currentID())
}

func TestPlayerService_ResumeDuringFadeOutStaysPlaying(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.play(t, 3)

	require.NoError(t, fx.player.Pause())
	require.NoError(t, fx.player.Resume())

	// Let any lingering fade-out ramp run to its end.
	time.Sleep(2 * fadeDuration)

	assert.True(t, fx.player.Snapshot().Playing)
	assert.Equal(t, domain.StatusPlaying, fx.engine.Status())
}

func TestPlayerService_ConcurrentPlaysConverge(t *testing.T) {
	fx := newPlayerFixture(t)

	for i := 0; i < 100; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = fx.player.Play(testTrack(1), trackURL(1), "")
		}()
		go func() {
			defer wg.Done()
			_ = fx.player.Play(testTrack(2), trackURL(2), "")
		}()
		wg.Wait()

		sources := fx.engine.OpenedSources()
		require.NotEmpty(t, sources)
		assert.Equal(t, sources[len(sources)-1], fx.player.Snapshot().SourceURL,
			"engine must end up on the track the state settled on")
	}
}

func TestPlayerService_PlayModePersistsAcrossRestart(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.player.SetPlayMode(domain.ModeShuffle)

	stored, err := fx.settings.GetString("play_mode", "")
	require.NoError(t, err)
	assert.Equal(t, "shuffle", stored)

	log := logger.NewTestLogger()
	bus := eventbus.New(log)
	defer bus.Close() //nolint:errcheck

	cache, err := NewCacheService(t.TempDir(), fx.settings, fx.source, bus, log)
	require.NoError(t, err)

	engine := mock.NewEngine()
	revived := NewPlayerService(log, engine, fx.queue, fx.settings, cache, fx.source, bus, wakelock.NewNoopLock())
	defer func() {
		revived.Close()
		_ = engine.Close()
	}()

	assert.Equal(t, domain.ModeShuffle, revived.Snapshot().Mode)
}

func TestPlayerService_SpeedValidatedAndPersisted(t *testing.T) {
	fx := newPlayerFixture(t)

	assert.ErrorIs(t, fx.player.SetSpeed(5.0), domain.ErrInvalidSpeed)
	assert.ErrorIs(t, fx.player.SetSpeed(0.1), domain.ErrInvalidSpeed)

	require.NoError(t, fx.player.SetSpeed(1.5))
	assert.InDelta(t, 1.5, fx.player.Snapshot().Speed, 0.001)

	stored, err := fx.settings.GetFloat64("playback_speed", 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, stored, 0.001)
}

func TestPlayerService_FavoriteTogglePersists(t *testing.T) {
	fx := newPlayerFixture(t)

	assert.ErrorIs(t, fx.player.ToggleFavorite(), domain.ErrNoTrackLoaded)

	fx.play(t, 42)
	require.NoError(t, fx.player.ToggleFavorite())
	assert.True(t, fx.player.Snapshot().Favorite)

	stored, err := fx.settings.GetBool("favorite_42", false)
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, fx.player.ToggleFavorite())
	assert.False(t, fx.player.Snapshot().Favorite)
}

func TestPlayerService_SleepTimerSetTickAndClear(t *testing.T) {
	fx := newPlayerFixture(t)
	fx.play(t, 1)

	var ticked atomic.Bool
	fx.bus.Subscribe(domain.EventSleepTimerTick, func(domain.Event) {
		ticked.Store(true)
	})

	fx.player.SetSleepTimer(1)

	snapshot := fx.player.Snapshot()
	assert.Greater(t, snapshot.SleepRemaining, time.Duration(0))
	assert.LessOrEqual(t, snapshot.SleepRemaining, time.Minute)

	assert.Eventually(t, func() bool {
		return ticked.Load()
	}, waitFor, tick, "a running timer must tick once per second")

	fx.player.SetSleepTimer(0)
	assert.Equal(t, time.Duration(0), fx.player.Snapshot().SleepRemaining)
}

func TestPlayerService_RecentPlaysDeduplicatedAndBounded(t *testing.T) {
	fx := newPlayerFixture(t)
	for id := int64(1); id <= 25; id++ {
		fx.play(t, id)
	}
	fx.play(t, 25) // resume, not a new play

	recent := fx.player.RecentPlays()
	require.Len(t, recent, recentPlaysCap)
	assert.Equal(t, int64(25), recent[0].ID, "most recent play comes first")
	seen := make(map[int64]bool, len(recent))
	for _, track := range recent {
		assert.False(t, seen[track.ID], "recent plays must not contain duplicates")
		seen[track.ID] = true
	}
}

func TestPlayerService_RestoreReloadsLastTouchedPaused(t *testing.T) {
	fx := newPlayerFixture(t)
	require.NoError(t, fx.queue.Add(testTrack(11)))
	require.NoError(t, fx.queue.Add(testTrack(12)))
	require.NoError(t, fx.queue.Touch(12))

	require.NoError(t, fx.player.Restore())

	snapshot := fx.player.Snapshot()
	require.NotNil(t, snapshot.Track)
	assert.Equal(t, int64(12), snapshot.Track.ID)
	assert.False(t, snapshot.Playing, "restore must load paused")
	assert.Equal(t, time.Duration(0), snapshot.Position)
}

func TestPlayerService_SeekPublishesImmediately(t *testing.T) {
	fx := newPlayerFixture(t)

	assert.ErrorIs(t, fx.player.SeekTo(10*time.Second), domain.ErrNoTrackLoaded)

	fx.play(t, 3)

	var seeked atomic.Bool
	fx.bus.Subscribe(domain.EventSeeked, func(event domain.Event) {
		if e, ok := event.(domain.SeekedEvent); ok && e.Position == 30*time.Second {
			seeked.Store(true)
		}
	})

	require.NoError(t, fx.player.SeekTo(30*time.Second))
	assert.True(t, seeked.Load(), "seeks republish synchronously")
	assert.Equal(t, 30*time.Second, fx.player.Snapshot().Position)
}
