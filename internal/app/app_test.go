package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekomusic/playd/internal/config"
	"github.com/nekomusic/playd/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	return &config.Config{
		APIBaseURL:  "http://127.0.0.1:8080",
		DataDir:     dir,
		DBPath:      filepath.Join(dir, "playd.db"),
		CacheDir:    filepath.Join(dir, "cache"),
		SampleRate:  44100,
		SessionName: "playd-test",
	}
}

func testOptions() Options {
	return Options{
		UseMockEngine: true,
		NoSession:     true,
		NoWakeLock:    true,
		LogLevel:      slog.LevelError,
	}
}

func TestNewApplication(t *testing.T) {
	application, err := NewApplication(testConfig(t), testOptions())
	require.NoError(t, err)
	require.NotNil(t, application)

	assert.NotNil(t, application.Player())
	assert.NotNil(t, application.Cache())

	application.Shutdown()
}

func TestApplicationLifecycle(t *testing.T) {
	application, err := NewApplication(testConfig(t), testOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	application.Shutdown()
}

func TestApplicationRestoresLastTrack(t *testing.T) {
	cfg := testConfig(t)

	first, err := NewApplication(cfg, testOptions())
	require.NoError(t, err)

	track := domain.Track{
		ID:      7,
		Title:   "Persisted",
		FileURL: "http://127.0.0.1:8080/api/music/file/7",
	}
	require.NoError(t, first.Player().Play(track, track.FileURL, ""))

	// Shutdown drains the asynchronous queue write before closing the DB.
	first.Shutdown()

	second, err := NewApplication(cfg, testOptions())
	require.NoError(t, err)
	defer second.Shutdown()

	snapshot := second.Player().Snapshot()
	require.NotNil(t, snapshot.Track)
	assert.Equal(t, int64(7), snapshot.Track.ID)
	assert.False(t, snapshot.Playing, "restored sessions start paused")
}
