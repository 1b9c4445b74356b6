package mock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekomusic/playd/internal/domain"
)

func TestEngine_OpenEmitsReady(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	engine.SetDuration(2 * time.Minute)
	require.NoError(t, engine.Open("/music/song.mp3"))

	select {
	case ev := <-engine.Events():
		assert.Equal(t, domain.EngineReady, ev.Kind)
		assert.Equal(t, 2*time.Minute, ev.Duration)
	default:
		t.Fatal("expected a ready event after open")
	}

	assert.Equal(t, []string{"/music/song.mp3"}, engine.OpenedSources())
	assert.Equal(t, domain.StatusStopped, engine.Status())
}

func TestEngine_OpenFailure(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	engine.SetFailOpen(true)
	err := engine.Open("/music/song.mp3")
	require.Error(t, err)

	var engineErr *domain.EngineError
	assert.ErrorAs(t, err, &engineErr)
}

func TestEngine_PlayPauseStop(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	assert.ErrorIs(t, engine.Play(), domain.ErrNoTrackLoaded)

	require.NoError(t, engine.Open("/music/song.mp3"))
	require.NoError(t, engine.Play())
	assert.Equal(t, domain.StatusPlaying, engine.Status())

	require.NoError(t, engine.Pause())
	assert.Equal(t, domain.StatusPaused, engine.Status())

	require.NoError(t, engine.Stop())
	assert.Equal(t, domain.StatusStopped, engine.Status())
	assert.Equal(t, time.Duration(0), engine.Duration())
}

func TestEngine_SeekBounds(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	engine.SetDuration(time.Minute)
	require.NoError(t, engine.Open("/music/song.mp3"))

	require.NoError(t, engine.Seek(30*time.Second))
	assert.Equal(t, 30*time.Second, engine.Position())

	assert.ErrorIs(t, engine.Seek(-time.Second), domain.ErrInvalidPosition)
	assert.ErrorIs(t, engine.Seek(2*time.Minute), domain.ErrInvalidPosition)
}

func TestEngine_VolumeRecording(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	require.NoError(t, engine.SetVolume(0.5))
	require.NoError(t, engine.SetVolume(1.0))
	assert.ErrorIs(t, engine.SetVolume(1.5), domain.ErrInvalidVolume)

	assert.Equal(t, []float64{0.5, 1.0}, engine.VolumeCalls())
	assert.Equal(t, 1.0, engine.Volume())
}

func TestEngine_SimulateCompletionAndError(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	require.NoError(t, engine.Open("/music/song.mp3"))
	<-engine.Events() // drain ready

	require.NoError(t, engine.Play())
	engine.SimulateCompletion()

	ev := <-engine.Events()
	assert.Equal(t, domain.EngineCompleted, ev.Kind)
	assert.Equal(t, domain.StatusStopped, engine.Status())

	cause := errors.New("decode failed")
	engine.SimulateError(cause)

	ev = <-engine.Events()
	assert.Equal(t, domain.EngineFailed, ev.Kind)
	assert.ErrorIs(t, ev.Err, cause)
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	engine := NewEngine()

	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	_, open := <-engine.Events()
	assert.False(t, open)
}
